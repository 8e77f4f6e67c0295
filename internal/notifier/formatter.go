package notifier

import (
	"fmt"
	"html"
	"strings"

	"SVIXScreener/internal/screener"

	"github.com/dustin/go-humanize"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

const nameWidth = 18

// FormatTable renders a screener result as a Telegram HTML message.
func FormatTable(res *screener.Result) string {
	var b strings.Builder

	q := res.Query
	b.WriteString(fmt.Sprintf("📈 <b>SVIX</b> | %s, lookback %d, threshold %s\n",
		q.Interval, q.Lookback, decimal.NewFromFloat(q.Threshold).StringFixed(2)))
	if q.Search != "" {
		b.WriteString(fmt.Sprintf("Search: %s\n", html.EscapeString(q.Search)))
	}
	if !res.LastDate.IsZero() {
		b.WriteString(fmt.Sprintf("Prices updated on %s\n", res.LastDate.Format("2006-01-02")))
	}
	b.WriteString("\n")

	if len(res.Table.Rows) == 0 {
		b.WriteString("No tickers match.")
		return b.String()
	}

	var t strings.Builder
	t.WriteString(strings.Join(res.Table.Columns, " | "))
	t.WriteString("\n")
	for _, row := range res.Table.Rows {
		cells := []string{
			row.Symbol,
			truncate(row.Name.ValueOrZero(), nameWidth),
			formatPrice(row.Price),
			decimal.NewFromFloat(row.Score).StringFixed(3),
		}
		if q.ShowMarketCap {
			cells = append(cells, formatMarketCap(row.MarketCap))
		}
		t.WriteString(strings.Join(cells, " | "))
		t.WriteString("\n")
	}
	b.WriteString("<pre>")
	b.WriteString(html.EscapeString(t.String()))
	b.WriteString("</pre>")

	if res.Skipped > 0 {
		b.WriteString(fmt.Sprintf("\n%d tickers without enough history", res.Skipped))
	}
	return b.String()
}

// HelpText lists the chat commands.
func HelpText() string {
	var b strings.Builder
	b.WriteString("<b>Commands</b>\n")
	b.WriteString("/svix [daily|weekly] [lookback] [threshold] [search] - screen tickers\n")
	b.WriteString("/refresh - clear cache and redownload prices\n")
	b.WriteString("/help - show this message")
	return b.String()
}

func formatPrice(p null.Float) string {
	if !p.Valid {
		return "-"
	}
	return decimal.NewFromFloat(p.Float64).StringFixed(2)
}

func formatMarketCap(c null.Float) string {
	if !c.Valid {
		return "-"
	}
	return humanize.SIWithDigits(c.Float64, 2, "")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
