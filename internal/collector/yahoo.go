package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"SVIXScreener/internal/logger"
	"SVIXScreener/internal/model"

	"github.com/guregu/null/v6"
)

const (
	yahooBaseURL   = "https://query1.finance.yahoo.com"
	yahooCookieURL = "https://fc.yahoo.com"
)

// YahooFetcher implements Fetcher using Yahoo Finance public API.
//
// The chart endpoint is open; the quote endpoint needs a session cookie plus the crumb
// issued for it, which are obtained on first use and renewed once when rejected.
type YahooFetcher struct {
	BaseURL   string
	CookieURL string
	Client    *http.Client
	Now       func() time.Time

	crumbMu sync.Mutex
	crumb   string
	logger  logger.Logger
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string, l logger.Logger) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	jar, _ := cookiejar.New(nil)
	return &YahooFetcher{
		BaseURL:   yahooBaseURL,
		CookieURL: yahooCookieURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
			Jar:       jar,
		},
		Now:    time.Now,
		logger: l,
	}
}

// statusError is a non-200 reply from Yahoo.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("yahoo: status %d, body: %s", e.Code, e.Body)
}

func isAuthError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden)
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta       yahooMeta `json:"meta"`
			Timestamp  []int64   `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooMeta struct {
	Symbol               string   `json:"symbol"`
	LongName             string   `json:"longName"`
	ShortName            string   `json:"shortName"`
	RegularMarketPrice   *float64 `json:"regularMarketPrice"`
	ExchangeTimezoneName string   `json:"exchangeTimezoneName"`
	GMTOffset            int      `json:"gmtoffset"`
}

// location resolves the exchange time zone so bar dates land on exchange weekdays.
func (m yahooMeta) location() *time.Location {
	if m.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(m.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", m.GMTOffset)
}

type yahooQuote struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			LongName           string   `json:"longName"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
			MarketCap          *float64 `json:"marketCap"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func (f *YahooFetcher) getRaw(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (f *YahooFetcher) get(ctx context.Context, u string, out interface{}) error {
	body, err := f.getRaw(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

// sessionCrumb returns the cached crumb, running the cookie handshake when there is none.
func (f *YahooFetcher) sessionCrumb(ctx context.Context, renew bool) (string, error) {
	f.crumbMu.Lock()
	defer f.crumbMu.Unlock()
	if f.crumb != "" && !renew {
		return f.crumb, nil
	}

	// The cookie host answers 404 but still sets the session cookie.
	if _, err := f.getRaw(ctx, f.CookieURL); err != nil {
		var se *statusError
		if !errors.As(err, &se) {
			return "", fmt.Errorf("yahoo session cookie: %w", err)
		}
	}
	body, err := f.getRaw(ctx, f.BaseURL+"/v1/test/getcrumb")
	if err != nil {
		return "", fmt.Errorf("yahoo crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return "", fmt.Errorf("yahoo crumb: empty response")
	}
	f.crumb = crumb
	return crumb, nil
}

func (f *YahooFetcher) fetchQuote(ctx context.Context, symbol string) (yahooQuote, error) {
	var quote yahooQuote
	for attempt := 0; attempt < 2; attempt++ {
		crumb, err := f.sessionCrumb(ctx, attempt > 0)
		if err != nil {
			return quote, err
		}
		params := url.Values{}
		params.Set("symbols", symbol)
		params.Set("crumb", crumb)
		err = f.get(ctx, fmt.Sprintf("%s/v7/finance/quote?%s", f.BaseURL, params.Encode()), &quote)
		if err == nil || !isAuthError(err) {
			return quote, err
		}
	}
	return quote, fmt.Errorf("yahoo quote: crumb rejected")
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol string, params url.Values) (yahooMeta, model.HistoricalSeries, error) {
	params.Set("interval", "1d")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(symbol), params.Encode())

	var chart yahooChart
	if err := f.get(ctx, u, &chart); err != nil {
		return yahooMeta{}, nil, err
	}
	if chart.Chart.Error != nil {
		return yahooMeta{}, nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return yahooMeta{}, nil, fmt.Errorf("yahoo: no data returned")
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return result.Meta, nil, nil
	}
	quote := result.Indicators.Quote[0]
	loc := result.Meta.location()
	bars := make(model.HistoricalSeries, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		o, okO := toFloat(quote.Open[i])
		h, okH := toFloat(quote.High[i])
		l, okL := toFloat(quote.Low[i])
		c, okC := toFloat(quote.Close[i])
		if !okO || !okH || !okL || !okC {
			continue // null bars (holidays, halts)
		}
		var vol float64
		if i < len(quote.Volume) {
			vol, _ = toFloat(quote.Volume[i])
		}
		t := time.Unix(ts, 0).In(loc)
		y, m, d := t.Date()
		bars = append(bars, model.Bar{
			Time:   time.Date(y, m, d, 0, 0, 0, 0, loc),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: vol,
		})
	}
	return result.Meta, normalize(bars), nil
}

func (f *YahooFetcher) FetchHistory(ctx context.Context, symbol string, start time.Time) (model.HistoricalSeries, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(f.Now().Unix(), 10))
	_, bars, err := f.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo: no bars for %s", symbol)
	}
	return bars, nil
}

// FetchMetadata reads name and price from the chart meta block and market cap from the
// quote endpoint. Either source may fail alone; the missing fields stay invalid.
func (f *YahooFetcher) FetchMetadata(ctx context.Context, symbol string) (model.TickerMetadata, error) {
	var md model.TickerMetadata

	params := url.Values{}
	params.Set("range", "1d")
	meta, _, chartErr := f.fetchChart(ctx, symbol, params)
	if chartErr == nil {
		name := meta.LongName
		if name == "" {
			name = meta.ShortName
		}
		if name != "" {
			md.Name = null.StringFrom(name)
		}
		md.CurrentPrice = null.FloatFromPtr(meta.RegularMarketPrice)
	}

	quote, quoteErr := f.fetchQuote(ctx, symbol)
	if quoteErr != nil {
		f.logger.Warnf("%s: market cap unavailable for %s", quoteErr, symbol)
	}
	if quoteErr == nil && len(quote.QuoteResponse.Result) > 0 {
		q := quote.QuoteResponse.Result[0]
		md.MarketCap = null.FloatFromPtr(q.MarketCap)
		if !md.Name.Valid && q.LongName != "" {
			md.Name = null.StringFrom(q.LongName)
		}
		if !md.CurrentPrice.Valid {
			md.CurrentPrice = null.FloatFromPtr(q.RegularMarketPrice)
		}
	}

	if chartErr != nil && quoteErr != nil {
		return md, fmt.Errorf("yahoo metadata: chart: %v; quote: %w", chartErr, quoteErr)
	}
	return md, nil
}
