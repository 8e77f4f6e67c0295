package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"SVIXScreener/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoMatch means none of the sample values were found on the page.
var ErrNoMatch = errors.New("sample values not found on page")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper extracts ticker symbols from a listing page. It learns where the sample
// tickers sit in the document and returns every value found at the same position.
type Scraper struct {
	Client *http.Client
	Suffix string
	logger logger.Logger
}

// NewScraper creates a scraper with optional proxy support.
func NewScraper(suffix, proxyURL string, l logger.Logger) *Scraper {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Scraper{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Suffix: suffix,
		logger: l,
	}
}

// Build fetches pageURL and returns the suffixed tickers that share a structural rule
// with any of the wanted sample values.
func (s *Scraper) Build(ctx context.Context, pageURL string, wanted []string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch listing: status %d, body: %s", resp.StatusCode, string(body))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	values, err := Extract(doc, wanted)
	if err != nil {
		return nil, err
	}
	tickers := make([]string, len(values))
	for i, v := range values {
		tickers[i] = v + s.Suffix
	}
	s.logger.Infof("scraped %d tickers from %s", len(tickers), pageURL)
	return tickers, nil
}

// Extract learns one rule per leaf element whose text equals a wanted value, then
// returns the distinct texts of all leaves matching a rule, in document order.
func Extract(doc *goquery.Document, wanted []string) ([]string, error) {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[strings.TrimSpace(w)] = true
	}

	rules := make(map[string]bool)
	leaves := doc.Find("body *").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return sel.Children().Length() == 0
	})
	leaves.Each(func(_ int, sel *goquery.Selection) {
		if want[strings.TrimSpace(sel.Text())] {
			rules[rule(sel)] = true
		}
	})
	if len(rules) == 0 {
		return nil, ErrNoMatch
	}

	seen := make(map[string]bool)
	var out []string
	leaves.Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" || seen[text] || !rules[rule(sel)] {
			return
		}
		seen[text] = true
		out = append(out, text)
	})
	return out, nil
}

// rule is the tag and class path from the element up to the document root.
func rule(sel *goquery.Selection) string {
	var parts []string
	for cur := sel; cur.Length() > 0; cur = cur.Parent() {
		node := goquery.NodeName(cur)
		if node == "#document" {
			break
		}
		if class, ok := cur.Attr("class"); ok {
			classes := strings.Fields(class)
			sort.Strings(classes)
			if len(classes) > 0 {
				node += "." + strings.Join(classes, ".")
			}
		}
		parts = append(parts, node)
	}
	return strings.Join(parts, "<")
}
