package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"SVIXScreener/internal/model"

	"github.com/guregu/null/v6"
)

// RESTFetcher implements Fetcher against a self-hosted market-data REST service.
type RESTFetcher struct {
	BaseURL  string
	APIKey   string
	Location *time.Location // exchange time zone for bar dates
	Client   *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, loc *time.Location) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &RESTFetcher{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Location: loc,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape of one daily bar.
type restBar struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// restQuote is the expected JSON shape of the metadata endpoint.
type restQuote struct {
	Name      null.String `json:"name"`
	Price     null.Float  `json:"price"`
	MarketCap null.Float  `json:"market_cap"`
}

func (f *RESTFetcher) FetchHistory(ctx context.Context, symbol string, start time.Time) (model.HistoricalSeries, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", start.Format("2006-01-02"))
	var raw []restBar
	if err := f.getJSON(ctx, "/api/v1/bars/daily?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	bars := make(model.HistoricalSeries, 0, len(raw))
	for _, rb := range raw {
		d, err := time.ParseInLocation("2006-01-02", rb.Date, f.Location)
		if err != nil {
			return nil, fmt.Errorf("bar date %q: %w", rb.Date, err)
		}
		bars = append(bars, model.Bar{
			Time:   d,
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		})
	}
	return normalize(bars), nil
}

func (f *RESTFetcher) FetchMetadata(ctx context.Context, symbol string) (model.TickerMetadata, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	var result restQuote
	if err := f.getJSON(ctx, "/api/v1/quote?"+q.Encode(), &result); err != nil {
		return model.TickerMetadata{}, fmt.Errorf("fetch quote: %w", err)
	}
	return model.TickerMetadata{
		Name:         result.Name,
		CurrentPrice: result.Price,
		MarketCap:    result.MarketCap,
	}, nil
}

func (f *RESTFetcher) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
