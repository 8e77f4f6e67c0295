package scraper

import "context"

// Source resolves the ticker universe by scraping a listing page.
type Source struct {
	Scraper *Scraper
	URL     string
	Samples []string
}

func (s *Source) Tickers(ctx context.Context) ([]string, error) {
	return s.Scraper.Build(ctx, s.URL, s.Samples)
}
