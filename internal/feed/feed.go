// Package feed reads trending titles from the syndicated daily-trends feed.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/JakeFAU/trends-scraper/internal/metrics"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

const (
	defaultTimeout = 15 * time.Second
	fetchKind      = "feed"
)

// Config controls the feed source.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Source implements trends.FeedSource with gofeed.
type Source struct {
	url    string
	client *http.Client
	parser *gofeed.Parser
}

// New returns a Source; zero values select the public feed and a 15s timeout.
func New(cfg Config) *Source {
	if cfg.URL == "" {
		cfg.URL = trends.DefaultFeedURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Source{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		parser: gofeed.NewParser(),
	}
}

// Titles fetches the feed for geo and language and returns item titles in
// feed order. Blank titles are skipped.
func (s *Source) Titles(ctx context.Context, geo, language string) ([]string, error) {
	target := trends.BuildFeedURL(s.url, geo, language)
	start := time.Now()
	titles, err := s.titles(ctx, target)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveFetch(target, fetchKind, outcome, time.Since(start))
	return titles, err
}

func (s *Source) titles(ctx context.Context, target string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header = trends.BrowserHeaders()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get feed: unexpected status %d", resp.StatusCode)
	}

	parsed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	titles := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		if title := strings.TrimSpace(item.Title); title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}
