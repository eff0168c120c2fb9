// Package trends defines the core request/response types and the acquisition
// orchestrator for trending-topic collections.
package trends

import (
	"net/http"
	"time"
)

// Default query values match the upstream "trending now" page defaults.
const (
	DefaultGeo      = "HK"
	DefaultLanguage = "en"
)

// Source identifies which acquisition step produced a Collection.
type Source string

// Acquisition steps in fallback order.
const (
	SourceRenderer   Source = "renderer"
	SourceRaw        Source = "raw"
	SourceFeed       Source = "feed"
	SourceBestEffort Source = "best_effort"
	SourceSynthetic  Source = "synthetic"
)

// Query captures the caller's request parameters. Optional fields are nil
// when unset so they can be omitted from the upstream URL.
type Query struct {
	Geo      string
	Language string
	Hours    *int
	Category *string
	Sort     *string
	Status   *string
	URL      *string
}

// Topic is one trending item extracted from the upstream page.
type Topic struct {
	Title            string   `json:"title"`
	SearchVolume     *string  `json:"search_volume"`
	Ranking          *int     `json:"ranking"`
	ChangePercentage *string  `json:"change_percentage"`
	RelatedQueries   []string `json:"related_queries"`
	URL              *string  `json:"url"`
}

// Collection is the response envelope returned to the delivery layer.
type Collection struct {
	Topics      []Topic   `json:"topics"`
	SourceURL   string    `json:"source_url"`
	Timestamp   time.Time `json:"timestamp"`
	TotalTrends int       `json:"total_trends"`
	Location    string    `json:"location"`
	Language    string    `json:"language"`
	Source      Source    `json:"-"`
}

// NewCollection builds a Collection and keeps TotalTrends in sync with Topics.
func NewCollection(q Query, sourceURL string, ts time.Time, source Source, topics []Topic) Collection {
	if topics == nil {
		topics = []Topic{}
	}
	return Collection{
		Topics:      topics,
		SourceURL:   sourceURL,
		Timestamp:   ts,
		TotalTrends: len(topics),
		Location:    q.Geo,
		Language:    q.Language,
		Source:      source,
	}
}

// FetchRequest captures everything needed for a raw network fetch.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}
