package trends

import (
	"context"
	"io"
	"time"
)

// Service produces a Collection for a Query.
type Service interface {
	Fetch(ctx context.Context, q Query) (Collection, error)
}

// Renderer returns the fully rendered HTML for a URL using a real browser.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// Fetcher performs a plain network request.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// FeedSource returns the titles of the alternate syndication feed for a location.
type FeedSource interface {
	Titles(ctx context.Context, geo, language string) ([]string, error)
}

// Extractor turns an HTML document into ordered topics. Implementations never fail.
type Extractor interface {
	Extract(html string) []Topic
	ExtractPrimary(html string) []Topic
	HasTableMarkers(html string) bool
}

// ShellDetector reports whether a raw response looks like an unrendered JS shell.
type ShellDetector interface {
	LooksUnrendered(statusCode int, body []byte) bool
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Limiter paces upstream requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
