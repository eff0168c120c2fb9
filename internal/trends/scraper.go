package trends

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/clock/system"
	"github.com/JakeFAU/trends-scraper/internal/metrics"
)

const (
	defaultFeedLimit = 20
	previewBytes     = 500
	loggedTopics     = 5
)

// Config controls the acquisition orchestrator.
type Config struct {
	BaseURL        string
	FeedLimit      int
	SaveSnapshots  bool
	SnapshotPrefix string
}

// Collaborators groups the orchestrator's dependencies. Fetcher and Extractor
// are required; a nil Renderer means browser rendering is unavailable.
type Collaborators struct {
	Renderer  Renderer
	Fetcher   Fetcher
	Feed      FeedSource
	Extractor Extractor
	Detector  ShellDetector
	Snapshots BlobStore
	Limiter   Limiter
	Clock     Clock
}

// Scraper walks the acquisition fallback chain: renderer, raw fetch,
// alternate feed, best-effort extraction, then synthetic data.
type Scraper struct {
	cfg    Config
	deps   Collaborators
	logger *zap.Logger
}

// New validates the collaborators and returns a Scraper.
func New(cfg Config, deps Collaborators, logger *zap.Logger) (*Scraper, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if deps.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.FeedLimit <= 0 {
		cfg.FeedLimit = defaultFeedLimit
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = "snapshots"
	}
	return &Scraper{cfg: cfg, deps: deps, logger: logger}, nil
}

// Fetch acquires and extracts topics for q. Network failures are recovered
// with synthetic data; any other fetch error is returned to the caller.
func (s *Scraper) Fetch(ctx context.Context, q Query) (Collection, error) {
	q = withDefaults(q)
	target := BuildURLWithBase(s.cfg.BaseURL, q)
	log := s.logger.With(
		zap.String("url", target),
		zap.String("geo", q.Geo),
		zap.String("hl", q.Language),
	)
	log.Info("fetching trends")

	if s.deps.Limiter != nil {
		if err := s.deps.Limiter.Wait(ctx, target); err != nil {
			return Collection{}, fmt.Errorf("fetch trends: %w", err)
		}
	}

	if topics, html := s.fromRenderer(ctx, target, log); len(topics) > 0 {
		return s.collect(ctx, q, target, SourceRenderer, topics, html, log), nil
	}

	log.Info("attempting raw HTTP request")
	resp, err := s.deps.Fetcher.Fetch(ctx, FetchRequest{URL: target, Headers: BrowserHeaders()})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Collection{}, fmt.Errorf("fetch trends: %w", ctxErr)
		}
		if IsNetworkError(err) {
			log.Error("raw fetch failed; serving sample data", zap.Error(err))
			return s.collect(ctx, q, target, SourceSynthetic, SampleTopics(), "", log), nil
		}
		log.Error("unexpected fetch error", zap.Error(err))
		return Collection{}, fmt.Errorf("fetch trends: %w", err)
	}
	log.Info("raw response received",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
	)

	html := string(resp.Body)
	s.inspectRaw(resp, log)

	if topics := s.fromRaw(html, log); len(topics) > 0 {
		return s.collect(ctx, q, target, SourceRaw, topics, html, log), nil
	}

	log.Warn("no topics found from main URL, trying alternate feed")
	if topics := s.fromFeed(ctx, q, log); len(topics) > 0 {
		return s.collect(ctx, q, target, SourceFeed, topics, "", log), nil
	}

	if strings.Contains(strings.ToLower(html), "google") {
		log.Warn("attempting best-effort extraction from raw HTML")
		if topics := s.deps.Extractor.Extract(html); len(topics) > 0 {
			return s.collect(ctx, q, target, SourceBestEffort, topics, html, log), nil
		}
	}

	log.Warn("no topics found from any source, using sample data")
	return s.collect(ctx, q, target, SourceSynthetic, SampleTopics(), "", log), nil
}

func (s *Scraper) fromRenderer(ctx context.Context, target string, log *zap.Logger) ([]Topic, string) {
	if s.deps.Renderer == nil {
		return nil, ""
	}
	log.Info("rendering page with headless browser")
	html, err := s.deps.Renderer.Render(ctx, target)
	if err != nil {
		log.Warn("renderer failed; falling back to raw HTTP request", zap.Error(err))
		return nil, ""
	}
	topics := s.deps.Extractor.Extract(html)
	if len(topics) == 0 {
		log.Warn("rendered page produced no topics", zap.Int("bytes", len(html)))
	}
	return topics, html
}

func (s *Scraper) inspectRaw(resp FetchResponse, log *zap.Logger) {
	if ct := resp.ContentType(); !strings.Contains(ct, "text/html") {
		log.Warn("unexpected content type", zap.String("content_type", ct))
	}
	if s.deps.Detector != nil && s.deps.Detector.LooksUnrendered(resp.StatusCode, resp.Body) {
		log.Warn("raw response looks like an unrendered JavaScript shell")
	}
}

func (s *Scraper) fromRaw(html string, log *zap.Logger) []Topic {
	if !s.deps.Extractor.HasTableMarkers(html) {
		log.Warn("raw response lacks the trends table structure",
			zap.String("preview", preview(html, previewBytes)),
		)
		return nil
	}
	log.Info("found trends table structure in raw response")
	return s.deps.Extractor.ExtractPrimary(html)
}

func (s *Scraper) fromFeed(ctx context.Context, q Query, log *zap.Logger) []Topic {
	if s.deps.Feed == nil {
		return nil
	}
	titles, err := s.deps.Feed.Titles(ctx, q.Geo, q.Language)
	if err != nil {
		log.Error("alternate feed failed", zap.Error(err))
		return nil
	}
	topics := make([]Topic, 0, len(titles))
	for _, title := range titles {
		if len(topics) >= s.cfg.FeedLimit {
			break
		}
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		topics = append(topics, Topic{Title: title, Ranking: IntPtr(len(topics) + 1)})
	}
	return topics
}

func (s *Scraper) collect(
	ctx context.Context,
	q Query,
	target string,
	source Source,
	topics []Topic,
	html string,
	log *zap.Logger,
) Collection {
	now := s.deps.Clock.Now()
	collection := NewCollection(q, target, now, source, topics)
	metrics.ObserveAcquisition(string(source), collection.TotalTrends)

	log.Info("trends collected",
		zap.String("source", string(source)),
		zap.Int("total", collection.TotalTrends),
	)
	for i, topic := range topics {
		if i >= loggedTopics {
			break
		}
		log.Debug("topic",
			zap.Int("rank", i+1),
			zap.String("title", topic.Title),
			zap.Stringp("volume", topic.SearchVolume),
			zap.Stringp("change", topic.ChangePercentage),
		)
	}

	if html != "" {
		s.saveSnapshot(ctx, q, source, now, html, log)
	}
	return collection
}

func (s *Scraper) saveSnapshot(ctx context.Context, q Query, source Source, ts time.Time, html string, log *zap.Logger) {
	if !s.cfg.SaveSnapshots || s.deps.Snapshots == nil {
		return
	}
	path := fmt.Sprintf("%s/%s/%s-%s.html",
		s.cfg.SnapshotPrefix,
		strings.ToLower(q.Geo),
		ts.UTC().Format("20060102T150405Z"),
		source,
	)
	uri, err := s.deps.Snapshots.PutObject(ctx, path, "text/html; charset=utf-8", bytes.NewReader([]byte(html)))
	if err != nil {
		log.Warn("failed to save HTML snapshot", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info("HTML snapshot saved", zap.String("uri", uri))
}

func withDefaults(q Query) Query {
	if q.Geo == "" {
		q.Geo = DefaultGeo
	}
	if q.Language == "" {
		q.Language = DefaultLanguage
	}
	return q
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
