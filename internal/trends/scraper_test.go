package trends_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/parser"
	"github.com/JakeFAU/trends-scraper/internal/storage/memory"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

const trendsTable = `<html><body>
<table class="enOdEe-wZVHld-zg7Cn"><tbody>
<tr jsname="oKdM2c"><td class="jvkLtd"><div class="mZ3RIc">Typhoon Warning</div></td>
  <td class="dQOTjf"><div class="lqv0Cb">100K+</div></td></tr>
<tr jsname="oKdM2c"><td class="jvkLtd"><div class="mZ3RIc">Lunar New Year</div></td></tr>
</tbody></table></body></html>`

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return fixedNow }

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (r *fakeRenderer) Render(_ context.Context, _ string) (string, error) {
	r.calls++
	return r.html, r.err
}

type fakeFetcher struct {
	mu       sync.Mutex
	resp     trends.FetchResponse
	err      error
	requests []trends.FetchRequest
}

func (f *fakeFetcher) Fetch(_ context.Context, req trends.FetchRequest) (trends.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func htmlResponse(body string) trends.FetchResponse {
	return trends.FetchResponse{
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       []byte(body),
	}
}

type fakeFeed struct {
	titles []string
	err    error
	geo    string
	hl     string
}

func (f *fakeFeed) Titles(_ context.Context, geo, language string) ([]string, error) {
	f.geo, f.hl = geo, language
	return f.titles, f.err
}

type fakeDetector struct{ called bool }

func (d *fakeDetector) LooksUnrendered(int, []byte) bool {
	d.called = true
	return true
}

func newScraper(t *testing.T, cfg trends.Config, deps trends.Collaborators) *trends.Scraper {
	t.Helper()
	if deps.Extractor == nil {
		deps.Extractor = parser.New(zap.NewNop())
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock{}
	}
	s, err := trends.New(cfg, deps, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := trends.New(trends.Config{}, trends.Collaborators{Extractor: parser.New(nil)}, nil)
	require.Error(t, err)

	_, err = trends.New(trends.Config{}, trends.Collaborators{Fetcher: &fakeFetcher{}}, nil)
	require.Error(t, err)
}

func TestFetchRendererShortCircuits(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{html: trendsTable}
	fetcher := &fakeFetcher{}
	s := newScraper(t, trends.Config{}, trends.Collaborators{Renderer: renderer, Fetcher: fetcher})

	got, err := s.Fetch(context.Background(), trends.Query{Geo: "HK", Language: "en"})
	require.NoError(t, err)

	require.Equal(t, trends.SourceRenderer, got.Source)
	require.Equal(t, 2, got.TotalTrends)
	require.Equal(t, "Typhoon Warning", got.Topics[0].Title)
	require.Equal(t, "100K+ searches", *got.Topics[0].SearchVolume)
	require.Equal(t, "https://trends.google.com/trending?geo=HK&hl=en", got.SourceURL)
	require.Equal(t, fixedNow, got.Timestamp)
	require.Equal(t, "HK", got.Location)
	require.Equal(t, "en", got.Language)
	require.Empty(t, fetcher.requests, "raw fetch must not run after a successful render")
}

func TestFetchRendererFailureFallsBackToRaw(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{err: errors.New("browser crashed")}
	fetcher := &fakeFetcher{resp: htmlResponse(trendsTable)}
	s := newScraper(t, trends.Config{}, trends.Collaborators{Renderer: renderer, Fetcher: fetcher})

	got, err := s.Fetch(context.Background(), trends.Query{Geo: "US", Language: "en"})
	require.NoError(t, err)

	require.Equal(t, 1, renderer.calls)
	require.Equal(t, trends.SourceRaw, got.Source)
	require.Len(t, got.Topics, 2)
	require.Len(t, fetcher.requests, 1)
	require.Equal(t, trends.BrowserUserAgent, fetcher.requests[0].Headers.Get("User-Agent"))
}

func TestFetchRenderedPageWithoutTopicsFallsBackToRaw(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{html: "<html><body></body></html>"}
	fetcher := &fakeFetcher{resp: htmlResponse(trendsTable)}
	s := newScraper(t, trends.Config{}, trends.Collaborators{Renderer: renderer, Fetcher: fetcher})

	got, err := s.Fetch(context.Background(), trends.Query{})
	require.NoError(t, err)
	require.Equal(t, trends.SourceRaw, got.Source)
}

func TestFetchAppliesQueryDefaults(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{resp: htmlResponse(trendsTable)}
	s := newScraper(t, trends.Config{}, trends.Collaborators{Fetcher: fetcher})

	got, err := s.Fetch(context.Background(), trends.Query{Hours: trends.IntPtr(24)})
	require.NoError(t, err)

	require.Equal(t, trends.DefaultGeo, got.Location)
	require.Equal(t, trends.DefaultLanguage, got.Language)
	require.Equal(t, "https://trends.google.com/trending?geo=HK&hl=en&hours=24", fetcher.requests[0].URL)
}

func TestFetchOverrideURL(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{resp: htmlResponse(trendsTable)}
	s := newScraper(t, trends.Config{}, trends.Collaborators{Fetcher: fetcher})

	override := "https://trends.google.com/trending?geo=TW&hl=zh-TW&status=active"
	got, err := s.Fetch(context.Background(), trends.Query{Geo: "HK", URL: trends.StringPtr(override)})
	require.NoError(t, err)
	require.Equal(t, override, got.SourceURL)
	require.Equal(t, override, fetcher.requests[0].URL)
}

func TestFetchNonHTMLContentTypeStillExtracts(t *testing.T) {
	t.Parallel()

	resp := htmlResponse(trendsTable)
	resp.Headers.Set("Content-Type", "application/octet-stream")
	detector := &fakeDetector{}
	s := newScraper(t, trends.Config{}, trends.Collaborators{
		Fetcher:  &fakeFetcher{resp: resp},
		Detector: detector,
	})

	got, err := s.Fetch(context.Background(), trends.Query{})
	require.NoError(t, err)
	require.Equal(t, trends.SourceRaw, got.Source)
	require.True(t, detector.called)
}

func TestFetchFeedFallbackCapsTitles(t *testing.T) {
	t.Parallel()

	titles := []string{"  ", ""}
	for i := 1; i <= 25; i++ {
		titles = append(titles, fmt.Sprintf(" Feed Topic %d ", i))
	}
	feed := &fakeFeed{titles: titles}
	s := newScraper(t, trends.Config{}, trends.Collaborators{
		Fetcher: &fakeFetcher{resp: htmlResponse("<html><body><div>loading</div></body></html>")},
		Feed:    feed,
	})

	got, err := s.Fetch(context.Background(), trends.Query{Geo: "SG", Language: "en"})
	require.NoError(t, err)

	require.Equal(t, trends.SourceFeed, got.Source)
	require.Equal(t, 20, got.TotalTrends)
	require.Equal(t, "Feed Topic 1", got.Topics[0].Title)
	require.Equal(t, "Feed Topic 20", got.Topics[19].Title)
	for i, topic := range got.Topics {
		require.Equal(t, i+1, *topic.Ranking)
		require.Nil(t, topic.SearchVolume)
	}
	require.Equal(t, "SG", feed.geo)
	require.Equal(t, "en", feed.hl)
}

func TestFetchBestEffortAfterFeedFailure(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Google</title></head><body><p>Harbour Festival</p></body></html>`
	s := newScraper(t, trends.Config{}, trends.Collaborators{
		Fetcher: &fakeFetcher{resp: htmlResponse(page)},
		Feed:    &fakeFeed{err: errors.New("feed unavailable")},
	})

	got, err := s.Fetch(context.Background(), trends.Query{})
	require.NoError(t, err)
	require.Equal(t, trends.SourceBestEffort, got.Source)
	require.Equal(t, []string{"Harbour Festival"}, titlesOf(got))
}

func TestFetchSyntheticWhenNothingExtracted(t *testing.T) {
	t.Parallel()

	s := newScraper(t, trends.Config{}, trends.Collaborators{
		Fetcher: &fakeFetcher{resp: htmlResponse("<html><body>nothing here</body></html>")},
		Feed:    &fakeFeed{},
	})

	got, err := s.Fetch(context.Background(), trends.Query{})
	require.NoError(t, err)
	require.Equal(t, trends.SourceSynthetic, got.Source)
	require.Equal(t, titlesOf(trends.NewCollection(trends.Query{}, "", fixedNow, "", trends.SampleTopics())), titlesOf(got))
}

func TestFetchNetworkFailureServesSyntheticData(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{err: fmt.Errorf("get page: %w", trends.ErrNetwork)}
	feed := &fakeFeed{titles: []string{"never used"}}
	s := newScraper(t, trends.Config{}, trends.Collaborators{Fetcher: fetcher, Feed: feed})

	got, err := s.Fetch(context.Background(), trends.Query{Geo: "HK", Language: "en"})
	require.NoError(t, err)

	require.Equal(t, trends.SourceSynthetic, got.Source)
	require.Equal(t, 10, got.TotalTrends)
	require.Equal(t, "Artificial Intelligence", got.Topics[0].Title)
	require.Empty(t, feed.geo, "feed must not be consulted after a network failure")
}

func TestFetchUnexpectedErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("malformed request")
	s := newScraper(t, trends.Config{}, trends.Collaborators{Fetcher: &fakeFetcher{err: boom}})

	_, err := s.Fetch(context.Background(), trends.Query{})
	require.ErrorIs(t, err, boom)
}

func TestFetchCancellationPropagates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := &fakeFetcher{err: &url.Error{Op: "Get", URL: "https://x", Err: context.Canceled}}
	s := newScraper(t, trends.Config{}, trends.Collaborators{Fetcher: fetcher})

	_, err := s.Fetch(ctx, trends.Query{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchSavesSnapshot(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	s := newScraper(t, trends.Config{SaveSnapshots: true, SnapshotPrefix: "pages"}, trends.Collaborators{
		Fetcher:   &fakeFetcher{resp: htmlResponse(trendsTable)},
		Snapshots: store,
	})

	_, err := s.Fetch(context.Background(), trends.Query{Geo: "HK"})
	require.NoError(t, err)

	body, contentType, ok := store.Object("pages/hk/20250102T030405Z-raw.html")
	require.True(t, ok, "stored paths: %v", store.Paths())
	require.Equal(t, trendsTable, string(body))
	require.True(t, strings.HasPrefix(contentType, "text/html"))
}

func TestFetchSkipsSnapshotWhenDisabled(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	s := newScraper(t, trends.Config{}, trends.Collaborators{
		Fetcher:   &fakeFetcher{resp: htmlResponse(trendsTable)},
		Snapshots: store,
	})

	_, err := s.Fetch(context.Background(), trends.Query{})
	require.NoError(t, err)
	require.Empty(t, store.Paths())
}

type fakeLimiter struct {
	err  error
	urls []string
}

func (l *fakeLimiter) Wait(_ context.Context, rawURL string) error {
	l.urls = append(l.urls, rawURL)
	return l.err
}

func TestFetchWaitsOnLimiter(t *testing.T) {
	t.Parallel()

	limiter := &fakeLimiter{}
	s := newScraper(t, trends.Config{}, trends.Collaborators{
		Fetcher: &fakeFetcher{resp: htmlResponse(trendsTable)},
		Limiter: limiter,
	})

	_, err := s.Fetch(context.Background(), trends.Query{Geo: "HK", Language: "en"})
	require.NoError(t, err)
	require.Equal(t, []string{"https://trends.google.com/trending?geo=HK&hl=en"}, limiter.urls)
}

func TestFetchLimiterErrorPropagates(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{resp: htmlResponse(trendsTable)}
	s := newScraper(t, trends.Config{}, trends.Collaborators{
		Fetcher: fetcher,
		Limiter: &fakeLimiter{err: context.DeadlineExceeded},
	})

	_, err := s.Fetch(context.Background(), trends.Query{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, fetcher.requests)
}

func titlesOf(c trends.Collection) []string {
	out := make([]string, 0, len(c.Topics))
	for _, topic := range c.Topics {
		out = append(out, topic.Title)
	}
	return out
}
