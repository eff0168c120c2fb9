// Package headless renders trend pages in a real browser so client-side
// content is present in the returned HTML.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/metrics"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultMarkerTimeout     = 10 * time.Second
	defaultQuietPeriod       = 5 * time.Second
	defaultScrollSettle      = 2 * time.Second
	renderKind               = "render"
)

// contentMarkers signal that the trends list (or at least the page shell
// around it) has been attached to the DOM.
var contentMarkers = []string{
	"table.enOdEe-wZVHld-zg7Cn",
	"[jsname='oKdM2c']",
	".jvkLtd",
	".mZ3RIc",
	"[data-ved]",
	"div[role='main']",
	"div[role='article']",
}

const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Config controls the behavior of the browser renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	ExecPath          string
	NavigationTimeout time.Duration
	MarkerTimeout     time.Duration
	QuietPeriod       time.Duration
	ScrollSettle      time.Duration
}

// Renderer implements trends.Renderer using chromedp and headless Chrome.
type Renderer struct {
	cfg         Config
	logger      *zap.Logger
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a renderer. The browser process starts lazily on the
// first Render call.
func NewChromedp(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	cfg = withDefaults(cfg)
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	return &Renderer{
		cfg:         cfg,
		logger:      logger,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

func withDefaults(cfg Config) Config {
	if cfg.UserAgent == "" {
		cfg.UserAgent = trends.BrowserUserAgent
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.MarkerTimeout <= 0 {
		cfg.MarkerTimeout = defaultMarkerTimeout
	}
	if cfg.QuietPeriod < 0 {
		cfg.QuietPeriod = 0
	} else if cfg.QuietPeriod == 0 {
		cfg.QuietPeriod = defaultQuietPeriod
	}
	if cfg.ScrollSettle < 0 {
		cfg.ScrollSettle = 0
	} else if cfg.ScrollSettle == 0 {
		cfg.ScrollSettle = defaultScrollSettle
	}
	return cfg
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Close shuts down the browser allocator.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Render loads rawURL, waits for trend content to settle and returns the
// document's outer HTML. Error statuses on the main document are failures.
func (r *Renderer) Render(ctx context.Context, rawURL string) (string, error) {
	start := time.Now()
	html, err := r.render(ctx, rawURL)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveFetch(rawURL, renderKind, outcome, time.Since(start))
	return html, err
}

func (r *Renderer) render(ctx context.Context, rawURL string) (string, error) {
	if err := r.acquire(ctx); err != nil {
		return "", err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()
	// Caller cancellation must tear down the tab even though the tab is
	// parented on the long-lived allocator.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	budget := r.cfg.NavigationTimeout + r.cfg.MarkerTimeout + r.cfg.QuietPeriod + r.cfg.ScrollSettle
	taskCtx, cancel := context.WithTimeout(taskCtx, budget)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	r.logger.Info("loading page in headless browser", zap.String("url", rawURL))
	if err := chromedp.Run(taskCtx, r.setupAction(), r.navigateAction(rawURL)); err != nil {
		return "", r.wrapErr(ctx, "navigate", err)
	}
	if status, _, _ := meta.snapshot(); status >= http.StatusBadRequest {
		return "", fmt.Errorf("rendered document returned status %d", status)
	}

	r.waitForMarkers(taskCtx)

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Sleep(r.cfg.QuietPeriod),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil),
		chromedp.Sleep(r.cfg.ScrollSettle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", r.wrapErr(ctx, "capture", err)
	}
	r.logger.Info("page rendered", zap.String("url", rawURL), zap.Int("bytes", len(html)))
	return html, nil
}

func (r *Renderer) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).
			WithAcceptLanguage("en-US,en;q=0.9").Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx); err != nil {
			return fmt.Errorf("install webdriver override: %w", err)
		}
		return nil
	})
}

func (r *Renderer) navigateAction(rawURL string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
		defer cancel()
		if err := chromedp.Navigate(rawURL).Do(navCtx); err != nil {
			return err
		}
		return chromedp.WaitReady("body", chromedp.ByQuery).Do(navCtx)
	})
}

// waitForMarkers polls until any content marker is attached. Timing out is
// not fatal; the page is captured as-is.
func (r *Renderer) waitForMarkers(ctx context.Context) {
	var found bool
	err := chromedp.Run(ctx, chromedp.Poll(markerExpression(), &found,
		chromedp.WithPollingTimeout(r.cfg.MarkerTimeout),
		chromedp.WithPollingInterval(250*time.Millisecond),
	))
	switch {
	case err == nil:
		r.logger.Debug("trend content markers present")
	case errors.Is(err, chromedp.ErrPollingTimeout):
		r.logger.Warn("no expected elements found, continuing anyway",
			zap.Duration("waited", r.cfg.MarkerTimeout),
		)
	default:
		r.logger.Warn("marker wait failed", zap.Error(err))
	}
}

func markerExpression() string {
	quoted := make([]string, 0, len(contentMarkers))
	for _, m := range contentMarkers {
		quoted = append(quoted, strconv.Quote(m))
	}
	return "[" + strings.Join(quoted, ",") + "].some(s => document.querySelector(s) !== null)"
}

func (r *Renderer) wrapErr(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("headless %s canceled: %w", step, ctxErr)
	}
	return fmt.Errorf("headless %s: %w", step, err)
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

// responseMeta records the main document's response as seen by the browser.
type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			for _, line := range strings.Split(v, "\n") {
				headers.Add(key, line)
			}
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Only the first document response counts; later ones are iframes.
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.headers.Clone(), m.url
}
