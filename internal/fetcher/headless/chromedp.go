// Package headless renders pages in headless Chrome via chromedp.
package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
)

const defaultNavigationTimeout = 30 * time.Second

// linksScript collects every anchor href as the browser resolved it.
const linksScript = `Array.from(document.querySelectorAll("a[href]"), a => a.href).filter(Boolean)`

// Config controls the behavior of the headless renderer.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// NoSandbox adds --no-sandbox and --disable-setuid-sandbox, needed when
	// Chrome runs as root inside a container.
	NoSandbox bool
	ExecPath  string
	Logger    *zap.Logger
}

// Renderer implements crawler.Renderer with one shared browser and a fresh
// tab per Render call.
type Renderer struct {
	cfg     Config
	limiter chan struct{}
	logger  *zap.Logger

	mu            sync.Mutex
	browser       context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// New validates cfg and returns an unstarted renderer.
func New(cfg Config) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, errors.New("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("headless"),
	}, nil
}

// allocatorOptions builds the Chrome launch flags.
func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if r.cfg.NoSandbox {
		opts = append(opts,
			chromedp.NoSandbox,
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}
	if r.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.cfg.UserAgent))
	}
	return opts
}

// Start launches the browser. Calling Start on a started renderer is a no-op.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), r.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(r.logger.Sugar().Debugf))
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}
	r.browser = browserCtx
	r.browserCancel = browserCancel
	r.allocCancel = allocCancel
	r.logger.Info("Browser started", zap.Bool("no_sandbox", r.cfg.NoSandbox))
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	r.browserCancel()
	r.allocCancel()
	r.browser, r.browserCancel, r.allocCancel = nil, nil, nil
	r.logger.Info("Browser closed")
	return nil
}

func (r *Renderer) browserContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.browser
}

// Render navigates to rawURL, waits for network quiescence and returns the
// rendered DOM plus every link on the page. The tab is closed on return.
func (r *Renderer) Render(ctx context.Context, rawURL string) (crawler.RenderedPage, error) {
	browser := r.browserContext()
	if browser == nil {
		return crawler.RenderedPage{}, crawler.NewFetchError(crawler.ErrRendererUnavailable, rawURL, nil)
	}
	if err := r.acquire(ctx); err != nil {
		return crawler.RenderedPage{}, err
	}
	defer r.release()

	tabCtx, tabCancel := chromedp.NewContext(browser)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	idle := newIdleWatcher()
	chromedp.ListenTarget(tabCtx, idle.onEvent)

	start := time.Now()
	var (
		markup   string
		finalURL string
		links    []string
	)
	err := chromedp.Run(tabCtx,
		r.setupAction(idle),
		chromedp.Navigate(rawURL),
		idle.wait(),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		chromedp.Evaluate(linksScript, &links),
	)
	if err != nil {
		return crawler.RenderedPage{}, r.classify(ctx, rawURL, err)
	}
	if finalURL == "" {
		finalURL = rawURL
	}
	return crawler.RenderedPage{
		URL:      finalURL,
		Markup:   markup,
		Links:    links,
		Duration: time.Since(start),
	}, nil
}

func (r *Renderer) setupAction(idle *idleWatcher) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("read frame tree: %w", err)
		}
		idle.track(tree.Frame.ID)
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// classify maps a chromedp failure onto the crawl error taxonomy. A caller
// cancellation is returned as is.
func (r *Renderer) classify(ctx context.Context, rawURL string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("render %s: %w", rawURL, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return crawler.NewFetchError(crawler.ErrNavigationTimeout, rawURL,
			fmt.Errorf("no network quiescence within %s", r.cfg.NavigationTimeout))
	}
	return crawler.NewFetchError(crawler.ErrNavigation, rawURL, err)
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

// idleWatcher signals the first main-frame networkIdle lifecycle event that
// follows a main-frame document init, so neither a stale about:blank idle nor
// an iframe settling early is mistaken for the navigated page. Events are
// ignored until track names the main frame.
type idleWatcher struct {
	mu      sync.Mutex
	frameID cdp.FrameID
	sawInit bool
	fired   bool
	idle    chan struct{}
}

func newIdleWatcher() *idleWatcher {
	return &idleWatcher{idle: make(chan struct{})}
}

func (w *idleWatcher) track(frameID cdp.FrameID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frameID = frameID
}

func (w *idleWatcher) onEvent(ev any) {
	lifecycle, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frameID == "" || lifecycle.FrameID != w.frameID {
		return
	}
	switch lifecycle.Name {
	case "init":
		w.sawInit = true
	case "networkIdle":
		if w.sawInit && !w.fired {
			w.fired = true
			close(w.idle)
		}
	}
}

func (w *idleWatcher) wait() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		select {
		case <-w.idle:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait for network idle: %w", ctx.Err())
		}
	})
}
