// Package headless drives Chrome through chromedp to take full-page screenshots.
package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/webshot/internal/capture"
)

const defaultCaptureTimeout = 30 * time.Second

// Config controls how Chrome is launched for each batch.
type Config struct {
	Headless         bool
	NoSandbox        bool
	IgnoreCertErrors bool
	// IsolatePages gives every page its own browsing context instead of sharing one per batch.
	IsolatePages   bool
	UserAgent      string
	WindowWidth    int
	WindowHeight   int
	ExecPath       string
	CaptureTimeout time.Duration
}

// Launcher implements capture.Launcher using chromedp.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// NewLauncher validates cfg and returns a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.WindowWidth < 0 || cfg.WindowHeight < 0 {
		return nil, fmt.Errorf("window size must be >= 0")
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = defaultCaptureTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger}, nil
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if l.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if l.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.cfg.IgnoreCertErrors {
		opts = append(opts, chromedp.IgnoreCertErrors)
	}
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.WindowWidth > 0 && l.cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts Chrome and, unless pages are isolated, one shared browsing context.
// The browser outlives ctx cancellation; call Session.Close to tear it down.
func (l *Launcher) Launch(ctx context.Context) (capture.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	s := &Session{
		cfg:           l.cfg,
		logger:        l.logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	if l.cfg.IsolatePages {
		return s, nil
	}

	sharedCtx, sharedCancel := chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(sharedCtx, s.tabSetup()); err != nil {
		sharedCancel()
		if cerr := s.Close(); cerr != nil {
			l.logger.Debug("close after context failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("create browsing context: %w", err)
	}
	s.sharedCancel = sharedCancel
	s.browserContextID = chromedp.FromContext(sharedCtx).BrowserContextID
	return s, nil
}

// Session is one Chrome process scoped to a batch.
type Session struct {
	cfg    Config
	logger *zap.Logger

	allocCancel      context.CancelFunc
	browserCtx       context.Context
	browserCancel    context.CancelFunc
	sharedCancel     context.CancelFunc
	browserContextID cdp.BrowserContextID

	closeOnce sync.Once
	closeErr  error
}

// NewPage opens a tab in the shared browsing context, or in a fresh one when pages are isolated.
func (s *Session) NewPage(_ context.Context) (capture.Page, error) {
	opt := chromedp.WithNewBrowserContext()
	if s.browserContextID != "" {
		opt = chromedp.WithExistingBrowserContext(s.browserContextID)
	}
	tabCtx, cancel := chromedp.NewContext(s.browserCtx, opt)
	if err := chromedp.Run(tabCtx, s.tabSetup()); err != nil {
		cancel()
		return nil, &capture.PageError{Op: "open page", Err: fmt.Errorf("open page: %w", err)}
	}
	return &Page{ctx: tabCtx, cancel: cancel, captureTimeout: s.cfg.CaptureTimeout}, nil
}

func (s *Session) tabSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if s.cfg.IgnoreCertErrors {
			if err := security.SetIgnoreCertificateErrors(true).Do(ctx); err != nil {
				return fmt.Errorf("ignore certificate errors: %w", err)
			}
		}
		if s.cfg.WindowWidth > 0 && s.cfg.WindowHeight > 0 {
			viewport := emulation.SetDeviceMetricsOverride(int64(s.cfg.WindowWidth), int64(s.cfg.WindowHeight), 1, false)
			if err := viewport.Do(ctx); err != nil {
				return fmt.Errorf("set viewport: %w", err)
			}
		}
		return nil
	})
}

// Close disposes the shared browsing context and shuts Chrome down.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.sharedCancel != nil {
			s.sharedCancel()
		}
		if err := chromedp.Cancel(s.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.browserCancel()
		s.allocCancel()
	})
	return s.closeErr
}

// Page is a single Chrome tab.
type Page struct {
	ctx            context.Context
	cancel         context.CancelFunc
	captureTimeout time.Duration
	closeOnce      sync.Once
}

// Goto navigates to url and waits for the load event, bounded by timeout.
func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	taskCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(taskCtx, chromedp.Navigate(url)); err != nil {
		return pageError("navigate", url, taskCtx, err)
	}
	return nil
}

// Screenshot captures the full scrollable page as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	taskCtx, cancel := context.WithTimeout(p.ctx, p.captureTimeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	var buf []byte
	var location string
	// Quality 100 makes chromedp request PNG instead of JPEG.
	if err := chromedp.Run(taskCtx,
		chromedp.Location(&location),
		chromedp.FullScreenshot(&buf, 100),
	); err != nil {
		return nil, pageError("screenshot", location, taskCtx, err)
	}
	return buf, nil
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}

func pageError(op, url string, taskCtx context.Context, err error) *capture.PageError {
	return &capture.PageError{
		Op:      op,
		URL:     url,
		Timeout: isTimeout(taskCtx, err),
		Err:     err,
	}
}

func isTimeout(taskCtx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded)
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil || parent.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
