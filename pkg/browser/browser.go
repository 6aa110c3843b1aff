// Package browser drives a headless Chrome through chromedp and turns what
// the page loads into observer observations.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pagelens/pagelens/pkg/defaults"
	"github.com/pagelens/pagelens/pkg/duration"
	"github.com/pagelens/pagelens/pkg/observer"
)

// ErrNotStarted is returned by Fetch before the page has been opened.
var ErrNotStarted = errors.New("browser: session not started")

// Options configures the browser.
type Options struct {
	Headless  bool
	ExecPath  string
	Width     int
	Height    int
	UserAgent string
	Proxy     string

	// Settle is how long to keep listening after the load event.
	Settle time.Duration

	// NavigateTimeout bounds the initial navigation.
	NavigateTimeout time.Duration

	// MaxBodyBytes caps each cached script body.
	MaxBodyBytes int
}

// DefaultOptions returns headless settings with a desktop viewport.
func DefaultOptions() Options {
	return Options{
		Headless:        true,
		Width:           1920,
		Height:          1080,
		Settle:          duration.BrowserIdle,
		NavigateTimeout: duration.BrowserPage,
		MaxBodyBytes:    defaults.MaxFetchBytes,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFallback sets the fetcher used for scripts whose body the browser
// did not keep.
func WithFallback(f observer.Fetcher) Option {
	return func(s *Session) { s.fallback = f }
}

// Session observes one page in a browser. It is both the observer's
// Source and its Fetcher: script bodies come from the browser cache when
// possible.
type Session struct {
	pageURL  string
	opts     Options
	logger   *slog.Logger
	fallback observer.Fetcher

	src     *observer.ChannelSource
	tracker *tracker

	mu      sync.Mutex
	started bool
	bodyWG  sync.WaitGroup
}

// New prepares a session for pageURL. Nothing starts until Run.
func New(pageURL string, opts Options, options ...Option) *Session {
	d := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = d.Width, d.Height
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = d.NavigateTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = d.MaxBodyBytes
	}
	s := &Session{
		pageURL: pageURL,
		opts:    opts,
		logger:  slog.Default(),
		src:     observer.NewChannelSource(defaults.ChannelMedium),
		tracker: newTracker(pageURL, opts.MaxBodyBytes),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Events implements observer.Source.
func (s *Session) Events() <-chan observer.Observation {
	return s.src.Events()
}

// Fetch implements observer.Fetcher. Bodies captured from the browser are
// returned first; other URLs go to the fallback fetcher.
func (s *Session) Fetch(ctx context.Context, url string) ([]byte, error) {
	if b, ok := s.tracker.body(url); ok {
		return b, nil
	}
	if s.fallback != nil {
		return s.fallback.Fetch(ctx, url)
	}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}
	return nil, fmt.Errorf("browser: no body for %s", url)
}

func (s *Session) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if s.opts.Headless {
		opts = append(opts,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	} else {
		// later flags override the defaults
		opts = append(opts, chromedp.Flag("headless", false))
	}
	opts = append(opts,
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.WindowSize(s.opts.Width, s.opts.Height),
	)
	if s.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.opts.UserAgent))
	}
	if s.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.opts.ExecPath))
	}
	if s.opts.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(s.opts.Proxy))
	}
	return opts
}

// Run opens the page, streams observations until the page settles or ctx
// ends, then closes the event stream. The browser is shut down before Run
// returns.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return observer.ErrAlreadyRunning
	}
	s.started = true
	s.mu.Unlock()
	defer s.src.Close()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, s.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	shutdown := func() {
		var proc *os.Process
		if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
			proc = c.Browser.Process()
		}
		done := make(chan struct{})
		go func() {
			browserCancel()
			allocCancel()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(duration.BrowserShutdown):
			s.logger.Warn("browser shutdown timed out, killing process tree")
			killProcessTree(proc)
		}
	}
	defer shutdown()

	chromedp.ListenTarget(browserCtx, func(ev any) {
		s.handleEvent(browserCtx, ev)
	})

	navCtx, navCancel := context.WithTimeout(browserCtx, s.opts.NavigateTimeout)
	defer navCancel()
	s.logger.Info("opening page", slog.String("url", s.pageURL))
	if err := chromedp.Run(navCtx, network.Enable(), chromedp.Navigate(s.pageURL)); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", s.pageURL, err)
	}

	if s.opts.Settle > 0 {
		select {
		case <-time.After(s.opts.Settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	probe, err := s.probe(browserCtx)
	if err != nil {
		s.logger.Warn("page probe failed", slog.String("url", s.pageURL), slog.Any("error", err))
	} else {
		for _, ob := range probe.observations(s.tracker.documentCSP()) {
			s.src.EmitContext(ctx, ob)
		}
	}

	s.waitBodies(ctx)
	return nil
}

func (s *Session) handleEvent(ctx context.Context, ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if ob, ok := s.tracker.requestWillBeSent(e); ok {
			s.src.EmitContext(ctx, ob)
		}
	case *network.EventResponseReceived:
		s.tracker.responseReceived(e)
	case *network.EventLoadingFinished:
		f, ok := s.tracker.loadingFinished(e)
		if !ok {
			return
		}
		if f.scriptURL != "" {
			s.keepBody(ctx, e.RequestID, f)
			return
		}
		s.src.EmitContext(ctx, f.timing)
	case *network.EventLoadingFailed:
		if ob, ok := s.tracker.loadingFailed(e); ok {
			s.src.EmitContext(ctx, ob)
		}
	}
}

// keepBody reads a script body off the event loop, since chromedp does
// not allow blocking calls inside listeners, then releases the script's
// observations.
func (s *Session) keepBody(ctx context.Context, id network.RequestID, f finished) {
	s.bodyWG.Add(1)
	go func() {
		defer s.bodyWG.Done()
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			body, err := network.GetResponseBody(id).Do(ctx)
			if err != nil {
				return err
			}
			s.tracker.storeBody(f.scriptURL, body)
			return nil
		}))
		if err != nil {
			s.logger.Debug("response body unavailable", slog.String("url", f.scriptURL), slog.Any("error", err))
		}
		if f.resource != nil {
			s.src.EmitContext(ctx, *f.resource)
		}
		s.src.EmitContext(ctx, f.timing)
	}()
}

func (s *Session) waitBodies(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.bodyWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(duration.BrowserShutdown):
	}
}
