// Package browser drives the headless Chrome session used to read catalog
// pages. It owns the anti-detection surface: fingerprint randomization,
// cookie replay, resource blocking, and stealth script injection.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrNavigationTimeout reports that a page navigation did not complete
// within the configured deadline.
var ErrNavigationTimeout = errors.New("navigation timeout")

// stateSelector locates the embedded page state script tag.
const stateSelector = `script#__PRELOADED_STATE__`

// refererHeader is pinned to the marketplace root on every navigation.
const refererHeader = "https://www.mercadolibre.com.ar"

// Non-essential resource types are aborted at the network layer to cut
// bandwidth and detection surface.
var blockedResourceTypes = map[network.ResourceType]bool{
	network.ResourceTypeImage:      true,
	network.ResourceTypeStylesheet: true,
	network.ResourceTypeFont:       true,
	network.ResourceTypeMedia:      true,
	network.ResourceTypeOther:      true,
}

// Config controls the browser session.
type Config struct {
	UserAgents   []string
	CookiesPath  string
	NavTimeout   time.Duration
	StateTimeout time.Duration
}

// Session is one isolated browser session. Each crawl owns its own Session;
// there is no shared state between concurrently crawled products.
type Session struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	cfg         Config
	logger      *zap.Logger
}

// NewSession launches an isolated headless browser with a randomized client
// fingerprint: one user agent drawn from the rotation pool, fixed es-AR
// locale and Buenos Aires timezone, replayed cookies when present, stealth
// script applied, and non-essential resources blocked.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if len(cfg.UserAgents) == 0 {
		return nil, fmt.Errorf("user agent pool is empty")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	if cfg.StateTimeout <= 0 {
		cfg.StateTimeout = 15 * time.Second
	}
	userAgent := cfg.UserAgents[rand.Intn(len(cfg.UserAgents))]

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		cfg:         cfg,
		logger:      logger,
	}

	if err := chromedp.Run(tabCtx, s.setupActions(userAgent)...); err != nil {
		s.Close()
		return nil, fmt.Errorf("session setup: %w", err)
	}
	s.interceptRequests()

	logger.Debug("browser session ready", zap.String("user_agent", userAgent))
	return s, nil
}

func (s *Session) setupActions(userAgent string) []chromedp.Action {
	return []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.Enable().Do(ctx); err != nil {
				return fmt.Errorf("enable network domain: %w", err)
			}
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
			if err := emulation.SetTimezoneOverride("America/Argentina/Buenos_Aires").Do(ctx); err != nil {
				return fmt.Errorf("set timezone: %w", err)
			}
			if err := emulation.SetLocaleOverride().WithLocale("es-AR").Do(ctx); err != nil {
				return fmt.Errorf("set locale: %w", err)
			}
			headers := network.Headers{"Referer": refererHeader}
			if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
				return fmt.Errorf("set referer: %w", err)
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
				return fmt.Errorf("apply stealth script: %w", err)
			}
			return s.replayCookies(ctx)
		}),
		fetch.Enable(),
	}
}

// replayCookies loads the persisted cookie set, if any, and injects it into
// the session. A missing cookie file is not an error; a malformed one is.
func (s *Session) replayCookies(ctx context.Context) error {
	cookies, err := LoadCookies(s.cfg.CookiesPath)
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}
	if err := network.SetCookies(cookies).Do(ctx); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	s.logger.Debug("session cookies replayed", zap.Int("count", len(cookies)))
	return nil
}

// interceptRequests aborts blocked resource types and lets everything else
// through. Runs for the lifetime of the tab.
func (s *Session) interceptRequests() {
	c := chromedp.FromContext(s.tabCtx)
	execCtx := cdp.WithExecutor(s.tabCtx, c.Target)
	chromedp.ListenTarget(s.tabCtx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			if blockedResourceTypes[paused.ResourceType] {
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
				return
			}
			_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
		}()
	})
}

// FetchState navigates to the URL and returns the raw embedded state JSON
// from the page's state script tag. A navigation deadline maps to
// ErrNavigationTimeout so the caller can distinguish it from other
// failures.
func (s *Session) FetchState(ctx context.Context, url string) ([]byte, error) {
	navCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.NavTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
		}
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	stateCtx, cancelState := context.WithTimeout(s.tabCtx, s.cfg.StateTimeout)
	defer cancelState()

	var stateJSON string
	err := chromedp.Run(stateCtx,
		chromedp.JavascriptAttribute(stateSelector, "textContent", &stateJSON, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: state script on %s", ErrNavigationTimeout, url)
		}
		return nil, fmt.Errorf("extract state script: %w", err)
	}
	return []byte(stateJSON), nil
}

// Close tears down the tab and the browser process. Safe to call more than
// once; always called on every crawl exit path.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.tabCancel()
	s.allocCancel()
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
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
