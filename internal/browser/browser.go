// Package browser implements the rendering collaborator on top of chromedp
// and headless Chrome. A Session owns its own browser process so that the
// proxy and fingerprint of its identity apply for the whole session
// lifetime.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

// Config controls browser process behavior.
type Config struct {
	Headless bool
}

// Launcher opens sessions with a fetch identity applied. Chrome pins the
// proxy at the process level, so each session gets a dedicated allocator.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

var _ crawler.SessionFactory = (*Launcher)(nil)

// NewLauncher creates a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	return &Launcher{cfg: cfg, logger: logger}
}

// NewSession starts a browser process, applies the identity fingerprint and
// returns a live session. Failure here is fatal to the run: no crawling can
// proceed without a browser.
func (l *Launcher) NewSession(ctx context.Context, id crawler.FetchIdentity) (crawler.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(id.UserAgent),
	)
	if id.Proxy != nil {
		opts = append(opts, chromedp.ProxyServer(id.Proxy.Server()))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		taskCancel()
		allocCancel()
	}

	sess := &Session{
		ctx:    taskCtx,
		cancel: cancel,
		meta:   newResponseMeta(),
		logger: l.logger,
	}
	chromedp.ListenTarget(taskCtx, sess.meta.captureEvent)

	if id.Proxy != nil {
		if err := enableProxyAuth(taskCtx, *id.Proxy); err != nil {
			cancel()
			return nil, fmt.Errorf("enable proxy auth: %w", err)
		}
	}
	if err := chromedp.Run(taskCtx, setupActions(id)...); err != nil {
		cancel()
		return nil, fmt.Errorf("launch browser session: %w", err)
	}

	l.logger.Info("browser session opened",
		zap.Bool("proxied", id.Proxy != nil),
		zap.Int64("viewport_width", id.ViewportWidth),
		zap.Int64("viewport_height", id.ViewportHeight),
	)
	return sess, nil
}

// enableProxyAuth intercepts auth challenges from the proxy and answers
// them with the endpoint credentials.
func enableProxyAuth(ctx context.Context, proxy crawler.ProxyEndpoint) error {
	if err := chromedp.Run(ctx, cdpfetch.Enable().WithHandleAuthRequests(true)); err != nil {
		return err
	}
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *cdpfetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(ctx, cdpfetch.ContinueRequest(e.RequestID))
			}()
		case *cdpfetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(ctx, cdpfetch.ContinueWithAuth(e.RequestID, &cdpfetch.AuthChallengeResponse{
					Response: cdpfetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.Username,
					Password: proxy.Password,
				}))
			}()
		}
	})
	return nil
}

func setupActions(id crawler.FetchIdentity) []chromedp.Action {
	return []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(defaultHeaders()),
		chromedp.EmulateViewport(id.ViewportWidth, id.ViewportHeight),
		emulation.SetGeolocationOverride().
			WithLatitude(id.Latitude).
			WithLongitude(id.Longitude).
			WithAccuracy(id.GeoAccuracy),
		emulation.SetTimezoneOverride(id.Timezone),
		emulation.SetLocaleOverride().WithLocale(id.Locale),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	}
}

func defaultHeaders() network.Headers {
	return network.Headers{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
	}
}

// Session is one live page backed by a dedicated browser process.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	meta   *responseMeta
	logger *zap.Logger
}

var _ crawler.Session = (*Session)(nil)

// Navigate loads url and waits for the document body, then a short settle
// pause for late script work. The response status is captured from the
// network domain.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) (crawler.NavResult, error) {
	if err := ctx.Err(); err != nil {
		return crawler.NavResult{}, err
	}
	s.meta.reset()
	navCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
	)
	if err != nil {
		return crawler.NavResult{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	status, received := s.meta.snapshot()
	return crawler.NavResult{Status: status, Received: received}, nil
}

// Title returns the current document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, 5*time.Second, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// Content returns the full rendered markup of the current page.
func (s *Session) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 10*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture content: %w", err)
	}
	return html, nil
}

// Text waits up to timeout for selector and returns its trimmed inner text.
func (s *Session) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var out string
	if err := s.run(ctx, timeout, chromedp.Text(selector, &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("text %s: %w", selector, err)
	}
	return strings.TrimSpace(out), nil
}

// TextAll returns the trimmed inner text of every node matching selector.
func (s *Session) TextAll(ctx context.Context, selector string, timeout time.Duration) ([]string, error) {
	js := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.innerText.trim())`, selector)
	var out []string
	if err := s.run(ctx, timeout, chromedp.Evaluate(js, &out)); err != nil {
		return nil, fmt.Errorf("text all %s: %w", selector, err)
	}
	return out, nil
}

// Attr waits for selector and returns the named attribute.
func (s *Session) Attr(ctx context.Context, selector, attr string, timeout time.Duration) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := s.run(ctx, timeout, chromedp.AttributeValue(selector, attr, &value, &ok, chromedp.ByQuery)); err != nil {
		return "", false, fmt.Errorf("attr %s[%s]: %w", selector, attr, err)
	}
	return strings.TrimSpace(value), ok, nil
}

// Count returns how many nodes currently match selector.
func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	js := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	var n int
	if err := s.run(ctx, 5*time.Second, chromedp.Evaluate(js, &n)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return n, nil
}

// Location returns the current page URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, 5*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Scroll scrolls the viewport down by fraction of its height.
func (s *Session) Scroll(ctx context.Context, fraction float64) error {
	js := fmt.Sprintf(`window.scrollBy(0, window.innerHeight * %f)`, fraction)
	if err := s.run(ctx, 5*time.Second, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// MoveMouse dispatches a pointer move to the given coordinates.
func (s *Session) MoveMouse(ctx context.Context, x, y float64) error {
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	})
	if err := s.run(ctx, 5*time.Second, action); err != nil {
		return fmt.Errorf("move mouse: %w", err)
	}
	return nil
}

// Close releases the page and its browser process.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}
