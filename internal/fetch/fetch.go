// Package fetch implements the resilient navigation engine: a bounded
// retry loop over classified outcomes, with randomized throttling delays
// and classification-specific cooldowns between attempts.
package fetch

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

// DOM signals checked during classification.
const (
	captchaFormSelector = `form[action*="/errors/validateCaptcha"]`
	robotCheckTitle     = "robot check"
)

// Cooldown ranges applied on top of the normal backoff when the site
// pushes back.
const (
	rateLimitCooldownMin = 20 * time.Second
	rateLimitCooldownMax = 30 * time.Second
	challengeCooldownMin = 30 * time.Second
	challengeCooldownMax = 45 * time.Second
)

// Config controls retry, backoff and throttling behavior.
type Config struct {
	MaxRetries        int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	DelayMin          time.Duration
	DelayMax          time.Duration
	NavTimeout        time.Duration
	RequestsPerMinute float64
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2
	}
	if c.DelayMin <= 0 {
		c.DelayMin = 5 * time.Second
	}
	if c.DelayMax < c.DelayMin {
		c.DelayMax = c.DelayMin + 5*time.Second
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	return c
}

// Engine executes navigation attempts with classification-driven retries.
type Engine struct {
	cfg       Config
	shutdown  crawler.ShutdownState
	humanizer crawler.Humanizer
	pauser    crawler.Pauser
	limiter   *rate.Limiter
	rng       *rand.Rand
	logger    *zap.Logger
}

var _ crawler.Fetcher = (*Engine)(nil)

// New constructs an Engine. The humanizer and pauser are injected so tests
// can run deterministically without timed side effects.
func New(
	cfg Config,
	shutdown crawler.ShutdownState,
	humanizer crawler.Humanizer,
	pauser crawler.Pauser,
	logger *zap.Logger,
) *Engine {
	cfg = cfg.withDefaults()
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), 1)
	}
	return &Engine{
		cfg:       cfg,
		shutdown:  shutdown,
		humanizer: humanizer,
		pauser:    pauser,
		limiter:   limiter,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    logger,
	}
}

// Fetch navigates to url, retrying up to the configured budget. The
// returned outcome is always exactly one classification. Exhausting the
// budget returns a FetchError carrying the last classification;
// ShuttingDown returns ErrShuttingDown immediately and is never retried.
func (e *Engine) Fetch(ctx context.Context, sess crawler.Session, url string) (crawler.FetchOutcome, error) {
	var outcome crawler.FetchOutcome
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if e.shutdown.ShuttingDown() {
			return crawler.FetchOutcome{Class: crawler.ClassShuttingDown}, crawler.ErrShuttingDown
		}
		if attempt > 1 {
			crawler.TotalRetries.Inc()
			e.pauser.Pause(ctx, e.backoff(attempt-1))
		}
		e.throttle(ctx)

		outcome = e.attempt(ctx, sess, url)
		crawler.TotalNavigations.Inc()
		crawler.OutcomesByClass.WithLabelValues(outcome.Class.String()).Inc()

		switch outcome.Class {
		case crawler.ClassSuccess:
			return outcome, nil
		case crawler.ClassShuttingDown:
			return outcome, crawler.ErrShuttingDown
		case crawler.ClassRateLimited:
			e.logger.Warn("rate limited, cooling down",
				zap.String("url", url), zap.Int("attempt", attempt))
			e.pauser.Pause(ctx, crawler.UniformDuration(e.rng, rateLimitCooldownMin, rateLimitCooldownMax))
		case crawler.ClassCaptchaChallenge, crawler.ClassRobotCheck:
			e.logger.Warn("anti-bot challenge, cooling down",
				zap.String("url", url),
				zap.String("classification", outcome.Class.String()),
				zap.Int("attempt", attempt))
			e.pauser.Pause(ctx, crawler.UniformDuration(e.rng, challengeCooldownMin, challengeCooldownMax))
		default:
			e.logger.Warn("navigation attempt failed",
				zap.String("url", url),
				zap.String("classification", outcome.Class.String()),
				zap.String("detail", outcome.Detail),
				zap.Int("attempt", attempt))
		}
	}
	return outcome, &crawler.FetchError{URL: url, Class: outcome.Class, Attempts: e.cfg.MaxRetries}
}

// attempt runs one navigation and classifies its result. The policy is
// evaluated in order: shutdown, missing response, rate limiting, CAPTCHA
// form, robot-check title, success.
func (e *Engine) attempt(ctx context.Context, sess crawler.Session, url string) crawler.FetchOutcome {
	nav, err := sess.Navigate(ctx, url, e.cfg.NavTimeout)

	if e.shutdown.ShuttingDown() {
		return crawler.FetchOutcome{Class: crawler.ClassShuttingDown}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return crawler.FetchOutcome{Class: crawler.ClassTimeout}
		}
		return crawler.FetchOutcome{Class: crawler.ClassTransportError, Detail: err.Error()}
	}
	if !nav.Received {
		return crawler.FetchOutcome{Class: crawler.ClassTransportError, Detail: "no response received"}
	}
	if nav.Status == http.StatusTooManyRequests || nav.Status == http.StatusServiceUnavailable {
		return crawler.FetchOutcome{Class: crawler.ClassRateLimited}
	}
	if n, cerr := sess.Count(ctx, captchaFormSelector); cerr == nil && n > 0 {
		return crawler.FetchOutcome{Class: crawler.ClassCaptchaChallenge}
	}
	if title, terr := sess.Title(ctx); terr == nil && strings.Contains(strings.ToLower(title), robotCheckTitle) {
		return crawler.FetchOutcome{Class: crawler.ClassRobotCheck}
	}

	if nav.Status >= http.StatusBadRequest {
		e.logger.Warn("page served with error status, extracting anyway",
			zap.String("url", url), zap.Int("status", nav.Status))
	}
	if e.humanizer != nil {
		if herr := e.humanizer.Browse(ctx, sess); herr != nil {
			e.logger.Warn("humanized browsing failed", zap.String("url", url), zap.Error(herr))
		}
	}
	content, cerr := sess.Content(ctx)
	if cerr != nil {
		return crawler.FetchOutcome{Class: crawler.ClassTransportError, Detail: cerr.Error()}
	}
	return crawler.FetchOutcome{Class: crawler.ClassSuccess, Content: content}
}

// backoff returns the delay before the given retry (1-based).
func (e *Engine) backoff(retry int) time.Duration {
	d := float64(e.cfg.BackoffBase)
	for i := 1; i < retry; i++ {
		d *= e.cfg.BackoffMultiplier
	}
	return time.Duration(d)
}

// throttle applies the optional rate ceiling and the randomized
// pre-request delay.
func (e *Engine) throttle(ctx context.Context) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
	}
	e.pauser.Pause(ctx, crawler.UniformDuration(e.rng, e.cfg.DelayMin, e.cfg.DelayMax))
}
