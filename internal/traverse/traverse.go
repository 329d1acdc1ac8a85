// Package traverse walks category pages and product links, bounded by the
// page limit, orchestrating fetch and extraction per URL and appending
// results to the run's buffer. Single-item failures never abort the
// category crawl.
package traverse

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
	"github.com/storecrawl/storecrawl/internal/runstate"
)

const (
	gridSelector = "div.s-main-slot"
	linkSelector = "a.a-link-normal.s-no-outline"

	// Occasional longer pause between product visits, independent of the
	// per-request delay, to decorrelate request timing.
	longPauseProbability = 0.2
	longPauseMin         = 15 * time.Second
	longPauseMax         = 25 * time.Second
)

var errGridMissing = errors.New("product grid not present on page")

// Config controls traversal behavior.
type Config struct {
	BaseURL string
}

// Controller drives the category crawl over one browsing session.
type Controller struct {
	cfg       Config
	sessions  crawler.SessionFactory
	ids       crawler.IdentitySource
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	coord     *runstate.Coordinator
	pauser    crawler.Pauser
	rng       *rand.Rand
	logger    *zap.Logger
}

// New constructs a Controller.
func New(
	cfg Config,
	sessions crawler.SessionFactory,
	ids crawler.IdentitySource,
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	coord *runstate.Coordinator,
	pauser crawler.Pauser,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		cfg:       cfg,
		sessions:  sessions,
		ids:       ids,
		fetcher:   fetcher,
		extractor: extractor,
		coord:     coord,
		pauser:    pauser,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    logger,
	}
}

// CrawlCategory walks pages 1..maxPages of the category, visiting every
// product link found. The shutdown flag is honored before each page and
// before each product link.
func (c *Controller) CrawlCategory(ctx context.Context, categoryURL string, maxPages int) ([]crawler.ProductRecord, error) {
	id := c.ids.NewIdentity()
	sess, err := c.sessions.NewSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open browsing session: %w", err)
	}
	defer sess.Close()

	var collected []crawler.ProductRecord
	for page := 1; page <= maxPages; page++ {
		if c.coord.ShuttingDown() {
			break
		}
		pageURL := crawler.PageURL(categoryURL, page)
		c.logger.Info("processing category page",
			zap.Int("page", page),
			zap.Int("max_pages", maxPages))

		links, err := c.collectLinks(ctx, sess, pageURL)
		if err != nil {
			if errors.Is(err, crawler.ErrShuttingDown) {
				break
			}
			c.logger.Error("category page failed, moving on",
				zap.String("url", pageURL), zap.Error(err))
			continue
		}
		c.logger.Info("found products on page",
			zap.Int("page", page), zap.Int("count", len(links)))

		for _, link := range links {
			if c.coord.ShuttingDown() {
				break
			}
			rec, err := c.visitProduct(ctx, sess, link)
			if err != nil {
				if errors.Is(err, crawler.ErrShuttingDown) {
					break
				}
				c.logger.Error("product failed, moving on",
					zap.String("url", link), zap.Error(err))
				continue
			}
			if !rec.Empty() {
				collected = append(collected, rec)
				c.coord.Append(ctx, rec)
			}
			if c.rng.Float64() < longPauseProbability {
				c.pauser.Pause(ctx, crawler.UniformDuration(c.rng, longPauseMin, longPauseMax))
			}
		}
		c.logger.Info("completed category page", zap.Int("page", page))
	}
	return collected, nil
}

// collectLinks fetches one category page and returns the resolved product
// URLs present on it.
func (c *Controller) collectLinks(ctx context.Context, sess crawler.Session, pageURL string) ([]string, error) {
	outcome, err := c.fetcher.Fetch(ctx, sess, pageURL)
	if err != nil {
		return nil, err
	}
	return productLinks(outcome.Content, c.cfg.BaseURL)
}

// visitProduct fetches and extracts one product page. A missing required
// field is a skip, not a failure: the empty record signals the caller to
// drop it.
func (c *Controller) visitProduct(ctx context.Context, sess crawler.Session, link string) (crawler.ProductRecord, error) {
	if _, err := c.fetcher.Fetch(ctx, sess, link); err != nil {
		return crawler.ProductRecord{}, err
	}
	rec, err := c.extractor.Extract(ctx, sess)
	if err != nil {
		var missing *crawler.MissingFieldError
		if errors.As(err, &missing) {
			c.logger.Warn("product skipped, required field missing",
				zap.String("url", link),
				zap.String("field", missing.Field))
			return crawler.ProductRecord{}, nil
		}
		return crawler.ProductRecord{}, fmt.Errorf("extract product: %w", err)
	}
	return rec, nil
}

// productLinks parses the rendered category markup and resolves every
// product href against the base site origin.
func productLinks(content, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse category page: %w", err)
	}
	if doc.Find(gridSelector).Length() == 0 {
		return nil, errGridMissing
	}
	var links []string
	doc.Find(linkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved, err := crawler.ResolveLink(baseURL, href)
		if err != nil {
			return
		}
		links = append(links, resolved)
	})
	return links, nil
}
