// Package extract reads rendered product pages into structured records.
// The site's markup is unstable across product types, so every optional
// field is probed against a chain of known DOM shapes and the first hit
// wins; a missing optional field never fails the record.
package extract

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

// Selector waits: the required title gets a long wait, optional fields a
// short per-candidate one.
const (
	titleWait = 15 * time.Second
	fieldWait = 5 * time.Second
)

const (
	titleSelector    = "span#productTitle"
	ratingSelector   = "span#acrPopover"
	reviewsSelector  = "span#acrCustomerReviewText"
	featuresSelector = "div#feature-bullets li"
	detailsRowTH     = "table#productDetails_techSpec_section_1 tr th"
	detailsRowTD     = "table#productDetails_techSpec_section_1 tr td"
)

// priceSelectors covers the known price layout variants, most common
// first.
var priceSelectors = []string{
	"span.a-price-whole",
	"span.a-offscreen",
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	".a-price .a-offscreen",
	"#price_inside_buybox",
	"#corePrice_feature_div .a-price .a-offscreen",
}

// probe is one capability check against the page, returning an optional
// value.
type probe func(ctx context.Context) (string, bool)

// firstHit walks the probe chain and returns the first non-empty value.
func firstHit(ctx context.Context, probes []probe) string {
	for _, p := range probes {
		if v, ok := p(ctx); ok && v != "" {
			return v
		}
	}
	return ""
}

// Engine extracts product records from a live session.
type Engine struct {
	clock  crawler.Clock
	logger *zap.Logger
}

var _ crawler.Extractor = (*Engine)(nil)

// New constructs an Engine.
func New(clock crawler.Clock, logger *zap.Logger) *Engine {
	return &Engine{clock: clock, logger: logger}
}

// Extract builds a ProductRecord from the current page. The title is
// required: its absence returns a MissingFieldError and the caller skips
// the product. Everything else is best-effort.
func (e *Engine) Extract(ctx context.Context, sess crawler.Session) (crawler.ProductRecord, error) {
	rec := crawler.ProductRecord{FetchedAt: e.clock.Now()}
	if loc, err := sess.Location(ctx); err == nil {
		rec.URL = loc
	}

	title, err := sess.Text(ctx, titleSelector, titleWait)
	if err != nil || title == "" {
		return rec, &crawler.MissingFieldError{Field: "title", Cause: err}
	}
	rec.Title = title

	rec.Price = firstHit(ctx, e.priceProbes(sess))

	if rating, ok, aerr := sess.Attr(ctx, ratingSelector, "title", fieldWait); aerr == nil && ok {
		rec.Rating = rating
	}
	if reviews, terr := sess.Text(ctx, reviewsSelector, fieldWait); terr == nil {
		rec.ReviewsCount = reviews
	}
	if features, ferr := sess.TextAll(ctx, featuresSelector, fieldWait); ferr == nil {
		rec.Features = compact(features)
	}
	rec.Details = e.details(ctx, sess)

	e.logger.Info("extracted product",
		zap.String("title", truncate(rec.Title, 50)),
		zap.String("url", rec.URL),
	)
	return rec, nil
}

func (e *Engine) priceProbes(sess crawler.Session) []probe {
	probes := make([]probe, 0, len(priceSelectors))
	for _, sel := range priceSelectors {
		sel := sel
		probes = append(probes, func(ctx context.Context) (string, bool) {
			v, err := sess.Text(ctx, sel, fieldWait)
			return v, err == nil
		})
	}
	return probes
}

// details reads the technical-details table as label/value pairs. Any
// failure yields an empty map.
func (e *Engine) details(ctx context.Context, sess crawler.Session) map[string]string {
	labels, err := sess.TextAll(ctx, detailsRowTH, fieldWait)
	if err != nil {
		return nil
	}
	values, err := sess.TextAll(ctx, detailsRowTD, fieldWait)
	if err != nil {
		return nil
	}
	n := len(labels)
	if len(values) < n {
		n = len(values)
	}
	if n == 0 {
		return nil
	}
	details := make(map[string]string, n)
	for i := 0; i < n; i++ {
		label := strings.TrimSpace(labels[i])
		if label == "" {
			continue
		}
		details[label] = strings.TrimSpace(values[i])
	}
	return details
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
