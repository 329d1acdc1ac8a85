package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// stubSession answers selector queries from fixed maps; any selector not
// present fails, mimicking a bounded wait that never resolves.
type stubSession struct {
	texts    map[string]string
	allTexts map[string][]string
	attrs    map[string]string
	location string
}

func (s *stubSession) Navigate(context.Context, string, time.Duration) (crawler.NavResult, error) {
	return crawler.NavResult{Status: 200, Received: true}, nil
}

func (s *stubSession) Title(context.Context) (string, error) {
	return "", nil
}

func (s *stubSession) Content(context.Context) (string, error) {
	return "", nil
}

func (s *stubSession) Text(_ context.Context, selector string, _ time.Duration) (string, error) {
	v, ok := s.texts[selector]
	if !ok {
		return "", errors.New("selector not found: " + selector)
	}
	return v, nil
}

func (s *stubSession) TextAll(_ context.Context, selector string, _ time.Duration) ([]string, error) {
	v, ok := s.allTexts[selector]
	if !ok {
		return nil, errors.New("selector not found: " + selector)
	}
	return v, nil
}

func (s *stubSession) Attr(_ context.Context, selector, attr string, _ time.Duration) (string, bool, error) {
	v, ok := s.attrs[selector+"@"+attr]
	if !ok {
		return "", false, errors.New("selector not found: " + selector)
	}
	return v, true, nil
}

func (s *stubSession) Count(context.Context, string) (int, error) {
	return 0, nil
}

func (s *stubSession) Location(context.Context) (string, error) {
	return s.location, nil
}

func (s *stubSession) Scroll(context.Context, float64) error {
	return nil
}

func (s *stubSession) MoveMouse(context.Context, float64, float64) error {
	return nil
}

func (s *stubSession) Close() {}

func newEngine() *Engine {
	return New(fixedClock{now: time.Unix(1700000000, 0).UTC()}, zap.NewNop())
}

func TestExtractFullRecord(t *testing.T) {
	t.Parallel()

	sess := &stubSession{
		location: "https://example.com/dp/B000TEST",
		texts: map[string]string{
			"span#productTitle":          "Cordless Drill 20V",
			"span.a-price-whole":         "89",
			"span#acrCustomerReviewText": "1,204 ratings",
		},
		attrs: map[string]string{
			"span#acrPopover@title": "4.6 out of 5 stars",
		},
		allTexts: map[string][]string{
			"div#feature-bullets li": {"Brushless motor", "", "Two batteries included"},
			"table#productDetails_techSpec_section_1 tr th": {"Voltage", "Weight"},
			"table#productDetails_techSpec_section_1 tr td": {"20 Volts", "1.5 Kilograms"},
		},
	}

	rec, err := newEngine().Extract(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, "Cordless Drill 20V", rec.Title)
	require.Equal(t, "89", rec.Price)
	require.Equal(t, "4.6 out of 5 stars", rec.Rating)
	require.Equal(t, "1,204 ratings", rec.ReviewsCount)
	require.Equal(t, []string{"Brushless motor", "Two batteries included"}, rec.Features)
	require.Equal(t, map[string]string{
		"Voltage": "20 Volts",
		"Weight":  "1.5 Kilograms",
	}, rec.Details)
	require.Equal(t, "https://example.com/dp/B000TEST", rec.URL)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), rec.FetchedAt)
}

func TestExtractMissingTitleFailsRecord(t *testing.T) {
	t.Parallel()

	sess := &stubSession{
		location: "https://example.com/dp/B000GONE",
		texts:    map[string]string{"span.a-price-whole": "12"},
	}

	rec, err := newEngine().Extract(context.Background(), sess)
	require.Error(t, err)

	var missing *crawler.MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "title", missing.Field)
	require.True(t, rec.Empty())
	require.Equal(t, "https://example.com/dp/B000GONE", rec.URL)
	require.False(t, rec.FetchedAt.IsZero())
}

func TestExtractMissingRatingLeavesRestIntact(t *testing.T) {
	t.Parallel()

	sess := &stubSession{
		location: "https://example.com/dp/B000NORATE",
		texts: map[string]string{
			"span#productTitle":  "Desk Lamp",
			"span.a-price-whole": "35",
		},
	}

	rec, err := newEngine().Extract(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, "Desk Lamp", rec.Title)
	require.Equal(t, "35", rec.Price)
	require.Empty(t, rec.Rating)
	require.Empty(t, rec.ReviewsCount)
	require.Empty(t, rec.Features)
	require.Empty(t, rec.Details)
}

func TestExtractPriceFallbackChain(t *testing.T) {
	t.Parallel()

	sess := &stubSession{
		texts: map[string]string{
			"span#productTitle": "Mystery Box",
			// First two variants absent; a later layout carries the price.
			"#priceblock_dealprice": "$14.99",
		},
	}

	rec, err := newEngine().Extract(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, "$14.99", rec.Price)
}

func TestExtractPriceSkipsEmptyCandidates(t *testing.T) {
	t.Parallel()

	sess := &stubSession{
		texts: map[string]string{
			"span#productTitle":  "Gift Card",
			"span.a-price-whole": "",
			"span.a-offscreen":   "$25.00",
		},
	}

	rec, err := newEngine().Extract(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, "$25.00", rec.Price)
}

func TestDetailsZipTruncatesToShortestColumn(t *testing.T) {
	t.Parallel()

	sess := &stubSession{
		texts: map[string]string{"span#productTitle": "Router"},
		allTexts: map[string][]string{
			"table#productDetails_techSpec_section_1 tr th": {"Bands", "Ports", "Color"},
			"table#productDetails_techSpec_section_1 tr td": {"Dual", "4"},
		},
	}

	rec, err := newEngine().Extract(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"Bands": "Dual", "Ports": "4"}, rec.Details)
}
