// Package csv persists product records as CSV batch files, one file per
// flush label.
package csv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

// Sink writes record batches under a root directory.
type Sink struct {
	dir    string
	logger *zap.Logger
}

var _ crawler.RecordSink = (*Sink)(nil)

// New returns a sink rooted at dir, creating it if needed.
func New(dir string, logger *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Sink{dir: dir, logger: logger}, nil
}

// row is the flattened CSV shape of a ProductRecord.
type row struct {
	Title        string `csv:"title"`
	Price        string `csv:"price"`
	Rating       string `csv:"rating"`
	ReviewsCount string `csv:"reviews_count"`
	Features     string `csv:"features"`
	Details      string `csv:"details"`
	URL          string `csv:"url"`
	Timestamp    string `csv:"timestamp"`
}

// AppendRecords writes the batch to <dir>/<label>.csv. Labels are unique
// per flush, so each batch lands in its own file.
func (s *Sink) AppendRecords(ctx context.Context, records []crawler.ProductRecord, label string) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}

	rows := make([]row, 0, len(records))
	for _, rec := range records {
		details := ""
		if len(rec.Details) > 0 {
			payload, err := json.Marshal(rec.Details)
			if err != nil {
				return fmt.Errorf("marshal details for %s: %w", rec.URL, err)
			}
			details = string(payload)
		}
		rows = append(rows, row{
			Title:        rec.Title,
			Price:        rec.Price,
			Rating:       rec.Rating,
			ReviewsCount: rec.ReviewsCount,
			Features:     strings.Join(rec.Features, "; "),
			Details:      details,
			URL:          rec.URL,
			Timestamp:    rec.FetchedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	path := filepath.Join(s.dir, label+".csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open batch file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("close batch file failed", zap.String("path", path), zap.Error(cerr))
		}
	}()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write batch %s: %w", path, err)
	}
	s.logger.Info("saved records",
		zap.Int("count", len(records)),
		zap.String("path", path))
	return nil
}
