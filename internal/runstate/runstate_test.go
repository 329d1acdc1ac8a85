package runstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time {
	return time.Unix(1700000000, 0).UTC()
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]crawler.ProductRecord
	labels  []string
	failNext int
}

func (s *fakeSink) AppendRecords(_ context.Context, records []crawler.ProductRecord, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("storage unavailable")
	}
	batch := make([]crawler.ProductRecord, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	s.labels = append(s.labels, label)
	return nil
}

func (s *fakeSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func record(i int) crawler.ProductRecord {
	return crawler.ProductRecord{
		Title:     fmt.Sprintf("product %d", i),
		URL:       fmt.Sprintf("https://example.com/dp/%d", i),
		FetchedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestShutdownFlagIsMonotonic(t *testing.T) {
	t.Parallel()

	c := New(&fakeSink{}, 5, fixedClock{}, zap.NewNop())
	require.False(t, c.ShuttingDown())
	c.RequestShutdown()
	require.True(t, c.ShuttingDown())
	c.RequestShutdown()
	require.True(t, c.ShuttingDown())
}

func TestFlushTriggersAtThresholdNotBefore(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	c := New(sink, 5, fixedClock{}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		c.Append(ctx, record(i))
	}
	require.Empty(t, sink.batches)
	require.Equal(t, 4, c.Pending())

	c.Append(ctx, record(4))
	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 5)
	require.Zero(t, c.Pending())
}

func TestFlushFailureRetainsRecords(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{failNext: 1}
	c := New(sink, 5, fixedClock{}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Append(ctx, record(i))
	}
	require.Empty(t, sink.batches)
	require.Equal(t, 5, c.Pending())

	// The next flush finds the retained records and persists each exactly once.
	c.FinalFlush(ctx)
	require.Equal(t, 5, sink.total())
	require.Zero(t, c.Pending())
}

func TestFinalFlushRunsOnce(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	c := New(sink, 100, fixedClock{}, zap.NewNop())
	ctx := context.Background()

	c.Append(ctx, record(1))
	c.FinalFlush(ctx)
	c.FinalFlush(ctx)
	require.Len(t, sink.batches, 1)
	require.Equal(t, 1, sink.total())
}

func TestRecordsPersistedExactlyOnceAcrossFlushes(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	c := New(sink, 2, fixedClock{}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		c.Append(ctx, record(i))
	}
	c.FinalFlush(ctx)

	require.Equal(t, 7, sink.total())
	seen := map[string]int{}
	for _, batch := range sink.batches {
		for _, r := range batch {
			seen[r.URL]++
		}
	}
	for url, n := range seen {
		require.Equal(t, 1, n, "record %s persisted %d times", url, n)
	}
	require.Len(t, c.Records(), 7)
}

func TestBatchLabelIsTimestamped(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	c := New(sink, 1, fixedClock{}, zap.NewNop())
	c.Append(context.Background(), record(1))

	require.Len(t, sink.labels, 1)
	require.Contains(t, sink.labels[0], "products_20231114_")
}
