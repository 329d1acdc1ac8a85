// Package runstate holds the process-wide crawl run state: the monotonic
// shutdown flag and the append-only result buffer with its incremental
// flush policy.
package runstate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

// defaultFlushEvery is how many unflushed records trigger an incremental
// flush.
const defaultFlushEvery = 5

// Coordinator owns the shutdown flag and the result buffer. The flag is
// single-writer multi-reader and never resets; the buffer is mutated only
// by the traversal's single logical worker.
type Coordinator struct {
	shutdown   atomic.Bool
	sink       crawler.RecordSink
	flushEvery int
	clock      crawler.Clock
	logger     *zap.Logger

	mu      sync.Mutex
	buffer  []crawler.ProductRecord
	flushed int
	final   sync.Once
}

var _ crawler.ShutdownState = (*Coordinator)(nil)

// New constructs a Coordinator flushing through sink.
func New(sink crawler.RecordSink, flushEvery int, clock crawler.Clock, logger *zap.Logger) *Coordinator {
	if flushEvery <= 0 {
		flushEvery = defaultFlushEvery
	}
	return &Coordinator{
		sink:       sink,
		flushEvery: flushEvery,
		clock:      clock,
		logger:     logger,
	}
}

// RequestShutdown sets the shutdown flag. Idempotent and monotonic.
func (c *Coordinator) RequestShutdown() {
	if c.shutdown.CompareAndSwap(false, true) {
		c.logger.Info("shutdown requested, finishing current step")
	}
}

// ShuttingDown reports whether shutdown has been requested.
func (c *Coordinator) ShuttingDown() bool {
	return c.shutdown.Load()
}

// Append adds a record to the result buffer and triggers an incremental
// flush once enough records have accumulated since the last flush.
func (c *Coordinator) Append(ctx context.Context, rec crawler.ProductRecord) {
	c.mu.Lock()
	c.buffer = append(c.buffer, rec)
	crawler.TotalRecords.Inc()
	pending := len(c.buffer) - c.flushed
	c.mu.Unlock()

	if pending >= c.flushEvery {
		c.Flush(ctx)
	}
}

// Flush appends all unflushed records to the sink under a timestamped
// batch label. A failed flush keeps the records buffered for a later
// attempt; it never raises.
func (c *Coordinator) Flush(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.buffer[c.flushed:]
	if len(pending) == 0 {
		return
	}
	batch := make([]crawler.ProductRecord, len(pending))
	copy(batch, pending)
	label := c.batchLabel()

	if err := c.sink.AppendRecords(ctx, batch, label); err != nil {
		crawler.TotalFlushFailures.Inc()
		c.logger.Error("flush failed, records retained in buffer",
			zap.Int("count", len(batch)),
			zap.String("label", label),
			zap.Error(err))
		return
	}
	c.flushed += len(batch)
	crawler.TotalFlushes.Inc()
	c.logger.Info("flushed records",
		zap.Int("count", len(batch)),
		zap.String("label", label))
}

// FinalFlush attempts to persist any remaining records exactly once, at
// run end or on shutdown.
func (c *Coordinator) FinalFlush(ctx context.Context) {
	c.final.Do(func() {
		c.Flush(ctx)
	})
}

// Records returns a snapshot of the accumulated result buffer.
func (c *Coordinator) Records() []crawler.ProductRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]crawler.ProductRecord, len(c.buffer))
	copy(out, c.buffer)
	return out
}

// Pending returns how many buffered records have not been persisted yet.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer) - c.flushed
}

func (c *Coordinator) batchLabel() string {
	return fmt.Sprintf("products_%s_%s",
		c.clock.Now().Format("20060102_150405"),
		uuid.NewString()[:8])
}
