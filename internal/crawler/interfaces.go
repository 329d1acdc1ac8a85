package crawler

import (
	"context"
	"time"
)

// NavResult carries the document response metadata captured during one
// navigation. Received is false when the browser produced no response
// object at all.
type NavResult struct {
	Status   int
	Received bool
}

// Session is one live browsing surface: a page with an identity applied.
// All calls are suspension points; no two fetches run concurrently against
// the same session.
type Session interface {
	// Navigate loads url and blocks until the document is ready or the
	// timeout elapses. A deadline error maps to a Timeout classification
	// upstream.
	Navigate(ctx context.Context, url string, timeout time.Duration) (NavResult, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// Content returns the full rendered markup of the current page.
	Content(ctx context.Context) (string, error)
	// Text waits up to timeout for selector and returns its inner text.
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	// TextAll returns the inner text of every node matching selector.
	TextAll(ctx context.Context, selector string, timeout time.Duration) ([]string, error)
	// Attr waits for selector and returns the named attribute. The bool is
	// false when the attribute is absent.
	Attr(ctx context.Context, selector, attr string, timeout time.Duration) (string, bool, error)
	// Count returns how many nodes currently match selector, without waiting.
	Count(ctx context.Context, selector string) (int, error)
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// Scroll scrolls the viewport down by fraction of its height.
	Scroll(ctx context.Context, fraction float64) error
	// MoveMouse dispatches a pointer move to the given coordinates.
	MoveMouse(ctx context.Context, x, y float64) error
	// Close releases the page and its browser process.
	Close()
}

// SessionFactory opens browsing sessions with a fetch identity applied.
type SessionFactory interface {
	NewSession(ctx context.Context, identity FetchIdentity) (Session, error)
}

// IdentitySource produces a fresh randomized fetch identity per session.
type IdentitySource interface {
	NewIdentity() FetchIdentity
}

// Fetcher executes one resilient navigation: classify, back off, retry.
type Fetcher interface {
	Fetch(ctx context.Context, sess Session, url string) (FetchOutcome, error)
}

// Extractor reads a rendered product page into a ProductRecord.
type Extractor interface {
	Extract(ctx context.Context, sess Session) (ProductRecord, error)
}

// RecordSink durably appends a batch of records under a batch label.
type RecordSink interface {
	AppendRecords(ctx context.Context, records []ProductRecord, label string) error
}

// Humanizer performs browsing-mimicry side effects on a session. Failures
// are logged by callers and never retried.
type Humanizer interface {
	Browse(ctx context.Context, sess Session) error
}

// Pauser abstracts timed waits so tests can run without sleeping.
type Pauser interface {
	Pause(ctx context.Context, d time.Duration)
}

// ShutdownState exposes the process-wide cooperative cancellation flag.
// The flag is monotonic: once true it never resets.
type ShutdownState interface {
	ShuttingDown() bool
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
