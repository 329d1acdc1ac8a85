// Package crawler defines the core types and interfaces shared by the
// crawl subsystems: fetch identities, navigation outcomes, product records
// and the contracts between the traversal, fetch, extraction and
// persistence layers.
package crawler

import (
	"time"
)

// Classification maps a raw navigation response or page state to one of a
// fixed set of resilience outcomes. Every navigation attempt classifies to
// exactly one value.
type Classification int

// Classification values, in evaluation order.
const (
	ClassSuccess Classification = iota
	ClassShuttingDown
	ClassTransportError
	ClassRateLimited
	ClassCaptchaChallenge
	ClassRobotCheck
	ClassTimeout
)

// String returns the wire/log name of the classification.
func (c Classification) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassShuttingDown:
		return "shutting_down"
	case ClassTransportError:
		return "transport_error"
	case ClassRateLimited:
		return "rate_limited"
	case ClassCaptchaChallenge:
		return "captcha_challenge"
	case ClassRobotCheck:
		return "robot_check"
	case ClassTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Retryable reports whether the engine may attempt the navigation again.
// ShuttingDown is a control signal and Success is final; everything else
// is retried until the attempt budget runs out.
func (c Classification) Retryable() bool {
	return c != ClassSuccess && c != ClassShuttingDown
}

// FetchOutcome is the result of a single navigation attempt. Content is
// populated only for ClassSuccess; Detail carries the transport error text
// when present.
type FetchOutcome struct {
	Class   Classification
	Content string
	Detail  string
}

// ProxyEndpoint holds one parsed proxy from the rotation pool. Endpoints
// are read-only after parsing and shared across sessions.
type ProxyEndpoint struct {
	Host     string
	Port     string
	Username string
	Password string
}

// Server returns the scheme://host:port address handed to the browser.
func (p ProxyEndpoint) Server() string {
	return "http://" + p.Host + ":" + p.Port
}

// FetchIdentity is the bundle of browser fingerprint and network-egress
// attributes presented for one session. It is immutable once assigned to a
// session and discarded when the session closes.
type FetchIdentity struct {
	UserAgent      string
	ViewportWidth  int64
	ViewportHeight int64
	Locale         string
	Timezone       string
	Latitude       float64
	Longitude      float64
	GeoAccuracy    float64
	Proxy          *ProxyEndpoint
}

// ProductRecord is the structured result extracted from one product page.
// Only URL and FetchedAt are guaranteed; every other field is best-effort
// and empty when the page did not expose it.
type ProductRecord struct {
	Title        string
	Price        string
	Rating       string
	ReviewsCount string
	Features     []string
	Details      map[string]string
	URL          string
	FetchedAt    time.Time
}

// Empty reports whether extraction produced no usable fields.
func (r ProductRecord) Empty() bool {
	return r.Title == ""
}
