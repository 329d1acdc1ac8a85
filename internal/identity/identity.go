// Package identity produces randomized fetch identities: the browser
// fingerprint and network-egress attributes presented for one session.
package identity

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

// Viewport and geolocation bounds for generated identities. The geo box
// covers the US mainland.
const (
	minViewportWidth  = 1024
	maxViewportWidth  = 1920
	minViewportHeight = 768
	maxViewportHeight = 1080

	minLatitude  = 25.0
	maxLatitude  = 48.0
	minLongitude = -123.0
	maxLongitude = -71.0
	geoAccuracy  = 100.0

	defaultLocale   = "en-US"
	defaultTimezone = "America/New_York"
)

// userAgents is the curated agent set rotated across sessions.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// Manager builds FetchIdentity values from a proxy pool and the curated
// agent set. It is safe for a single logical worker; randomness is the only
// state consumed.
type Manager struct {
	pool   []string
	rng    *rand.Rand
	logger *zap.Logger
}

// NewManager creates a Manager over the given proxy connection strings.
// The pool may be empty, in which case sessions run without a proxy.
func NewManager(pool []string, logger *zap.Logger) *Manager {
	return &Manager{
		pool:   pool,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
}

// NewManagerWithSeed creates a Manager with deterministic randomness,
// primarily for testing.
func NewManagerWithSeed(pool []string, seed int64, logger *zap.Logger) *Manager {
	m := NewManager(pool, logger)
	m.rng = rand.New(rand.NewSource(seed))
	return m
}

// NewIdentity returns a fresh randomized identity. A malformed proxy entry
// falls back to a direct connection for that session rather than failing
// the run.
func (m *Manager) NewIdentity() crawler.FetchIdentity {
	id := crawler.FetchIdentity{
		UserAgent:      userAgents[m.rng.Intn(len(userAgents))],
		ViewportWidth:  int64(m.rng.Intn(maxViewportWidth-minViewportWidth+1) + minViewportWidth),
		ViewportHeight: int64(m.rng.Intn(maxViewportHeight-minViewportHeight+1) + minViewportHeight),
		Locale:         defaultLocale,
		Timezone:       defaultTimezone,
		Latitude:       minLatitude + m.rng.Float64()*(maxLatitude-minLatitude),
		Longitude:      minLongitude + m.rng.Float64()*(maxLongitude-minLongitude),
		GeoAccuracy:    geoAccuracy,
	}

	if len(m.pool) == 0 {
		return id
	}
	raw := m.pool[m.rng.Intn(len(m.pool))]
	proxy, err := ParseProxy(raw)
	if err != nil {
		m.logger.Warn("proxy entry unusable, continuing without proxy", zap.Error(err))
		return id
	}
	id.Proxy = &proxy
	return id
}

// ParseProxy parses a user:pass@host:port connection string. The error
// wraps ErrInvalidProxyFormat and never echoes credentials.
func ParseProxy(raw string) (crawler.ProxyEndpoint, error) {
	auth, hostPort, ok := strings.Cut(raw, "@")
	if !ok {
		return crawler.ProxyEndpoint{}, fmt.Errorf("missing credentials separator: %w", crawler.ErrInvalidProxyFormat)
	}
	username, password, ok := strings.Cut(auth, ":")
	if !ok || username == "" {
		return crawler.ProxyEndpoint{}, fmt.Errorf("missing username or password: %w", crawler.ErrInvalidProxyFormat)
	}
	host, port, ok := strings.Cut(hostPort, ":")
	if !ok || host == "" || port == "" {
		return crawler.ProxyEndpoint{}, fmt.Errorf("missing host or port: %w", crawler.ErrInvalidProxyFormat)
	}
	return crawler.ProxyEndpoint{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
	}, nil
}

var _ crawler.IdentitySource = (*Manager)(nil)
