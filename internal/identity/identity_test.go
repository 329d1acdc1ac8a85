package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

func TestNewIdentityEmptyPool(t *testing.T) {
	t.Parallel()

	m := NewManagerWithSeed(nil, 1, zap.NewNop())

	for i := 0; i < 20; i++ {
		id := m.NewIdentity()
		require.Nil(t, id.Proxy)
		require.NotEmpty(t, id.UserAgent)
		require.GreaterOrEqual(t, id.ViewportWidth, int64(1024))
		require.LessOrEqual(t, id.ViewportWidth, int64(1920))
		require.GreaterOrEqual(t, id.ViewportHeight, int64(768))
		require.LessOrEqual(t, id.ViewportHeight, int64(1080))
		require.GreaterOrEqual(t, id.Latitude, 25.0)
		require.LessOrEqual(t, id.Latitude, 48.0)
		require.GreaterOrEqual(t, id.Longitude, -123.0)
		require.LessOrEqual(t, id.Longitude, -71.0)
		require.Equal(t, "en-US", id.Locale)
		require.Equal(t, "America/New_York", id.Timezone)
	}
}

func TestNewIdentitySelectsProxy(t *testing.T) {
	t.Parallel()

	pool := []string{"customer-abc:secret@proxy.example.com:7777"}
	m := NewManagerWithSeed(pool, 7, zap.NewNop())

	id := m.NewIdentity()
	require.NotNil(t, id.Proxy)
	require.Equal(t, "proxy.example.com", id.Proxy.Host)
	require.Equal(t, "7777", id.Proxy.Port)
	require.Equal(t, "customer-abc", id.Proxy.Username)
	require.Equal(t, "secret", id.Proxy.Password)
	require.Equal(t, "http://proxy.example.com:7777", id.Proxy.Server())
}

func TestNewIdentityMalformedProxyFallsBack(t *testing.T) {
	t.Parallel()

	m := NewManagerWithSeed([]string{"not-a-proxy"}, 3, zap.NewNop())

	id := m.NewIdentity()
	require.Nil(t, id.Proxy)
	require.NotEmpty(t, id.UserAgent)
}

func TestParseProxy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: "user:pass@host:8080"},
		{name: "no at", raw: "user:pass-host:8080", wantErr: true},
		{name: "no password", raw: "user@host:8080", wantErr: true},
		{name: "no port", raw: "user:pass@host", wantErr: true},
		{name: "empty host", raw: "user:pass@:8080", wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseProxy(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, crawler.ErrInvalidProxyFormat))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUserAgentComesFromCuratedSet(t *testing.T) {
	t.Parallel()

	m := NewManagerWithSeed(nil, 11, zap.NewNop())
	known := make(map[string]struct{}, len(userAgents))
	for _, ua := range userAgents {
		known[ua] = struct{}{}
	}
	for i := 0; i < 50; i++ {
		_, ok := known[m.NewIdentity().UserAgent]
		require.True(t, ok)
	}
}
