package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

func TestSessionNavigateAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><head><title>fixture</title></head>`+
			`<body><span id="productTitle"> Widget </span>`+
			`<script>document.body.innerHTML += '<div id="late">late content</div>';</script></body></html>`)
	}))
	defer srv.Close()

	launcher := NewLauncher(Config{Headless: true}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := launcher.NewSession(ctx, crawler.FetchIdentity{
		UserAgent:      "TestAgent",
		ViewportWidth:  1280,
		ViewportHeight: 800,
		Locale:         "en-US",
		Timezone:       "America/New_York",
		Latitude:       40.7,
		Longitude:      -74.0,
		GeoAccuracy:    100,
	})
	if err != nil {
		t.Skipf("chrome unavailable: %v", err)
	}
	defer sess.Close()

	nav, err := sess.Navigate(ctx, srv.URL, 15*time.Second)
	if err != nil {
		t.Skipf("navigate failed: %v", err)
	}
	require.True(t, nav.Received)
	require.Equal(t, http.StatusOK, nav.Status)

	title, err := sess.Title(ctx)
	require.NoError(t, err)
	require.Equal(t, "fixture", title)

	text, err := sess.Text(ctx, "span#productTitle", 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "Widget", text)

	content, err := sess.Content(ctx)
	require.NoError(t, err)
	require.True(t, strings.Contains(content, "late content"))

	n, err := sess.Count(ctx, "#late")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, sess.Scroll(ctx, 0.5))
	require.NoError(t, sess.MoveMouse(ctx, 120, 240))
}

func TestResponseMetaTracksDocumentOnly(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	status, received := meta.snapshot()
	require.Zero(t, status)
	require.False(t, received)

	meta.captureEvent("not an event")
	_, received = meta.snapshot()
	require.False(t, received)
}
