// internal/browser/session_test.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

const testTimeout = 45 * time.Second

const fixturePage = `<html><head><title>Fixture</title></head><body>
<nav><a href="/home">Home</a><a href="/login">Sign in</a></nav>
<main>
  <form onsubmit="document.title = 'Searched ' + document.getElementById('q').value; return false;">
    <input id="q" name="q" type="text" placeholder="Search">
    <button id="go" type="submit">Go</button>
  </form>
  <button id="ghost" style="display:none">Ghost</button>
  <button id="counter" onclick="this.textContent = 'Clicked'">Click me</button>
  <div style="height: 3000px"></div>
</main>
</body></html>`

// newLiveSession launches a real browser. It needs a local Chrome and is opt-in.
func newLiveSession(t *testing.T) (*Session, *httptest.Server) {
	t.Helper()
	if os.Getenv("WEBPILOT_BROWSER_TESTS") == "" {
		t.Skip("set WEBPILOT_BROWSER_TESTS=1 to run tests against a local Chrome")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fixturePage)
	}))
	t.Cleanup(server.Close)

	cfg := config.NewDefaultConfig().BrowserCfg
	cfg.Headless = true
	cfg.Args = []string{"--disable-dev-shm-usage"}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)

	session, err := NewSession(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Dispose(context.Background()) })
	return session, server
}

func findNode(snap *schemas.PageSnapshot, id string) (schemas.DomNode, bool) {
	for _, n := range snap.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return schemas.DomNode{}, false
}

func TestSession_Live(t *testing.T) {
	session, server := newLiveSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	require.NoError(t, session.Navigate(ctx, server.URL))
	require.NoError(t, session.WaitIdle(ctx))

	snap, err := session.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Fixture", snap.Title)
	assert.Equal(t, server.URL+"/", snap.URL)

	_, hidden := findNode(snap, "ghost")
	assert.False(t, hidden, "display:none elements are not observed")

	seen := map[string]bool{}
	for _, n := range snap.Nodes {
		assert.NotEmpty(t, n.Path)
		assert.False(t, seen[n.Path], "duplicate path %s", n.Path)
		seen[n.Path] = true
	}

	t.Run("Click", func(t *testing.T) {
		counter, ok := findNode(snap, "counter")
		require.True(t, ok)
		require.NoError(t, session.Click(ctx, counter.Path))

		after, err := session.Observe(ctx)
		require.NoError(t, err)
		clicked, ok := findNode(after, "counter")
		require.True(t, ok)
		assert.Equal(t, "Clicked", clicked.Text)
	})

	t.Run("TypeWithEnter", func(t *testing.T) {
		input, ok := findNode(snap, "q")
		require.True(t, ok)
		require.NoError(t, session.Type(ctx, input.Path, "gophers", true))

		after, err := session.Observe(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Searched gophers", after.Title)
	})

	t.Run("Scroll", func(t *testing.T) {
		assert.NoError(t, session.Scroll(ctx, 800))
	})

	t.Run("ClickMissingElementFails", func(t *testing.T) {
		err := session.Click(ctx, "/html/body/section[9]/button[4]")
		assert.Error(t, err)
	})

	t.Run("DisposeIsIdempotent", func(t *testing.T) {
		require.NoError(t, session.Dispose(context.Background()))
		assert.NoError(t, session.Dispose(context.Background()))
	})
}
