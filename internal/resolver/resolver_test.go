// File: internal/resolver/resolver_test.go
package resolver

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
	"go.uber.org/zap/zaptest"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return New(config.NewDefaultConfig().Resolver(), zaptest.NewLogger(t))
}

func button(path, text string) schemas.DomNode {
	return schemas.DomNode{
		Tag:     "button",
		Text:    text,
		Visible: true,
		Path:    path,
		Rect:    &schemas.Rect{Y: 900, Width: 80, Height: 20},
	}
}

func TestKeywords(t *testing.T) {
	r := newTestResolver(t)

	t.Run("word fragments and activated family", func(t *testing.T) {
		got := r.Keywords("search for shoes")
		assert.Equal(t, []string{"search", "for", "shoes", "find", "go", "submit", "lookup"}, got)
	})

	t.Run("no family without key substring", func(t *testing.T) {
		assert.Equal(t, []string{"open", "menu"}, r.Keywords("Open menu!"))
	})

	t.Run("cyrillic fragments are kept", func(t *testing.T) {
		assert.Equal(t, []string{"войти", "login", "sign in", "sign-in", "enter", "submit"}, r.Keywords("войти login"))
	})

	t.Run("family activation uses the raw intent text", func(t *testing.T) {
		assert.NotContains(t, r.Keywords("SEARCH"), "lookup")
	})
}

func TestScore_Weights(t *testing.T) {
	r := newTestResolver(t)

	plain := schemas.DomNode{Tag: "div", Visible: true, Path: "/html/body/div[1]"}
	assert.Equal(t, 0.0, r.Score(plain, "anything"))

	withRole := plain
	withRole.Role = "button"
	assert.Equal(t, 2.0, r.Score(withRole, "anything"))

	withTag := plain
	withTag.Tag = "a"
	assert.Equal(t, 1.5, r.Score(withTag, "anything"))

	inBand := plain
	inBand.Rect = &schemas.Rect{Y: 120}
	assert.Equal(t, 0.5, r.Score(inBand, "anything"))

	belowBand := plain
	belowBand.Rect = &schemas.Rect{Y: 600}
	assert.Equal(t, 0.0, r.Score(belowBand, "anything"))

	keywords := plain
	keywords.Text = "Checkout"
	keywords.Classes = []string{"btn", "btn-primary"}
	// "checkout" and "btn" match; "click" does not.
	assert.Equal(t, 6.0, r.Score(keywords, "checkout btn click"))
}

func TestScore_KeywordFields(t *testing.T) {
	r := newTestResolver(t)
	for _, node := range []schemas.DomNode{
		{Tag: "div", Visible: true, Path: "/a", Text: "Subscribe now"},
		{Tag: "div", Visible: true, Path: "/b", AriaLabel: "subscribe"},
		{Tag: "div", Visible: true, Path: "/c", Placeholder: "Subscribe"},
		{Tag: "div", Visible: true, Path: "/d", ID: "subscribe-btn"},
		{Tag: "div", Visible: true, Path: "/e", Classes: []string{"x", "subscribe"}},
	} {
		assert.Equal(t, 3.0, r.Score(node, "subscribe"), node.Path)
	}
}

func TestScore_SearchBeatsRandom(t *testing.T) {
	r := newTestResolver(t)
	search := button("/html/body/main/button[1]", "Search")
	random := button("/html/body/main/button[2]", "Random")
	assert.Greater(t, r.Score(search, "search"), r.Score(random, "search"))
}

func TestScore_HardExclusions(t *testing.T) {
	r := newTestResolver(t)

	hidden := button("/html/body/main/button[1]", "Search")
	hidden.Visible = false
	assert.True(t, math.IsInf(r.Score(hidden, "search"), -1))

	submit := schemas.DomNode{Tag: "input", Type: "submit", Visible: true, Path: "/html/body/form/input[2]", Text: "Search"}
	assert.True(t, math.IsInf(r.Score(submit, "search"), -1))

	header := button("/html/body/header[1]/button", "Search")
	assert.True(t, math.IsInf(r.Score(header, "search"), -1))

	nav := button("/html/body/div/nav/ul/li[2]/a", "Search")
	assert.True(t, math.IsInf(r.Score(nav, "search"), -1))

	navTag := schemas.DomNode{Tag: "nav", Visible: true, Path: "/html/body/div[3]", Text: "Search"}
	assert.True(t, math.IsInf(r.Score(navTag, "search"), -1))
}

func TestInExcludedRegion(t *testing.T) {
	r := newTestResolver(t)
	cases := map[string]bool{
		"/html/body/header/a":          true,
		"/html/body/header[2]/div/a":   true,
		"/html/body/nav[1]/a":          true,
		"/html/body/main/div[3]/a":     false,
		"/html/body/main/section/a[1]": false,
		"":                             false,
	}
	for path, want := range cases {
		assert.Equal(t, want, r.InExcludedRegion(schemas.DomNode{Tag: "a", Path: path}), path)
	}
}

// Hidden and submit nodes never appear in ranked output, whatever the intent.
func TestRank_NeverReturnsExcluded(t *testing.T) {
	r := newTestResolver(t)
	nodes := []schemas.DomNode{
		{Tag: "button", Text: "Search", Visible: false, Path: "/html/body/main/button[1]"},
		{Tag: "input", Type: "submit", Text: "Search", Visible: true, Path: "/html/body/main/input[1]"},
		{Tag: "a", Text: "Search help", Visible: true, Path: "/html/body/main/a[1]"},
		{Tag: "div", Text: "Random", Visible: true, Path: "/html/body/main/div[1]"},
	}
	for _, intent := range []string{"search", "submit", "", "random", "help me"} {
		for _, c := range r.Rank(nodes, intent, 10) {
			assert.True(t, c.Node.Visible, "intent %q", intent)
			assert.False(t, c.Node.IsSubmit(), "intent %q", intent)
			assert.False(t, math.IsInf(c.Score, 0), "intent %q", intent)
		}
	}
}

func TestRank_OrderAndLimit(t *testing.T) {
	r := newTestResolver(t)
	var nodes []schemas.DomNode
	for i := 0; i < 15; i++ {
		nodes = append(nodes, button(fmt.Sprintf("/html/body/main/button[%d]", i+1), "Other"))
	}
	nodes[7].Text = "Sign in"

	ranked := r.Rank(nodes, "sign in", 0)
	require.Len(t, ranked, r.TopK())
	assert.Equal(t, "/html/body/main/button[8]", ranked[0].Node.Path)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}

	// Equal scores keep document order.
	assert.Equal(t, "/html/body/main/button[1]", ranked[1].Node.Path)
	assert.Len(t, r.Rank(nodes, "sign in", 3), 3)
}

func TestResolve(t *testing.T) {
	r := newTestResolver(t)

	t.Run("picks the best safe candidate", func(t *testing.T) {
		nodes := []schemas.DomNode{
			button("/html/body/main/button[1]", "Cancel"),
			button("/html/body/main/button[2]", "Continue"),
		}
		got, err := r.Resolve(nodes, "next", r.DispatchTopK())
		require.NoError(t, err)
		if diff := cmp.Diff(nodes[1], got.Node); diff != "" {
			t.Errorf("resolved node mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty candidate list", func(t *testing.T) {
		nodes := []schemas.DomNode{{Tag: "button", Text: "Go", Visible: false, Path: "/x"}}
		_, err := r.Resolve(nodes, "go", 8)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoCandidate))
		var nce *NoCandidateError
		require.True(t, errors.As(err, &nce))
		assert.Equal(t, "no candidates", nce.Reason)
	})

	t.Run("every candidate fails the second pass", func(t *testing.T) {
		// Disable region exclusion during scoring so only the second pass can catch it.
		scoring := New(config.ResolverConfig{}, zaptest.NewLogger(t))
		guard := New(config.ResolverConfig{ExcludedRegions: []string{"header"}}, zaptest.NewLogger(t))
		nodes := []schemas.DomNode{button("/html/body/header/button", "Search")}
		require.Len(t, scoring.Rank(nodes, "search", 8), 1)
		_, err := guard.Resolve(nodes, "search", 8)
		assert.ErrorIs(t, err, ErrNoCandidate)
	})
}

func TestTypable(t *testing.T) {
	nodes := []schemas.DomNode{
		{Tag: "input", Type: "text", Path: "/1"},
		{Tag: "input", Type: "submit", Path: "/2"},
		{Tag: "textarea", Path: "/3"},
		{Tag: "div", Role: "searchbox", Path: "/4"},
		{Tag: "button", Path: "/5"},
	}
	got := FilterTypable(nodes)
	var paths []string
	for _, n := range got {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"/1", "/3", "/4"}, paths)
}

func TestCustomSynonymTable(t *testing.T) {
	cfg := config.NewDefaultConfig().Resolver()
	cfg.Synonyms = map[string][]string{"checkout": {"pay", "purchase"}}
	r := New(cfg, zaptest.NewLogger(t))

	pay := button("/html/body/main/button[1]", "Pay now")
	other := button("/html/body/main/button[2]", "Later")
	assert.Greater(t, r.Score(pay, "checkout"), r.Score(other, "checkout"))
	assert.NotContains(t, r.Keywords("search"), "lookup")
}
