// File: internal/resolver/resolver.go
package resolver

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
	"go.uber.org/zap"
)

// ErrNoCandidate is returned when no safe element matches an intent.
var ErrNoCandidate = errors.New("no candidate element")

// NoCandidateError describes a failed resolution.
type NoCandidateError struct {
	Intent string
	Reason string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("%s for intent %q", e.Reason, e.Intent)
}

func (e *NoCandidateError) Unwrap() error { return ErrNoCandidate }

// Candidate is a scored element. Only finite scores are eligible.
type Candidate struct {
	Node  schemas.DomNode `json:"node"`
	Score float64         `json:"score"`
}

var interactiveRoles = map[string]struct{}{
	"button":    {},
	"link":      {},
	"textbox":   {},
	"searchbox": {},
	"combobox":  {},
	"menuitem":  {},
}

var interactiveTags = map[string]struct{}{
	"a":      {},
	"button": {},
	"input":  {},
}

// Resolver turns a short intent phrase into ranked page elements.
type Resolver struct {
	synonyms map[string][]string
	regions  []string
	cfg      config.ResolverConfig
	logger   *zap.Logger
}

// New creates a resolver. A nil synonym table falls back to the defaults.
func New(cfg config.ResolverConfig, logger *zap.Logger) *Resolver {
	synonyms := cfg.Synonyms
	if synonyms == nil {
		synonyms = config.DefaultSynonyms()
	}
	regions := make([]string, 0, len(cfg.ExcludedRegions))
	for _, r := range cfg.ExcludedRegions {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			regions = append(regions, r)
		}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.DispatchTopK <= 0 {
		cfg.DispatchTopK = 8
	}
	// Zero weights mean "use the default" so a bare config still ranks sensibly.
	if cfg.KeywordWeight == 0 {
		cfg.KeywordWeight = 3
	}
	if cfg.RoleWeight == 0 {
		cfg.RoleWeight = 2
	}
	if cfg.TagWeight == 0 {
		cfg.TagWeight = 1.5
	}
	if cfg.PositionWeight == 0 {
		cfg.PositionWeight = 0.5
	}
	if cfg.PositionBand == 0 {
		cfg.PositionBand = 600
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		synonyms: synonyms,
		regions:  regions,
		cfg:      cfg,
		logger:   logger.Named("resolver"),
	}
}

// TopK is the default result size for general resolution.
func (r *Resolver) TopK() int { return r.cfg.TopK }

// DispatchTopK is the result size used when dispatching an action.
func (r *Resolver) DispatchTopK() int { return r.cfg.DispatchTopK }

// Keywords expands an intent into the distinct keywords that are matched
// against node attributes: its word fragments plus every synonym family whose
// key occurs in the raw intent text.
func (r *Resolver) Keywords(intent string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(k string) {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	for _, word := range strings.FieldsFunc(strings.ToLower(intent), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	}) {
		add(word)
	}

	// Map iteration order is random; sort the keys so keyword order is stable.
	keys := make([]string, 0, len(r.synonyms))
	for key := range r.synonyms {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key != "" && strings.Contains(intent, key) {
			for _, syn := range r.synonyms[key] {
				add(syn)
			}
		}
	}
	return out
}

// Excluded reports whether a node can never be a target: hidden, a submit
// input, or located inside a structural region such as a header or nav.
func (r *Resolver) Excluded(node schemas.DomNode) bool {
	return !node.Visible || node.IsSubmit() || r.InExcludedRegion(node)
}

// InExcludedRegion reports whether the node is, or sits beneath, a structural
// region element. A path segment matches when it starts with a region marker,
// so "/html/body/header[1]/a" and "/html/body/nav/ul/li[2]/a" are both excluded.
func (r *Resolver) InExcludedRegion(node schemas.DomNode) bool {
	tag := strings.ToLower(node.Tag)
	for _, region := range r.regions {
		if tag == region {
			return true
		}
	}
	for _, segment := range strings.Split(strings.ToLower(node.Path), "/") {
		if segment == "" {
			continue
		}
		for _, region := range r.regions {
			if strings.HasPrefix(segment, region) {
				return true
			}
		}
	}
	return false
}

// Score rates how well a node matches the intent. Excluded nodes score
// negative infinity.
func (r *Resolver) Score(node schemas.DomNode, intent string) float64 {
	return r.score(node, r.Keywords(intent))
}

func (r *Resolver) score(node schemas.DomNode, keywords []string) float64 {
	if r.Excluded(node) {
		return math.Inf(-1)
	}

	fields := strings.ToLower(strings.Join([]string{
		node.Text,
		node.AriaLabel,
		node.Placeholder,
		node.ID,
		strings.Join(node.Classes, " "),
	}, " "))

	var score float64
	for _, kw := range keywords {
		if strings.Contains(fields, kw) {
			score += r.cfg.KeywordWeight
		}
	}
	if _, ok := interactiveRoles[strings.ToLower(node.Role)]; ok {
		score += r.cfg.RoleWeight
	}
	if _, ok := interactiveTags[strings.ToLower(node.Tag)]; ok {
		score += r.cfg.TagWeight
	}
	if node.Rect != nil && node.Rect.Y >= 0 && node.Rect.Y < r.cfg.PositionBand {
		score += r.cfg.PositionWeight
	}
	return score
}

// Rank scores every node and returns at most limit candidates with finite
// scores, best first. Ties keep document order.
func (r *Resolver) Rank(nodes []schemas.DomNode, intent string, limit int) []Candidate {
	if limit <= 0 {
		limit = r.cfg.TopK
	}
	keywords := r.Keywords(intent)

	candidates := make([]Candidate, 0, len(nodes))
	for _, node := range nodes {
		s := r.score(node, keywords)
		if math.IsInf(s, -1) || math.IsNaN(s) {
			continue
		}
		candidates = append(candidates, Candidate{Node: node, Score: s})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Resolve ranks nodes for the intent and commits to the first candidate that
// survives a second structural-region check.
func (r *Resolver) Resolve(nodes []schemas.DomNode, intent string, limit int) (Candidate, error) {
	candidates := r.Rank(nodes, intent, limit)
	if len(candidates) == 0 {
		return Candidate{}, &NoCandidateError{Intent: intent, Reason: "no candidates"}
	}
	for _, c := range candidates {
		if !r.InExcludedRegion(c.Node) {
			r.logger.Debug("Resolved intent",
				zap.String("intent", intent),
				zap.String("path", c.Node.Path),
				zap.Float64("score", c.Score))
			return c, nil
		}
	}
	return Candidate{}, &NoCandidateError{Intent: intent, Reason: "no safe candidates"}
}

// Typable reports whether text can be entered into the node.
func Typable(node schemas.DomNode) bool {
	switch strings.ToLower(node.Tag) {
	case "textarea":
		return true
	case "input":
		return !node.IsSubmit()
	}
	role := strings.ToLower(node.Role)
	return role == "searchbox" || role == "textbox"
}

// FilterTypable returns the nodes that accept text input, in order.
func FilterTypable(nodes []schemas.DomNode) []schemas.DomNode {
	out := make([]schemas.DomNode, 0, len(nodes))
	for _, n := range nodes {
		if Typable(n) {
			out = append(out, n)
		}
	}
	return out
}
