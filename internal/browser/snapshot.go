// internal/browser/snapshot.go
package browser

import (
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

const defaultMaxNodes = 400

// interactiveSelector lists the elements a snapshot considers.
const interactiveSelector = `a, button, input, textarea, select, [role], [onclick], [tabindex]`

// snapshotScriptTemplate collects the first %d interactive elements and returns them
// as a JSON string. Paths are absolute indexed XPaths so they resolve with BySearch.
const snapshotScriptTemplate = `(function(limit) {
	function xpathOf(el) {
		if (el === document.documentElement) return '/html';
		if (el === document.body) return '/html/body';
		const parent = el.parentElement;
		if (!parent) return '';
		let ix = 1;
		for (let sib = el.previousElementSibling; sib; sib = sib.previousElementSibling) {
			if (sib.nodeName === el.nodeName) ix++;
		}
		return xpathOf(parent) + '/' + el.tagName.toLowerCase() + '[' + ix + ']';
	}
	function isVisible(el, rect) {
		const st = window.getComputedStyle(el);
		return rect.width >= 5 && rect.height >= 5 && st.display !== 'none' && st.visibility !== 'hidden';
	}
	const out = [];
	const els = Array.from(document.querySelectorAll(%q)).slice(0, limit);
	for (const el of els) {
		const rect = el.getBoundingClientRect();
		out.push({
			tag: el.tagName.toLowerCase(),
			text: (el.textContent || '').replace(/\s+/g, ' ').trim().slice(0, 100),
			role: el.getAttribute('role') || '',
			id: el.id || '',
			classes: Array.from(el.classList || []).slice(0, 5),
			href: el.href ? String(el.href) : '',
			name: typeof el.name === 'string' ? el.name : '',
			ariaLabel: el.getAttribute('aria-label') || '',
			placeholder: typeof el.placeholder === 'string' ? el.placeholder : '',
			type: typeof el.type === 'string' ? el.type : '',
			visible: isVisible(el, rect),
			rect: {x: rect.x, y: rect.y, width: rect.width, height: rect.height},
			path: xpathOf(el)
		});
	}
	return JSON.stringify(out);
})(%d)`

// snapshotScript renders the collection script for the given node ceiling.
func snapshotScript(maxNodes int) string {
	if maxNodes <= 0 {
		maxNodes = defaultMaxNodes
	}
	return fmt.Sprintf(snapshotScriptTemplate, interactiveSelector, maxNodes)
}

// decodeSnapshot turns the script's JSON payload into a PageSnapshot.
// Invisible nodes and nodes whose path is empty or already seen are dropped,
// so every returned path is unique within the snapshot.
func decodeSnapshot(url, title, payload string) (*schemas.PageSnapshot, error) {
	var raw []schemas.DomNode
	if payload != "" {
		if err := json.UnmarshalFromString(payload, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode page snapshot: %w", err)
		}
	}

	snap := &schemas.PageSnapshot{URL: url, Title: title, Nodes: make([]schemas.DomNode, 0, len(raw))}
	seen := make(map[string]struct{}, len(raw))
	for _, node := range raw {
		if !node.Visible || node.Path == "" {
			continue
		}
		if _, dup := seen[node.Path]; dup {
			continue
		}
		seen[node.Path] = struct{}{}
		snap.Nodes = append(snap.Nodes, node)
	}
	return snap, nil
}
