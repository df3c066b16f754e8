package schemas

// -- Page Observation Schemas --

// Rect is an element's bounding box in CSS pixels relative to the viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DomNode is a semantic description of one interactive element on the page.
// Path is an absolute XPath that is unique within the snapshot that produced it.
type DomNode struct {
	Tag         string   `json:"tag"`
	Text        string   `json:"text,omitempty"`
	Role        string   `json:"role,omitempty"`
	ID          string   `json:"id,omitempty"`
	Classes     []string `json:"classes,omitempty"`
	Href        string   `json:"href,omitempty"`
	Name        string   `json:"name,omitempty"`
	AriaLabel   string   `json:"ariaLabel,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Type        string   `json:"type,omitempty"`
	Visible     bool     `json:"visible"`
	Rect        *Rect    `json:"rect,omitempty"`
	Path        string   `json:"path"`
}

// IsSubmit reports whether the node is a submit-type input.
func (n DomNode) IsSubmit() bool {
	return n.Tag == "input" && n.Type == "submit"
}

// PageSnapshot is a point-in-time capture of the page's interactive elements.
// A snapshot is replaced on every observation, never mutated.
type PageSnapshot struct {
	URL   string    `json:"url"`
	Title string    `json:"title"`
	Nodes []DomNode `json:"nodes"`
}
