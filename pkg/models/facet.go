package models

// FacetNode is the presentation unit returned for facet loads.
// Count is the rolled-up (ancestor) count for tree categories and the direct
// count for flat categories.
type FacetNode struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Count               int64  `json:"count"`
	HasChildren         bool   `json:"has_children"`
	HasSelectedChildren bool   `json:"has_selected_children"`
}

// SearchNode is a facet-search match, with indentation hints for rendering.
type SearchNode struct {
	FacetNode
	Identifier string `json:"identifier,omitempty"`
	Depth      int    `json:"depth"`
	IsDirect   bool   `json:"is_direct"`
}

// Pagination describes the window returned by a paginated facet load.
type Pagination struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// FacetPage is the result of a top-level facet load.
// Pagination is nil for flat categories and for degraded (failed) loads.
type FacetPage struct {
	Nodes      []FacetNode `json:"nodes"`
	Pagination *Pagination `json:"pagination"`
}

// EmptyFacetPage is returned when the backend produced no usable data.
func EmptyFacetPage(limit int) *FacetPage {
	page := &FacetPage{Nodes: []FacetNode{}}
	if limit > 0 {
		page.Pagination = &Pagination{Limit: limit}
	}
	return page
}

// DegradedFacetPage is returned when the backend failed.
func DegradedFacetPage() *FacetPage {
	return &FacetPage{Nodes: []FacetNode{}}
}
