package models

import (
	"sort"
	"strings"
)

// FacetParams carries the request-scoped search text and selections.
// Selections are keyed by category key (not param key) and always hold term
// IDs, never display names.
type FacetParams struct {
	Search     string
	Selections map[string][]string
}

// SearchText returns the trimmed free-text query.
func (p FacetParams) SearchText() string {
	return strings.TrimSpace(p.Search)
}

// HasSearch reports whether a free-text query is active.
func (p FacetParams) HasSearch() bool {
	return p.SearchText() != ""
}

// Selected returns the non-blank selected IDs for one category.
func (p FacetParams) Selected(categoryKey string) []string {
	var ids []string
	for _, id := range p.Selections[categoryKey] {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// AllSelected returns the sorted union of selected IDs across categories.
func (p FacetParams) AllSelected() []string {
	set := make(map[string]struct{})
	for key := range p.Selections {
		for _, id := range p.Selected(key) {
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WithSelection returns a copy of p with ids selected for categoryKey.
func (p FacetParams) WithSelection(categoryKey string, ids ...string) FacetParams {
	out := FacetParams{Search: p.Search, Selections: make(map[string][]string, len(p.Selections)+1)}
	for k, v := range p.Selections {
		out.Selections[k] = append([]string(nil), v...)
	}
	out.Selections[categoryKey] = append(out.Selections[categoryKey], ids...)
	return out
}
