package facets

import (
	"sort"
	"strings"

	"github.com/DeplanckeLab/scfair/pkg/models"
)

// Paginator orders facet nodes so selected ones come first and slices pages.
type Paginator struct {
	selected idSet
}

// NewPaginator creates a paginator. selectedIDs should be the selections of
// every category, since a term may be selected through another facet.
func NewPaginator(selectedIDs []string) *Paginator {
	return &Paginator{selected: newIDSet(selectedIDs)}
}

// IsRelevant reports whether n is selected or leads to a selection.
func (p *Paginator) IsRelevant(n models.FacetNode) bool {
	return n.HasSelectedChildren || p.selected.has(n.ID)
}

// Sort returns a sorted copy of nodes: relevant first, then by lowercased
// name, then by ID.
func (p *Paginator) Sort(nodes []models.FacetNode) []models.FacetNode {
	sorted := append([]models.FacetNode(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := p.IsRelevant(sorted[i]), p.IsRelevant(sorted[j])
		if ri != rj {
			return ri
		}
		ni, nj := strings.ToLower(sorted[i].Name), strings.ToLower(sorted[j].Name)
		if ni != nj {
			return ni < nj
		}
		return sorted[i].ID < sorted[j].ID
	})
	if sorted == nil {
		sorted = []models.FacetNode{}
	}
	return sorted
}

// Paginate sorts nodes and returns one page. A non-positive limit returns
// every node without pagination.
func (p *Paginator) Paginate(nodes []models.FacetNode, limit, offset int) *models.FacetPage {
	sorted := p.Sort(nodes)
	if limit <= 0 {
		return &models.FacetPage{Nodes: sorted}
	}
	if offset < 0 {
		offset = 0
	}

	total := len(sorted)
	var page []models.FacetNode
	if offset == 0 {
		page = p.prioritized(sorted, limit)
	} else {
		start := min(offset, total)
		end := min(start+limit, total)
		page = sorted[start:end]
	}

	return &models.FacetPage{
		Nodes: append([]models.FacetNode{}, page...),
		Pagination: &models.Pagination{
			Total:   total,
			Offset:  offset,
			Limit:   limit,
			HasMore: offset+limit < total,
		},
	}
}

// prioritized fills the first page with relevant nodes before anything else.
func (p *Paginator) prioritized(sorted []models.FacetNode, limit int) []models.FacetNode {
	page := make([]models.FacetNode, 0, min(limit, len(sorted)))
	for _, n := range sorted {
		if len(page) == limit {
			return page
		}
		if p.IsRelevant(n) {
			page = append(page, n)
		}
	}
	for _, n := range sorted {
		if len(page) == limit {
			break
		}
		if !p.IsRelevant(n) {
			page = append(page, n)
		}
	}
	return page
}
