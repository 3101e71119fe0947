// Package querybuilder renders facet parameters into typed search requests:
// the dataset query, per-category selection filters and the aggregation
// bodies the facet service reads back.
package querybuilder

import (
	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/search"
)

// FilterBuilder turns the selections in FacetParams into terms filters.
// Tree selections match the ancestor closure so selecting a parent finds
// datasets tagged with any descendant.
type FilterBuilder struct {
	params     models.FacetParams
	categories []models.Category
}

// NewFilterBuilder creates a builder over the full catalog.
func NewFilterBuilder(params models.FacetParams) *FilterBuilder {
	return &FilterBuilder{params: params, categories: catalog.All()}
}

// BuildAll returns one filter per category with selections, tree categories first.
func (b *FilterBuilder) BuildAll() []search.Query {
	return b.build("")
}

// BuildExcept is BuildAll without the filter of categoryKey, so a facet's own
// selections never narrow its counts.
func (b *FilterBuilder) BuildExcept(categoryKey string) []search.Query {
	return b.build(categoryKey)
}

func (b *FilterBuilder) build(skip string) []search.Query {
	var filters []search.Query
	for _, kind := range []models.CategoryKind{models.CategoryKindTree, models.CategoryKindFlat} {
		for _, c := range b.categories {
			if c.Kind != kind || c.Key == skip {
				continue
			}
			if q, ok := b.Filter(c); ok {
				filters = append(filters, q)
			}
		}
	}
	return filters
}

// Filter returns the selection filter for one category, or false when
// nothing is selected in it.
func (b *FilterBuilder) Filter(c models.Category) (search.Query, bool) {
	selected := b.params.Selected(c.Key)
	if len(selected) == 0 {
		return nil, false
	}
	field := c.IDsField()
	if c.IsTree() {
		field = c.AncestorIDsField()
	}
	return search.TermsQuery{Field: field, Values: selected}, true
}

// Clause wraps filters as an aggregation filter body, match_all when empty.
func Clause(filters []search.Query) search.Query {
	if len(filters) == 0 {
		return search.MatchAllQuery{}
	}
	return search.BoolQuery{Must: filters}
}
