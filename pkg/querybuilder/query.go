package querybuilder

import (
	"strings"

	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/search"
)

const (
	StatusField     = "status"
	StatusCompleted = "completed"
	TextSearchField = "text_search"
)

// Field boosts for free-text search. Term names and synonyms outrank the
// free text, which outranks names inherited from ancestors.
const (
	textBoost         = "1.0"
	nameBoost         = "5.0"
	ancestorNameBoost = "2.0"
)

// BaseFilters restricts every query to datasets that finished processing.
func BaseFilters() []search.Query {
	return []search.Query{search.TermQuery{Field: StatusField, Value: StatusCompleted}}
}

// SearchableFields lists the boosted fields of the free-text multi_match.
func SearchableFields() []string {
	trees := catalog.TreeCategories()
	fields := make([]string, 0, 1+3*len(trees))
	fields = append(fields, TextSearchField+"^"+textBoost)
	for _, c := range trees {
		fields = append(fields, c.NamesField()+"^"+nameBoost)
	}
	for _, c := range trees {
		fields = append(fields, c.SynonymsField()+"^"+nameBoost)
	}
	for _, c := range trees {
		fields = append(fields, c.AncestorNamesField()+"^"+ancestorNameBoost)
	}
	return fields
}

// BuildQuery returns the dataset query for text plus filters. Without text it
// is a pure filter query.
func BuildQuery(text string, filters []search.Query) search.Query {
	all := append(BaseFilters(), filters...)
	text = strings.TrimSpace(text)
	if text == "" {
		return search.BoolQuery{Filter: all}
	}
	return search.BoolQuery{
		Must: []search.Query{search.MultiMatchQuery{
			Query:  text,
			Type:   "best_fields",
			Fields: SearchableFields(),
		}},
		Filter: all,
	}
}
