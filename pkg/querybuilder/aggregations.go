package querybuilder

import (
	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/search"
)

// Aggregation names read back by the facet service.
const (
	AncestorTermsAgg = "ancestor_terms"
	DirectTermsAgg   = "direct_terms"
	ChildrenTermsAgg = "children_terms"
	SampleDocAgg     = "sample_doc"
	FilteredAgg      = "filtered"
	NodesAgg         = "nodes"
	DetailsAgg       = "details"
	SampleAgg        = "sample"
)

// DefaultMaxAggregationSize is the terms bucket cap when none is configured.
const DefaultMaxAggregationSize = 10000

// Fuzziness used by facet search matches.
const autoFuzziness = "AUTO"

// FacetAggName is the root aggregation of a facet load.
func FacetAggName(c models.Category) string { return "facet_" + c.Key }

// FlatTermsAggName holds the buckets of a flat facet.
func FlatTermsAggName(c models.Category) string { return c.Key + "_terms" }

// ChildrenAggName is the root aggregation of a children load.
func ChildrenAggName(c models.Category) string { return c.Key + "_children" }

// MatchingAggName is the root aggregation of a facet search.
func MatchingAggName(c models.Category) string { return "matching_" + c.Key }

// AggregationRequestBuilder builds the aggregation-only requests of the facet
// service. All requests have Size 0.
type AggregationRequestBuilder struct {
	maxSize int
}

// NewAggregationRequestBuilder caps every terms aggregation at maxSize buckets.
func NewAggregationRequestBuilder(maxSize int) *AggregationRequestBuilder {
	if maxSize <= 0 {
		maxSize = DefaultMaxAggregationSize
	}
	return &AggregationRequestBuilder{maxSize: maxSize}
}

func (b *AggregationRequestBuilder) terms(field string, include []string, sub map[string]search.Aggregation) search.TermsAggregation {
	return search.TermsAggregation{
		Field:       field,
		Size:        b.maxSize,
		MinDocCount: 1,
		Include:     include,
		Aggs:        sub,
	}
}

// TreeFacet returns rolled-up and direct counts of a tree category under
// query, narrowed by filters.
func (b *AggregationRequestBuilder) TreeFacet(c models.Category, query search.Query, filters []search.Query) *search.Request {
	return &search.Request{
		Query: query,
		Aggs: map[string]search.Aggregation{
			FacetAggName(c): search.FilterAggregation{
				Filter: Clause(filters),
				Aggs: map[string]search.Aggregation{
					AncestorTermsAgg: b.terms(c.AncestorIDsField(), nil, nil),
					DirectTermsAgg:   b.terms(c.IDsField(), nil, nil),
				},
			},
		},
	}
}

// FlatFacet returns the buckets of a flat category with one sample document
// per bucket to recover display names.
func (b *AggregationRequestBuilder) FlatFacet(c models.Category, query search.Query, filters []search.Query) *search.Request {
	return &search.Request{
		Query: query,
		Aggs: map[string]search.Aggregation{
			FacetAggName(c): search.FilterAggregation{
				Filter: Clause(filters),
				Aggs: map[string]search.Aggregation{
					FlatTermsAggName(c): b.terms(c.IDsField(), nil, map[string]search.Aggregation{
						SampleDocAgg: sampleDoc(c),
					}),
				},
			},
		},
	}
}

// Children returns counts for childIDs of one parent. childIDs must be
// non-empty: an empty include would match no buckets at all.
func (b *AggregationRequestBuilder) Children(c models.Category, query search.Query, filters []search.Query, childIDs []string) *search.Request {
	include := append([]string{}, childIDs...)
	return &search.Request{
		Query: query,
		Aggs: map[string]search.Aggregation{
			ChildrenAggName(c): search.FilterAggregation{
				Filter: Clause(filters),
				Aggs: map[string]search.Aggregation{
					ChildrenTermsAgg: b.terms(c.AncestorIDsField(), include, nil),
					DirectTermsAgg:   b.terms(c.IDsField(), nil, nil),
					AncestorTermsAgg: b.terms(c.AncestorIDsField(), nil, nil),
				},
			},
		},
	}
}

// TreeSearchClause matches hierarchy entries by name prefix, fuzzy name or
// fuzzy synonym. It is evaluated inside the nested hierarchy scope.
func TreeSearchClause(c models.Category, term string) search.Query {
	path := c.HierarchyPath()
	return search.BoolQuery{
		Should: []search.Query{
			search.PrefixQuery{Field: path + ".name.keyword", Value: term, CaseInsensitive: true},
			search.MatchQuery{Field: path + ".name", Query: term, Fuzziness: autoFuzziness},
			search.MatchQuery{Field: path + ".synonyms", Query: term, Fuzziness: autoFuzziness},
		},
		MinimumShouldMatch: 1,
	}
}

// FlatSearchClause matches the names of a flat category.
func FlatSearchClause(c models.Category, term string) search.Query {
	return search.BoolQuery{
		Should: []search.Query{
			search.MatchPhrasePrefixQuery{Field: c.NamesField(), Query: term},
			search.MatchQuery{Field: c.NamesField(), Query: term, Fuzziness: autoFuzziness},
		},
		MinimumShouldMatch: 1,
	}
}

// TreeSearch finds hierarchy terms of c matching term among datasets that
// match base. Each bucket carries one sample document to read the
// hierarchy entry (depth, directness) from.
func (b *AggregationRequestBuilder) TreeSearch(c models.Category, base search.Query, term string) *search.Request {
	clause := TreeSearchClause(c, term)
	path := c.HierarchyPath()
	return &search.Request{
		Query: search.BoolQuery{Must: []search.Query{
			base,
			search.NestedQuery{Path: path, Query: clause},
		}},
		Aggs: map[string]search.Aggregation{
			MatchingAggName(c): search.NestedAggregation{
				Path: path,
				Aggs: map[string]search.Aggregation{
					FilteredAgg: search.FilterAggregation{
						Filter: clause,
						Aggs: map[string]search.Aggregation{
							NodesAgg: b.terms(path+".id", nil, map[string]search.Aggregation{
								DetailsAgg: search.ReverseNestedAggregation{
									Aggs: map[string]search.Aggregation{
										SampleAgg: search.TopHitsAggregation{Size: 1, SourceFields: []string{path}},
									},
								},
							}),
						},
					},
				},
			},
		},
	}
}

// FlatSearch finds flat tags of c whose names match term.
func (b *AggregationRequestBuilder) FlatSearch(c models.Category, base search.Query, term string) *search.Request {
	clause := FlatSearchClause(c, term)
	return &search.Request{
		Query: search.BoolQuery{Must: []search.Query{base, clause}},
		Aggs: map[string]search.Aggregation{
			MatchingAggName(c): search.FilterAggregation{
				Filter: clause,
				Aggs: map[string]search.Aggregation{
					NodesAgg: b.terms(c.IDsField(), nil, map[string]search.Aggregation{
						SampleDocAgg: sampleDoc(c),
					}),
				},
			},
		},
	}
}

func sampleDoc(c models.Category) search.TopHitsAggregation {
	return search.TopHitsAggregation{Size: 1, SourceFields: []string{c.IDsField(), c.NamesField()}}
}
