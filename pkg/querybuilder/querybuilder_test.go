package querybuilder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/search"
)

func mustCategory(t *testing.T, key string) models.Category {
	t.Helper()
	c, ok := catalog.Find(key)
	require.True(t, ok, "category %s", key)
	return c
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func queryJSON(t *testing.T, q search.Query) string {
	t.Helper()
	return toJSON(t, q.Source())
}

func TestFilterBuilder_BuildAll(t *testing.T) {
	params := models.FacetParams{Selections: map[string][]string{
		"source":     {"src-1", " "},
		"tissue":     {"t-1", "t-2"},
		"organism":   {""},
		"cell_types": {"c-1"},
	}}

	filters := NewFilterBuilder(params).BuildAll()

	require.Len(t, filters, 3)
	assert.JSONEq(t, `{"terms":{"cell_types_ancestor_ids":["c-1"]}}`, queryJSON(t, filters[0]))
	assert.JSONEq(t, `{"terms":{"tissue_ancestor_ids":["t-1","t-2"]}}`, queryJSON(t, filters[1]))
	assert.JSONEq(t, `{"terms":{"source_ids":["src-1"]}}`, queryJSON(t, filters[2]))
}

func TestFilterBuilder_BuildExcept(t *testing.T) {
	params := models.FacetParams{Selections: map[string][]string{
		"tissue":  {"t-1"},
		"disease": {"d-1"},
	}}
	b := NewFilterBuilder(params)

	filters := b.BuildExcept("tissue")
	require.Len(t, filters, 1)
	assert.JSONEq(t, `{"terms":{"disease_ancestor_ids":["d-1"]}}`, queryJSON(t, filters[0]))

	assert.Len(t, b.BuildExcept("unknown"), 2)
	assert.Empty(t, NewFilterBuilder(models.FacetParams{}).BuildAll())
}

func TestClause(t *testing.T) {
	assert.JSONEq(t, `{"match_all":{}}`, queryJSON(t, Clause(nil)))
	assert.JSONEq(t,
		`{"bool":{"must":[{"term":{"status":"completed"}}]}}`,
		queryJSON(t, Clause(BaseFilters())))
}

func TestBuildQuery_Browse(t *testing.T) {
	q := BuildQuery("  ", []search.Query{search.TermsQuery{Field: "sex_ancestor_ids", Values: []string{"s"}}})

	assert.JSONEq(t, `{"bool":{"filter":[
		{"term":{"status":"completed"}},
		{"terms":{"sex_ancestor_ids":["s"]}}
	]}}`, queryJSON(t, q))
}

func TestBuildQuery_Text(t *testing.T) {
	q := BuildQuery("lung atlas", nil)

	body := q.Source()["bool"].(map[string]any)
	must := body["must"].([]map[string]any)
	require.Len(t, must, 1)
	mm := must[0]["multi_match"].(map[string]any)
	assert.Equal(t, "lung atlas", mm["query"])
	assert.Equal(t, "best_fields", mm["type"])

	fields := mm["fields"].([]string)
	assert.Equal(t, "text_search^1.0", fields[0])
	assert.Contains(t, fields, "tissue_names^5.0")
	assert.Contains(t, fields, "cell_types_synonyms^5.0")
	assert.Contains(t, fields, "organism_ancestor_names^2.0")
	assert.NotContains(t, fields, "source_names^5.0")
	assert.Len(t, fields, 1+3*len(catalog.TreeCategories()))
}

func TestAggregationRequestBuilder_TreeFacet(t *testing.T) {
	c := mustCategory(t, "tissue")
	req := NewAggregationRequestBuilder(0).TreeFacet(c, search.MatchAllQuery{}, nil)

	assert.JSONEq(t, `{
		"size": 0,
		"query": {"match_all": {}},
		"aggs": {"facet_tissue": {
			"filter": {"match_all": {}},
			"aggs": {
				"ancestor_terms": {"terms": {"field": "tissue_ancestor_ids", "size": 10000, "min_doc_count": 1}},
				"direct_terms": {"terms": {"field": "tissue_ids", "size": 10000, "min_doc_count": 1}}
			}
		}}
	}`, toJSON(t, req))
}

func TestAggregationRequestBuilder_FlatFacet(t *testing.T) {
	c := mustCategory(t, "source")
	filters := []search.Query{search.TermsQuery{Field: "tissue_ancestor_ids", Values: []string{"t"}}}
	req := NewAggregationRequestBuilder(50).FlatFacet(c, search.MatchAllQuery{}, filters)

	assert.JSONEq(t, `{
		"size": 0,
		"query": {"match_all": {}},
		"aggs": {"facet_source": {
			"filter": {"bool": {"must": [{"terms": {"tissue_ancestor_ids": ["t"]}}]}},
			"aggs": {"source_terms": {
				"terms": {"field": "source_ids", "size": 50, "min_doc_count": 1},
				"aggs": {"sample_doc": {"top_hits": {"size": 1, "_source": ["source_ids", "source_names"]}}}
			}}
		}}
	}`, toJSON(t, req))
}

func TestAggregationRequestBuilder_Children(t *testing.T) {
	c := mustCategory(t, "tissue")
	req := NewAggregationRequestBuilder(100).Children(c, search.MatchAllQuery{}, nil, []string{"a", "b"})

	body := req.Body()["aggs"].(map[string]any)["tissue_children"].(map[string]any)
	aggs := body["aggs"].(map[string]any)
	assert.JSONEq(t,
		`{"terms":{"field":"tissue_ancestor_ids","size":100,"min_doc_count":1,"include":["a","b"]}}`,
		toJSON(t, aggs["children_terms"]))
	assert.Contains(t, aggs, "direct_terms")
	assert.Contains(t, aggs, "ancestor_terms")
}

func TestAggregationRequestBuilder_TreeSearch(t *testing.T) {
	c := mustCategory(t, "tissue")
	req := NewAggregationRequestBuilder(0).TreeSearch(c, search.MatchAllQuery{}, "hea")

	assert.JSONEq(t, `{
		"size": 0,
		"query": {"bool": {"must": [
			{"match_all": {}},
			{"nested": {"path": "tissue_hierarchy", "query": {"bool": {
				"should": [
					{"prefix": {"tissue_hierarchy.name.keyword": {"value": "hea", "case_insensitive": true}}},
					{"match": {"tissue_hierarchy.name": {"query": "hea", "fuzziness": "AUTO"}}},
					{"match": {"tissue_hierarchy.synonyms": {"query": "hea", "fuzziness": "AUTO"}}}
				],
				"minimum_should_match": 1
			}}}}
		]}},
		"aggs": {"matching_tissue": {
			"nested": {"path": "tissue_hierarchy"},
			"aggs": {"filtered": {
				"filter": {"bool": {
					"should": [
						{"prefix": {"tissue_hierarchy.name.keyword": {"value": "hea", "case_insensitive": true}}},
						{"match": {"tissue_hierarchy.name": {"query": "hea", "fuzziness": "AUTO"}}},
						{"match": {"tissue_hierarchy.synonyms": {"query": "hea", "fuzziness": "AUTO"}}}
					],
					"minimum_should_match": 1
				}},
				"aggs": {"nodes": {
					"terms": {"field": "tissue_hierarchy.id", "size": 10000, "min_doc_count": 1},
					"aggs": {"details": {
						"reverse_nested": {},
						"aggs": {"sample": {"top_hits": {"size": 1, "_source": ["tissue_hierarchy"]}}}
					}}
				}}
			}}
		}}
	}`, toJSON(t, req))
}

func TestAggregationRequestBuilder_FlatSearch(t *testing.T) {
	c := mustCategory(t, "suspension_types")
	req := NewAggregationRequestBuilder(0).FlatSearch(c, search.MatchAllQuery{}, "nuc")

	agg := req.Body()["aggs"].(map[string]any)["matching_suspension_types"].(map[string]any)
	assert.JSONEq(t, `{"bool":{"should":[
		{"match_phrase_prefix":{"suspension_types_names":{"query":"nuc"}}},
		{"match":{"suspension_types_names":{"query":"nuc","fuzziness":"AUTO"}}}
	],"minimum_should_match":1}}`, toJSON(t, agg["filter"]))
}
