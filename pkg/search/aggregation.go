package search

// DefaultTermsSize is the bucket count the backend uses when Size is unset.
const DefaultTermsSize = 10

// Aggregation is one node of the typed aggregation DSL.
type Aggregation interface {
	Source() map[string]any
}

// FilterAggregation narrows the document set before running sub-aggregations.
type FilterAggregation struct {
	Filter Query
	Aggs   map[string]Aggregation
}

func (a FilterAggregation) Source() map[string]any {
	return withSubAggs(map[string]any{"filter": sourceOf(a.Filter)}, a.Aggs)
}

// TermsAggregation buckets documents by keyword value.
// A non-nil Include restricts buckets to exactly those keys.
type TermsAggregation struct {
	Field       string
	Size        int
	MinDocCount int
	Include     []string
	Aggs        map[string]Aggregation
}

func (a TermsAggregation) Source() map[string]any {
	terms := map[string]any{"field": a.Field}
	if a.Size > 0 {
		terms["size"] = a.Size
	}
	if a.MinDocCount > 0 {
		terms["min_doc_count"] = a.MinDocCount
	}
	if a.Include != nil {
		terms["include"] = a.Include
	}
	return withSubAggs(map[string]any{"terms": terms}, a.Aggs)
}

// TopHitsAggregation returns sample documents for the enclosing bucket.
type TopHitsAggregation struct {
	Size         int
	SourceFields []string
}

func (a TopHitsAggregation) Source() map[string]any {
	hits := map[string]any{"size": a.Size}
	if a.SourceFields != nil {
		hits["_source"] = a.SourceFields
	}
	return map[string]any{"top_hits": hits}
}

// NestedAggregation switches into the nested objects under Path.
type NestedAggregation struct {
	Path string
	Aggs map[string]Aggregation
}

func (a NestedAggregation) Source() map[string]any {
	return withSubAggs(map[string]any{"nested": map[string]any{"path": a.Path}}, a.Aggs)
}

// ReverseNestedAggregation joins nested objects back to their root documents.
type ReverseNestedAggregation struct {
	Aggs map[string]Aggregation
}

func (a ReverseNestedAggregation) Source() map[string]any {
	return withSubAggs(map[string]any{"reverse_nested": map[string]any{}}, a.Aggs)
}

func withSubAggs(body map[string]any, aggs map[string]Aggregation) map[string]any {
	if len(aggs) > 0 {
		body["aggs"] = aggSources(aggs)
	}
	return body
}

func aggSources(aggs map[string]Aggregation) map[string]any {
	out := make(map[string]any, len(aggs))
	for name, agg := range aggs {
		out[name] = agg.Source()
	}
	return out
}
