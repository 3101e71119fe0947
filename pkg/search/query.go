package search

// Query is one node of the typed search DSL. Source renders the node as the
// Elasticsearch JSON body fragment.
type Query interface {
	Source() map[string]any
}

// MatchAllQuery matches every document.
type MatchAllQuery struct{}

func (MatchAllQuery) Source() map[string]any {
	return map[string]any{"match_all": map[string]any{}}
}

// BoolQuery combines clauses. MinimumShouldMatch of 0 leaves the backend default.
type BoolQuery struct {
	Must               []Query
	Filter             []Query
	Should             []Query
	MustNot            []Query
	MinimumShouldMatch int
}

func (q BoolQuery) Source() map[string]any {
	body := map[string]any{}
	for name, clauses := range map[string][]Query{
		"must":     q.Must,
		"filter":   q.Filter,
		"should":   q.Should,
		"must_not": q.MustNot,
	} {
		if len(clauses) > 0 {
			body[name] = sources(clauses)
		}
	}
	if q.MinimumShouldMatch > 0 {
		body["minimum_should_match"] = q.MinimumShouldMatch
	}
	return map[string]any{"bool": body}
}

// TermsQuery matches documents whose keyword field holds any of Values.
type TermsQuery struct {
	Field  string
	Values []string
}

func (q TermsQuery) Source() map[string]any {
	values := q.Values
	if values == nil {
		values = []string{}
	}
	return map[string]any{"terms": map[string]any{q.Field: values}}
}

// TermQuery matches an exact keyword value.
type TermQuery struct {
	Field string
	Value string
}

func (q TermQuery) Source() map[string]any {
	return map[string]any{"term": map[string]any{q.Field: q.Value}}
}

// PrefixQuery matches keyword values starting with Value.
type PrefixQuery struct {
	Field           string
	Value           string
	CaseInsensitive bool
}

func (q PrefixQuery) Source() map[string]any {
	opts := map[string]any{"value": q.Value}
	if q.CaseInsensitive {
		opts["case_insensitive"] = true
	}
	return map[string]any{"prefix": map[string]any{q.Field: opts}}
}

// MatchQuery is an analyzed full-text match. Fuzziness is e.g. "AUTO".
type MatchQuery struct {
	Field     string
	Query     string
	Fuzziness string
}

func (q MatchQuery) Source() map[string]any {
	opts := map[string]any{"query": q.Query}
	if q.Fuzziness != "" {
		opts["fuzziness"] = q.Fuzziness
	}
	return map[string]any{"match": map[string]any{q.Field: opts}}
}

// MatchPhrasePrefixQuery matches a phrase whose last word may be incomplete.
type MatchPhrasePrefixQuery struct {
	Field string
	Query string
}

func (q MatchPhrasePrefixQuery) Source() map[string]any {
	return map[string]any{"match_phrase_prefix": map[string]any{q.Field: map[string]any{"query": q.Query}}}
}

// MultiMatchQuery runs a match across several (optionally boosted) fields.
type MultiMatchQuery struct {
	Query  string
	Fields []string
	Type   string
}

func (q MultiMatchQuery) Source() map[string]any {
	opts := map[string]any{
		"query":  q.Query,
		"fields": q.Fields,
	}
	if q.Type != "" {
		opts["type"] = q.Type
	}
	return map[string]any{"multi_match": opts}
}

// NestedQuery evaluates Query against the nested objects under Path.
type NestedQuery struct {
	Path  string
	Query Query
}

func (q NestedQuery) Source() map[string]any {
	return map[string]any{"nested": map[string]any{
		"path":  q.Path,
		"query": sourceOf(q.Query),
	}}
}

func sources(qs []Query) []map[string]any {
	out := make([]map[string]any, 0, len(qs))
	for _, q := range qs {
		out = append(out, sourceOf(q))
	}
	return out
}

func sourceOf(q Query) map[string]any {
	if q == nil {
		return MatchAllQuery{}.Source()
	}
	return q.Source()
}
