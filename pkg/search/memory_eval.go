package search

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/RoaringBitmap/roaring/v2"
)

func (s scope) eval(q Query) (*roaring.Bitmap, error) {
	switch v := q.(type) {
	case nil, MatchAllQuery:
		return s.all(), nil

	case BoolQuery:
		return s.evalBool(v)

	case TermQuery:
		return s.matchValues(v.Field, func(value string) bool { return value == v.Value }), nil

	case TermsQuery:
		want := make(map[string]bool, len(v.Values))
		for _, value := range v.Values {
			want[value] = true
		}
		return s.matchValues(v.Field, func(value string) bool { return want[value] }), nil

	case PrefixQuery:
		prefix := v.Value
		if v.CaseInsensitive {
			prefix = strings.ToLower(prefix)
		}
		return s.matchValues(v.Field, func(value string) bool {
			if v.CaseInsensitive {
				value = strings.ToLower(value)
			}
			return strings.HasPrefix(value, prefix)
		}), nil

	case MatchQuery:
		return s.evalMatch(v.Field, v.Query, v.Fuzziness), nil

	case MatchPhrasePrefixQuery:
		tokens := tokenize(v.Query)
		if len(tokens) == 0 {
			return roaring.New(), nil
		}
		return s.matchValues(v.Field, func(value string) bool {
			return phrasePrefixMatches(tokenize(value), tokens)
		}), nil

	case MultiMatchQuery:
		out := roaring.New()
		for _, field := range s.expandFields(v.Fields) {
			out.Or(s.evalMatch(field, v.Query, ""))
		}
		return out, nil

	case NestedQuery:
		return s.evalNested(v)
	}

	return nil, fmt.Errorf("unsupported query type %T", q)
}

func (s scope) evalBool(q BoolQuery) (*roaring.Bitmap, error) {
	out := s.all()

	for _, clauses := range [][]Query{q.Must, q.Filter} {
		for _, clause := range clauses {
			matched, err := s.eval(clause)
			if err != nil {
				return nil, err
			}
			out.And(matched)
		}
	}

	minShould := q.MinimumShouldMatch
	if minShould == 0 && len(q.Should) > 0 && len(q.Must) == 0 && len(q.Filter) == 0 {
		minShould = 1
	}
	if minShould > 0 {
		counts := make(map[uint32]int)
		for _, clause := range q.Should {
			matched, err := s.eval(clause)
			if err != nil {
				return nil, err
			}
			it := matched.Iterator()
			for it.HasNext() {
				counts[it.Next()]++
			}
		}
		should := roaring.New()
		for ord, n := range counts {
			if n >= minShould {
				should.Add(ord)
			}
		}
		out.And(should)
	}

	for _, clause := range q.MustNot {
		matched, err := s.eval(clause)
		if err != nil {
			return nil, err
		}
		out.AndNot(matched)
	}
	return out, nil
}

func (s scope) evalNested(q NestedQuery) (*roaring.Bitmap, error) {
	if s.nested != nil {
		return nil, fmt.Errorf("nested query %q inside nested scope", q.Path)
	}
	out := roaring.New()
	n, ok := s.idx.nested[q.Path]
	if !ok {
		return out, nil
	}
	inner := scope{idx: s.idx, nested: n, path: q.Path}
	matched, err := inner.eval(q.Query)
	if err != nil {
		return nil, err
	}
	it := matched.Iterator()
	for it.HasNext() {
		out.Add(n.parents[it.Next()])
	}
	return out, nil
}

// matchValues unions the postings of every indexed value of field accepted by keep.
func (s scope) matchValues(field string, keep func(string) bool) *roaring.Bitmap {
	out := roaring.New()
	for value, bm := range s.values(field) {
		if keep(value) {
			out.Or(bm)
		}
	}
	return out
}

func (s scope) evalMatch(field, query, fuzziness string) *roaring.Bitmap {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return roaring.New()
	}
	fuzzy := strings.EqualFold(fuzziness, "auto")
	return s.matchValues(field, func(value string) bool {
		for _, vt := range tokenize(value) {
			for _, qt := range queryTokens {
				if vt == qt {
					return true
				}
				if fuzzy && levenshtein(vt, qt) <= autoFuzziness(qt) {
					return true
				}
			}
		}
		return false
	})
}

// expandFields resolves wildcard field patterns ("*_names^5.0") against the
// fields present in the scope.
func (s scope) expandFields(patterns []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		pattern = normalizeField(pattern)
		if !strings.Contains(pattern, "*") {
			if !seen[pattern] {
				seen[pattern] = true
				out = append(out, pattern)
			}
			continue
		}
		for field := range s.fields() {
			if ok, _ := path.Match(pattern, field); ok && !seen[field] {
				seen[field] = true
				out = append(out, field)
			}
		}
	}
	sort.Strings(out)
	return out
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// phrasePrefixMatches reports whether query occurs as a consecutive run in
// value, with the last query token matched as a prefix.
func phrasePrefixMatches(value, query []string) bool {
	last := len(query) - 1
	for start := 0; start+len(query) <= len(value); start++ {
		ok := true
		for i, qt := range query {
			vt := value[start+i]
			if i == last {
				ok = ok && strings.HasPrefix(vt, qt)
			} else {
				ok = ok && vt == qt
			}
			if !ok {
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// autoFuzziness mirrors the AUTO edit-distance allowance for a term.
func autoFuzziness(term string) int {
	switch n := len([]rune(term)); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
