package facets

import "sort"

// Counts holds the two bucket flavors of one tree category: datasets tagged
// with exactly a term (Direct) and datasets tagged with the term or any
// descendant (Ancestor).
type Counts struct {
	Direct   map[string]int64
	Ancestor map[string]int64
}

// NewCounts returns empty, non-nil counts.
func NewCounts() Counts {
	return Counts{Direct: map[string]int64{}, Ancestor: map[string]int64{}}
}

// DirectOf returns the direct count of id, 0 when absent.
func (c Counts) DirectOf(id string) int64 { return c.Direct[id] }

// AncestorOf returns the rolled-up count of id, 0 when absent.
func (c Counts) AncestorOf(id string) int64 { return c.Ancestor[id] }

// HasAncestorBucket reports whether id appeared in the ancestor buckets.
func (c Counts) HasAncestorBucket(id string) bool {
	_, ok := c.Ancestor[id]
	return ok
}

// MaxAncestor returns the largest rolled-up count over all ancestor buckets.
func (c Counts) MaxAncestor() int64 {
	var largest int64
	for _, n := range c.Ancestor {
		if n > largest {
			largest = n
		}
	}
	return largest
}

// DirectKeys returns the sorted direct bucket keys.
func (c Counts) DirectKeys() []string { return sortedKeys(c.Direct) }

// AncestorKeys returns the sorted ancestor bucket keys.
func (c Counts) AncestorKeys() []string { return sortedKeys(c.Ancestor) }

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// idSet is a request-scoped set of term IDs.
type idSet map[string]struct{}

func newIDSet(groups ...[]string) idSet {
	s := make(idSet)
	for _, ids := range groups {
		for _, id := range ids {
			if id != "" {
				s[id] = struct{}{}
			}
		}
	}
	return s
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) add(id string) { s[id] = struct{}{} }

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// uniqueSorted de-duplicates ids, drops blanks and sorts.
func uniqueSorted(ids []string) []string {
	return newIDSet(ids).sorted()
}
