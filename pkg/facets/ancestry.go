package facets

import (
	"sort"

	"github.com/DeplanckeLab/scfair/pkg/models"
)

// firstAncestorIn walks the parent chains of id and returns the first
// ancestor found in target. Parents are visited in sorted order and each term
// at most once, so cycles in bad ontology data terminate.
func firstAncestorIn(id string, target idSet, metadata models.TermIndex) (string, bool) {
	visited := idSet{id: {}}
	queue := uniqueSorted(metadata.Parents(id))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited.has(current) {
			continue
		}
		visited.add(current)
		if target.has(current) {
			return current, true
		}
		queue = append(queue, uniqueSorted(metadata.Parents(current))...)
	}
	return "", false
}

// TraceAncestors returns every transitive ancestor of the given terms, sorted.
// The terms themselves are included only when one is an ancestor of another.
func TraceAncestors(ids []string, metadata models.TermIndex) []string {
	ancestors := make(idSet)
	for _, id := range uniqueSorted(ids) {
		traceAncestors(id, metadata, ancestors, make(idSet))
	}
	return ancestors.sorted()
}

func traceAncestors(id string, metadata models.TermIndex, into, visited idSet) {
	if visited.has(id) {
		return
	}
	visited.add(id)
	for _, parent := range metadata.Parents(id) {
		into.add(parent)
		traceAncestors(parent, metadata, into, visited)
	}
}

// BuildAncestorPaths reconstructs, for each selected term present in validIDs,
// the lineage up to the first visible root on every branch. The selected term
// itself is not part of the path; intermediate terms and the reached roots
// are, as long as they are in validIDs.
func BuildAncestorPaths(selectedIDs, visibleRoots, validIDs []string, metadata models.TermIndex) []string {
	roots := newIDSet(visibleRoots)
	valid := newIDSet(validIDs)
	paths := make(idSet)

	for _, selected := range uniqueSorted(selectedIDs) {
		if !valid.has(selected) {
			continue
		}
		visited := idSet{selected: {}}
		frontier := validParents(selected, valid, metadata)

		for len(frontier) > 0 {
			var next []string
			for _, id := range frontier {
				if visited.has(id) {
					continue
				}
				visited.add(id)
				paths.add(id)
				if roots.has(id) {
					continue
				}
				next = append(next, validParents(id, valid, metadata)...)
			}
			frontier = uniqueSorted(next)
		}
	}
	return paths.sorted()
}

func validParents(id string, valid idSet, metadata models.TermIndex) []string {
	var out []string
	for _, parent := range metadata.Parents(id) {
		if valid.has(parent) {
			out = append(out, parent)
		}
	}
	return uniqueSorted(out)
}

// FilterToRootLevelOnly drops every ID whose direct parent is also in ids, so
// only one level is surfaced per branch. Input order is preserved.
func FilterToRootLevelOnly(ids []string, metadata models.TermIndex) []string {
	present := newIDSet(ids)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		nested := false
		for _, parent := range metadata.Parents(id) {
			if parent != id && present.has(parent) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, id)
		}
	}
	return out
}

func sortDecisions(decisions []Decision) {
	sort.Slice(decisions, func(i, j int) bool { return decisions[i].ID < decisions[j].ID })
}
