package facets

import (
	"sort"
	"strings"
	"unicode"

	"github.com/DeplanckeLab/scfair/pkg/models"
)

// SortHierarchically orders facet search matches depth-first: each match
// follows its nearest matched ancestors, siblings alphabetically. Parent
// chains are followed through terms that did not match, so metadata should
// cover the ancestors of the matches too. Roots are matches without a matched
// ancestor. Depth is set to the display depth and HasChildren to whether the
// node has matched descendants attached. Nodes only reachable through a cycle
// are appended at depth 0.
func SortHierarchically(nodes []models.SearchNode, metadata models.TermIndex) []models.SearchNode {
	byID := make(map[string]models.SearchNode, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; !dup {
			byID[n.ID] = n
		}
	}
	matched := make(idSet, len(byID))
	for id := range byID {
		matched.add(id)
	}

	children := make(map[string][]string, len(byID))
	var roots []string
	for id := range byID {
		parents := nearestMatchedAncestors(id, matched, metadata)
		if len(parents) == 0 {
			roots = append(roots, id)
			continue
		}
		for _, parent := range parents {
			children[parent] = append(children[parent], id)
		}
	}

	less := func(ids []string) {
		sort.Slice(ids, func(i, j int) bool {
			a, b := strings.ToLower(byID[ids[i]].Name), strings.ToLower(byID[ids[j]].Name)
			if a != b {
				return a < b
			}
			return ids[i] < ids[j]
		})
	}
	less(roots)
	for parent := range children {
		less(children[parent])
	}

	out := make([]models.SearchNode, 0, len(byID))
	visited := make(idSet, len(byID))
	type frame struct {
		id    string
		depth int
	}
	walk := func(start string) {
		stack := []frame{{id: start}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited.has(top.id) {
				continue
			}
			visited.add(top.id)

			n := byID[top.id]
			n.Depth = top.depth
			n.HasChildren = len(children[top.id]) > 0
			out = append(out, n)

			kids := children[top.id]
			for i := len(kids) - 1; i >= 0; i-- {
				if !visited.has(kids[i]) {
					stack = append(stack, frame{id: kids[i], depth: top.depth + 1})
				}
			}
		}
	}
	for _, root := range roots {
		walk(root)
	}

	if len(out) < len(byID) {
		var rest []string
		for id := range byID {
			if !visited.has(id) {
				rest = append(rest, id)
			}
		}
		less(rest)
		for _, id := range rest {
			walk(id)
		}
	}
	return out
}

// nearestMatchedAncestors walks up from id and returns, sorted, the first
// matched term on each parent chain. The walk does not pass a matched term.
func nearestMatchedAncestors(id string, matched idSet, metadata models.TermIndex) []string {
	visited := idSet{id: {}}
	var found []string
	queue := uniqueSorted(metadata.Parents(id))
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited.has(next) {
			continue
		}
		visited.add(next)
		if matched.has(next) {
			found = append(found, next)
			continue
		}
		queue = append(queue, uniqueSorted(metadata.Parents(next))...)
	}
	sort.Strings(found)
	return found
}

// Match scores for flat facet search, lower is better.
const (
	MatchExact = iota
	MatchPrefix
	MatchWordPrefix
	MatchSubstring
)

// ScoreFlatMatch scores name against the search term, case-insensitively.
// The second result is false when name does not match at all.
func ScoreFlatMatch(name, term string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return 0, false
	}
	switch {
	case name == term:
		return MatchExact, true
	case strings.HasPrefix(name, term):
		return MatchPrefix, true
	}
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if strings.HasPrefix(w, term) {
			return MatchWordPrefix, true
		}
	}
	if strings.Contains(name, term) {
		return MatchSubstring, true
	}
	return 0, false
}
