package facets

import (
	"fmt"

	"github.com/DeplanckeLab/scfair/pkg/models"
)

// Stage identifies which display filter stage decided a term.
type Stage int

const (
	// StageKept marks a term that survived every stage.
	StageKept Stage = iota
	// StageRoot drops bare ontology roots.
	StageRoot
	// StageUmbrella drops terms too generic relative to their descendants.
	StageUmbrella
	// StageNested drops terms whose ancestor also survived.
	StageNested
)

func (s Stage) String() string {
	switch s {
	case StageKept:
		return "kept"
	case StageRoot:
		return "ontology-root"
	case StageUmbrella:
		return "umbrella"
	case StageNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Decision records why one candidate term was kept or dropped.
type Decision struct {
	ID       string
	Name     string
	Direct   int64
	Ancestor int64
	Stage    Stage
	Kept     bool
	Reason   string
}

// DisplayFilter selects the visible roots of a tree facet.
type DisplayFilter struct {
	policy Policy
}

// NewDisplayFilter creates a filter with the given thresholds.
func NewDisplayFilter(policy Policy) *DisplayFilter {
	return &DisplayFilter{policy: policy}
}

// ComputeDisplayIDs returns the sorted set of term IDs to show as top-level
// facet entries. termIDs are the candidates (direct bucket keys plus any
// virtual parents). The result is a pure function of its inputs.
func (f *DisplayFilter) ComputeDisplayIDs(termIDs []string, counts Counts, metadata models.TermIndex, hasSearchQuery bool) []string {
	kept, _ := f.run(termIDs, counts, metadata, hasSearchQuery, false)
	return kept
}

// Explain runs the filter and returns one decision per candidate, sorted by ID.
func (f *DisplayFilter) Explain(termIDs []string, counts Counts, metadata models.TermIndex, hasSearchQuery bool) []Decision {
	_, decisions := f.run(termIDs, counts, metadata, hasSearchQuery, true)
	return decisions
}

func (f *DisplayFilter) run(termIDs []string, counts Counts, metadata models.TermIndex, hasSearch, explain bool) ([]string, []Decision) {
	candidates := uniqueSorted(termIDs)
	if len(candidates) == 0 {
		return []string{}, nil
	}

	var decisions []Decision
	record := func(id string, stage Stage, reason string) {
		if !explain {
			return
		}
		decisions = append(decisions, Decision{
			ID:       id,
			Name:     metadata.Name(id),
			Direct:   counts.DirectOf(id),
			Ancestor: counts.AncestorOf(id),
			Stage:    stage,
			Kept:     stage == StageKept,
			Reason:   reason,
		})
	}
	finish := func(kept []string) ([]string, []Decision) {
		if explain {
			sortDecisions(decisions)
		}
		return kept, decisions
	}

	// Stage 1: bare ontology roots are never useful entries.
	withParents := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if len(metadata.Parents(id)) == 0 {
			reason := "no parents"
			if metadata.Get(id) == nil {
				reason = "no metadata"
			}
			record(id, StageRoot, reason)
			continue
		}
		withParents = append(withParents, id)
	}
	if len(withParents) == 0 {
		return finish([]string{})
	}

	// Stage 2: umbrella terms.
	candidateSet := newIDSet(candidates)
	maxAncestor := counts.MaxAncestor()
	specific := make([]string, 0, len(withParents))
	specificReason := make(map[string]string, len(withParents))
	for _, id := range withParents {
		keep, reason := f.isSpecific(id, counts, metadata, candidateSet, maxAncestor, hasSearch)
		if !keep {
			record(id, StageUmbrella, reason)
			continue
		}
		specific = append(specific, id)
		specificReason[id] = reason
	}
	if len(specific) == 0 {
		return finish([]string{})
	}

	// Stage 3: keep only terms with no ancestor among the survivors.
	survivors := newIDSet(specific)
	roots := make([]string, 0, len(specific))
	for _, id := range specific {
		if ancestor, ok := firstAncestorIn(id, survivors, metadata); ok {
			record(id, StageNested, fmt.Sprintf("nested under %s", ancestor))
			continue
		}
		record(id, StageKept, specificReason[id])
		roots = append(roots, id)
	}
	return finish(roots)
}

// isSpecific is the stage 2 test. It returns whether the term survives and why.
func (f *DisplayFilter) isSpecific(id string, counts Counts, metadata models.TermIndex, candidates idSet, maxAncestor int64, hasSearch bool) (bool, string) {
	p := f.policy
	direct := counts.DirectOf(id)
	ancestor := counts.AncestorOf(id)

	if direct > 0 {
		if ancestor < direct {
			ancestor = direct
		}
		isLeaf := direct == ancestor
		if !hasSearch && !isLeaf && maxAncestor >= p.MinUniversalCount &&
			float64(ancestor) > p.UniversalShare*float64(maxAncestor) {
			return false, fmt.Sprintf("universal: %d of max %d", ancestor, maxAncestor)
		}

		// Only candidate children can take the parent's place.
		for _, child := range uniqueSorted(metadata.Children(id)) {
			if child == id || !candidates.has(child) {
				continue
			}
			if float64(counts.AncestorOf(child)) >= p.ChildDominanceShare*float64(ancestor) {
				return false, fmt.Sprintf("dominated by child %s (%d of %d)", child, counts.AncestorOf(child), ancestor)
			}
		}

		ratio := float64(ancestor) / float64(direct)
		threshold := p.RatioThreshold(direct)
		if ratio > threshold {
			return false, fmt.Sprintf("ratio %.1f exceeds %.0f", ratio, threshold)
		}
		return true, fmt.Sprintf("ratio %.1f within %.0f", ratio, threshold)
	}

	if ancestor <= 0 {
		return false, "no datasets"
	}

	groupChildren := 0
	for _, child := range uniqueSorted(metadata.Children(id)) {
		if child != id && candidates.has(child) && counts.AncestorOf(child) > 0 {
			groupChildren++
		}
	}
	if groupChildren >= p.MinGroupingChildren && groupChildren <= p.MaxGroupingChildren {
		return true, fmt.Sprintf("groups %d children", groupChildren)
	}

	for _, parent := range uniqueSorted(metadata.Parents(id)) {
		if !counts.HasAncestorBucket(parent) {
			continue
		}
		parentDirect := counts.DirectOf(parent)
		parentAncestor := counts.AncestorOf(parent)
		if parentDirect > 0 {
			relaxed := p.GroupingRatioMultiplier * p.RatioThreshold(parentDirect)
			if float64(parentAncestor)/float64(parentDirect) <= relaxed {
				return true, fmt.Sprintf("parent %s is specific", parent)
			}
			continue
		}
		if parentAncestor > 0 && float64(ancestor) > p.ZeroDirectDominanceShare*float64(parentAncestor) {
			return true, fmt.Sprintf("supersedes parent %s (%d of %d)", parent, ancestor, parentAncestor)
		}
	}

	return false, "grouping term without qualifying children or parent"
}

// BuildCandidates returns the direct term IDs plus every ancestor that groups
// between MinGroupingChildren and MaxGroupingChildren of them. Those virtual
// parents let a mid-level grouping surface although no dataset is tagged with it.
func (f *DisplayFilter) BuildCandidates(termIDs, ancestorIDs []string, counts Counts, metadata models.TermIndex) []string {
	candidates := newIDSet(termIDs)
	ancestors := newIDSet(ancestorIDs)

	childrenOf := make(map[string]int)
	for _, id := range uniqueSorted(termIDs) {
		for _, parent := range uniqueSorted(metadata.Parents(id)) {
			if parent != id {
				childrenOf[parent]++
			}
		}
	}

	parents := make([]string, 0, len(childrenOf))
	for parent := range childrenOf {
		parents = append(parents, parent)
	}
	for _, parent := range uniqueSorted(parents) {
		if candidates.has(parent) || !ancestors.has(parent) || counts.AncestorOf(parent) <= 0 {
			continue
		}
		n := childrenOf[parent]
		if n >= f.policy.MinGroupingChildren && n <= f.policy.MaxGroupingChildren {
			candidates.add(parent)
		}
	}
	return candidates.sorted()
}
