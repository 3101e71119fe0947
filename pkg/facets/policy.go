// Package facets holds the pure facet display algorithms: which ontology terms
// become top-level entries, how nodes are built and labeled, and how they are
// ordered and paginated. Nothing in this package does I/O; callers pass in
// counts and a pre-fetched TermIndex.
package facets

import "github.com/DeplanckeLab/scfair/pkg/config"

// Policy holds the tuned thresholds of the display filter. The values were
// calibrated against production ontology data and are loaded from config.
type Policy struct {
	// StrictRatio is the maximum ancestor/direct ratio for terms with at
	// least SignificantDirectCount direct hits.
	StrictRatio float64
	// LooseRatio is the maximum ratio for all other terms.
	LooseRatio             float64
	SignificantDirectCount int64

	// A non-leaf term holding more than UniversalShare of the largest
	// ancestor count is "everything" and is dropped. Only applied when that
	// largest count is at least MinUniversalCount.
	UniversalShare    float64
	MinUniversalCount int64

	// ChildDominanceShare drops a term when one candidate child carries at
	// least this share of its ancestor count.
	ChildDominanceShare float64
	// ZeroDirectDominanceShare keeps a zero-direct term that carries more than
	// this share of a zero-direct parent's ancestor count.
	ZeroDirectDominanceShare float64

	MinGroupingChildren     int
	MaxGroupingChildren     int
	GroupingRatioMultiplier float64
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		StrictRatio:              15,
		LooseRatio:               10,
		SignificantDirectCount:   50,
		UniversalShare:           0.8,
		MinUniversalCount:        10,
		ChildDominanceShare:      0.9,
		ZeroDirectDominanceShare: 0.85,
		MinGroupingChildren:      2,
		MaxGroupingChildren:      8,
		GroupingRatioMultiplier:  2,
	}
}

// PolicyFromConfig maps the facets config section onto a Policy.
func PolicyFromConfig(cfg config.FacetsConfig) Policy {
	return Policy{
		StrictRatio:              cfg.StrictRatio,
		LooseRatio:               cfg.LooseRatio,
		SignificantDirectCount:   cfg.SignificantDirectCount,
		UniversalShare:           cfg.UniversalShare,
		MinUniversalCount:        cfg.MinUniversalCount,
		ChildDominanceShare:      cfg.ChildDominanceShare,
		ZeroDirectDominanceShare: cfg.ZeroDirectDominanceShare,
		MinGroupingChildren:      cfg.MinGroupingChildren,
		MaxGroupingChildren:      cfg.MaxGroupingChildren,
		GroupingRatioMultiplier:  cfg.GroupingRatioMultiplier,
	}
}

// RatioThreshold returns the ancestor/direct ratio limit for a term with the
// given direct count.
func (p Policy) RatioThreshold(direct int64) float64 {
	if direct >= p.SignificantDirectCount {
		return p.StrictRatio
	}
	return p.LooseRatio
}
