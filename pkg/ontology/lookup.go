// Package ontology resolves ontology term metadata (names, identifiers and
// parent/child links) for the facet engine.
package ontology

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/logging"
	"github.com/DeplanckeLab/scfair/pkg/models"
)

// TermSource fetches term metadata in one batch. Unknown IDs are absent from
// the result, which is not an error.
type TermSource interface {
	FetchTerms(ctx context.Context, ids []string) (models.TermIndex, error)
}

// Lookup is the error-absorbing front of a TermSource. Metadata gaps degrade
// the facets but never fail a request.
type Lookup struct {
	source TermSource
	logger *zap.Logger
}

// NewLookup creates a lookup over source.
func NewLookup(source TermSource, logger *zap.Logger) *Lookup {
	return &Lookup{source: source, logger: logger.Named("ontology")}
}

// FetchTerms returns metadata for ids. Blank and repeated IDs are dropped; an
// empty input makes no call. On a source error it logs and returns an empty index.
func (l *Lookup) FetchTerms(ctx context.Context, ids []string) models.TermIndex {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return models.TermIndex{}
	}

	index, err := l.source.FetchTerms(ctx, ids)
	if err != nil {
		l.logger.Warn("Failed to fetch ontology terms",
			zap.Int("count", len(ids)),
			zap.String("error", logging.SanitizeError(err)))
		return models.TermIndex{}
	}
	if index == nil {
		return models.TermIndex{}
	}
	return index
}

// Children returns the children of parentID whose ontology prefix is valid
// for category, sorted. A child without metadata is kept since it cannot be
// shown to be out of scope.
func (l *Lookup) Children(ctx context.Context, parentID string, category models.Category) []string {
	parent := l.FetchTerms(ctx, []string{parentID}).Get(parentID)
	if parent == nil {
		return []string{}
	}
	children := normalizeIDs(parent.ChildIDs)
	if len(children) == 0 || len(category.OntologyPrefixes) == 0 {
		return children
	}

	metadata := l.FetchTerms(ctx, children)
	valid := make([]string, 0, len(children))
	for _, id := range children {
		term := metadata.Get(id)
		if term == nil || category.AllowsPrefix(term.Prefix()) {
			valid = append(valid, id)
		}
	}
	return valid
}

// ChildrenOfSet returns the union of the children of ids.
func (l *Lookup) ChildrenOfSet(ctx context.Context, ids []string) []string {
	index := l.FetchTerms(ctx, ids)
	var out []string
	for _, term := range index {
		out = append(out, term.ChildIDs...)
	}
	return normalizeIDs(out)
}

// ParentsOfSet returns the union of the parents of ids.
func (l *Lookup) ParentsOfSet(ctx context.Context, ids []string) []string {
	index := l.FetchTerms(ctx, ids)
	var out []string
	for _, term := range index {
		out = append(out, term.ParentIDs...)
	}
	return normalizeIDs(out)
}

// normalizeIDs de-duplicates, drops blanks and sorts.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
