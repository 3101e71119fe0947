package facets

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/DeplanckeLab/scfair/pkg/models"
)

// NodeInput carries everything BuildNodes needs for one category.
type NodeInput struct {
	// DisplayIDs are the terms to emit, in output order.
	DisplayIDs []string
	// Counts holds the rolled-up count per term.
	Counts   map[string]int64
	Metadata models.TermIndex
	// ScopedTermIDs are the terms present in the current result set.
	ScopedTermIDs []string
	VisibleRoots  []string
	// SelectedIDs are the selections of this category only.
	SelectedIDs []string
	// GlobalDuplicateNames, keyed by lowercased name, replaces the local
	// duplicate detection when non-nil so labels stay stable across pages.
	GlobalDuplicateNames map[string]bool
}

// BuildNodes turns display IDs into facet nodes.
func BuildNodes(in NodeInput) []models.FacetNode {
	scoped := newIDSet(in.ScopedTermIDs)
	roots := newIDSet(in.VisibleRoots)
	selectedTrace := newIDSet(TraceAncestors(in.SelectedIDs, in.Metadata))

	nodes := make([]models.FacetNode, 0, len(in.DisplayIDs))
	seen := make(idSet, len(in.DisplayIDs))
	for _, id := range in.DisplayIDs {
		if id == "" || seen.has(id) {
			continue
		}
		seen.add(id)
		nodes = append(nodes, models.FacetNode{
			ID:                  id,
			Name:                DisplayName(id, in.Metadata),
			Count:               in.Counts[id],
			HasChildren:         hasScopedChildren(id, in.Metadata, scoped, roots),
			HasSelectedChildren: selectedTrace.has(id),
		})
	}

	duplicates := in.GlobalDuplicateNames
	if duplicates == nil {
		duplicates = duplicateNodeNames(nodes)
	}
	for i := range nodes {
		nodes[i].Name = LabelDuplicate(nodes[i].Name, nodes[i].ID, in.Metadata, duplicates)
	}
	return nodes
}

func hasScopedChildren(id string, metadata models.TermIndex, scoped, roots idSet) bool {
	for _, child := range metadata.Children(id) {
		if child != id && scoped.has(child) && !roots.has(child) {
			return true
		}
	}
	return false
}

// DisplayName returns the capitalized metadata name of id, or id itself when
// the term is unknown.
func DisplayName(id string, metadata models.TermIndex) string {
	name := metadata.Name(id)
	if strings.TrimSpace(name) == "" {
		name = id
	}
	return Capitalize(name)
}

// Capitalize upper-cases the first letter and leaves the rest untouched, so
// names like "CD4-positive T cell" keep their casing.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// DuplicateNames returns the lowercased names shared by two or more of ids.
func DuplicateNames(metadata models.TermIndex, ids []string) map[string]bool {
	counts := make(map[string]int)
	for _, id := range uniqueSorted(ids) {
		counts[strings.ToLower(DisplayName(id, metadata))]++
	}
	return repeatedNames(counts)
}

func duplicateNodeNames(nodes []models.FacetNode) map[string]bool {
	counts := make(map[string]int, len(nodes))
	for _, n := range nodes {
		counts[strings.ToLower(n.Name)]++
	}
	return repeatedNames(counts)
}

func repeatedNames(counts map[string]int) map[string]bool {
	out := make(map[string]bool)
	for name, n := range counts {
		if n > 1 {
			out[name] = true
		}
	}
	return out
}

// LabelDuplicate appends " (PREFIX)" to name when it is in duplicates and the
// term has an ontology prefix. Without a prefix the name is returned as is.
func LabelDuplicate(name, id string, metadata models.TermIndex, duplicates map[string]bool) string {
	if !duplicates[strings.ToLower(name)] {
		return name
	}
	prefix := metadata.Get(id).Prefix()
	if prefix == "" {
		return name
	}
	return name + " (" + prefix + ")"
}

// LabelDuplicates labels names shared within nodes, in place.
func LabelDuplicates(nodes []models.FacetNode, metadata models.TermIndex) {
	duplicates := duplicateNodeNames(nodes)
	for i := range nodes {
		nodes[i].Name = LabelDuplicate(nodes[i].Name, nodes[i].ID, metadata, duplicates)
	}
}
