package models

import (
	"sort"
	"strings"
)

// TermMetadata is the read-only view of an ontology term used by the facet engine.
// ParentIDs is empty for ontology roots. Relationships form a DAG, so a term
// may have several parents.
type TermMetadata struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Identifier string   `json:"identifier" yaml:"identifier"`
	ParentIDs  []string `json:"parent_ids" yaml:"parent_ids"`
	ChildIDs   []string `json:"child_ids" yaml:"child_ids"`
	Synonyms   []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
}

// Prefix returns the ontology prefix of the term's identifier ("UBERON" for
// "UBERON:0002048"), or "" when the identifier is blank.
func (t *TermMetadata) Prefix() string {
	if t == nil {
		return ""
	}
	return IdentifierPrefix(t.Identifier)
}

// IdentifierPrefix returns the substring of identifier before its first colon.
func IdentifierPrefix(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	prefix, _, _ := strings.Cut(identifier, ":")
	return prefix
}

// TermIndex maps term IDs to metadata. A missing entry means the term is
// unknown and is treated as having no parents and no children.
type TermIndex map[string]*TermMetadata

// Get returns the metadata for id, or nil.
func (idx TermIndex) Get(id string) *TermMetadata {
	if idx == nil {
		return nil
	}
	return idx[id]
}

// Parents returns the parent IDs of id.
func (idx TermIndex) Parents(id string) []string {
	if t := idx.Get(id); t != nil {
		return t.ParentIDs
	}
	return nil
}

// Children returns the child IDs of id.
func (idx TermIndex) Children(id string) []string {
	if t := idx.Get(id); t != nil {
		return t.ChildIDs
	}
	return nil
}

// Name returns the term name, or "" when unknown.
func (idx TermIndex) Name(id string) string {
	if t := idx.Get(id); t != nil {
		return t.Name
	}
	return ""
}

// Identifier returns the prefixed ontology code of id, or "".
func (idx TermIndex) Identifier(id string) string {
	if t := idx.Get(id); t != nil {
		return t.Identifier
	}
	return ""
}

// Merge returns a new index holding the entries of idx overlaid with other.
func (idx TermIndex) Merge(other TermIndex) TermIndex {
	merged := make(TermIndex, len(idx)+len(other))
	for id, t := range idx {
		merged[id] = t
	}
	for id, t := range other {
		merged[id] = t
	}
	return merged
}

// Missing returns the sorted subset of ids that have no entry in idx.
func (idx TermIndex) Missing(ids []string) []string {
	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if idx.Get(id) == nil {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

// IDs returns the sorted keys of idx.
func (idx TermIndex) IDs() []string {
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
