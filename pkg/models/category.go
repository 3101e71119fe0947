package models

// CategoryKind distinguishes hierarchical ontology facets from flat tag facets.
type CategoryKind string

const (
	CategoryKindTree CategoryKind = "tree"
	CategoryKindFlat CategoryKind = "flat"
)

// Category is a configured facet dimension. Categories are static and never
// persisted; see the catalog package for the table.
type Category struct {
	Key              string       `json:"key"`
	Kind             CategoryKind `json:"kind"`
	ParamKey         string       `json:"param_key"`
	DisplayName      string       `json:"display_name"`
	Association      string       `json:"association"`
	OntologyPrefixes []string     `json:"ontology_prefixes,omitempty"`
}

// IsTree reports whether the category is backed by an ontology hierarchy.
func (c Category) IsTree() bool {
	return c.Kind == CategoryKindTree
}

// AllowsPrefix reports whether an ontology prefix is valid for this category.
// Categories without configured prefixes accept everything.
func (c Category) AllowsPrefix(prefix string) bool {
	if len(c.OntologyPrefixes) == 0 {
		return true
	}
	for _, p := range c.OntologyPrefixes {
		if p == prefix {
			return true
		}
	}
	return false
}

// IDsField is the keyword field holding the directly attached term IDs.
func (c Category) IDsField() string { return c.Key + "_ids" }

// AncestorIDsField holds direct term IDs plus their full ancestor closure.
func (c Category) AncestorIDsField() string { return c.Key + "_ancestor_ids" }

// NamesField holds display names of the directly attached terms.
func (c Category) NamesField() string { return c.Key + "_names" }

// AncestorNamesField holds names of every ancestor of the attached terms.
func (c Category) AncestorNamesField() string { return c.Key + "_ancestor_names" }

// SynonymsField holds synonyms of the attached terms.
func (c Category) SynonymsField() string { return c.Key + "_synonyms" }

// HierarchyPath is the nested field with one entry per term in the closure.
func (c Category) HierarchyPath() string { return c.Key + "_hierarchy" }
