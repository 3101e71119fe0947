package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFacetParams_Selected(t *testing.T) {
	p := FacetParams{
		Search: "  lung ",
		Selections: map[string][]string{
			"tissue":   {"lung", " ", "heart "},
			"organism": {"mouse", "lung"},
		},
	}

	assert.Equal(t, "lung", p.SearchText())
	assert.True(t, p.HasSearch())
	assert.Equal(t, []string{"lung", "heart"}, p.Selected("tissue"))
	assert.Empty(t, p.Selected("disease"))
	assert.Equal(t, []string{"heart", "lung", "mouse"}, p.AllSelected())
}

func TestFacetParams_WithSelectionCopies(t *testing.T) {
	base := FacetParams{Selections: map[string][]string{"tissue": {"lung"}}}

	next := base.WithSelection("tissue", "heart")

	assert.Equal(t, []string{"lung", "heart"}, next.Selections["tissue"])
	assert.Equal(t, []string{"lung"}, base.Selections["tissue"])
	assert.False(t, FacetParams{Search: "  "}.HasSearch())
}

func TestCategory_AllowsPrefix(t *testing.T) {
	tissue := Category{Key: "tissue", Kind: CategoryKindTree, OntologyPrefixes: []string{"UBERON", "FBbt"}}
	source := Category{Key: "source", Kind: CategoryKindFlat}

	assert.True(t, tissue.IsTree())
	assert.True(t, tissue.AllowsPrefix("UBERON"))
	assert.False(t, tissue.AllowsPrefix("CL"))
	assert.True(t, source.AllowsPrefix("anything"))
	assert.False(t, source.IsTree())
	assert.Equal(t, "tissue_ancestor_ids", tissue.AncestorIDsField())
	assert.Equal(t, "tissue_hierarchy", tissue.HierarchyPath())
}

func TestTermIndex(t *testing.T) {
	idx := TermIndex{
		"lung":  {ID: "lung", Name: "lung", Identifier: "UBERON:0002048", ParentIDs: []string{"organ"}},
		"organ": {ID: "organ", Name: "organ", Identifier: "UBERON:0000062", ChildIDs: []string{"lung"}},
	}

	assert.Equal(t, "UBERON", idx.Get("lung").Prefix())
	assert.Equal(t, "", (*TermMetadata)(nil).Prefix())
	assert.Equal(t, []string{"organ"}, idx.Parents("lung"))
	assert.Equal(t, []string{"lung"}, idx.Children("organ"))
	assert.Nil(t, idx.Parents("unknown"))
	assert.Equal(t, "", idx.Name("unknown"))
	assert.Equal(t, []string{"heart", "unknown"}, idx.Missing([]string{"unknown", "lung", "", "heart", "unknown"}))

	merged := idx.Merge(TermIndex{"heart": {ID: "heart", Name: "heart"}})
	assert.Equal(t, []string{"heart", "lung", "organ"}, merged.IDs())
	assert.Len(t, idx, 2)
}
