package fixtures

import (
	"sort"
	"strings"

	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/models"
)

// HierarchyEntry is one element of a <category>_hierarchy nested field.
// Depth counts parent steps from the nearest directly annotated term.
type HierarchyEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Depth    int      `json:"depth"`
	IsDirect bool     `json:"is_direct"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// DocumentBuilder derives the indexed document shape of a dataset from its
// direct annotations.
type DocumentBuilder struct {
	terms     models.TermIndex
	flatNames map[string]map[string]string
}

// NewDocumentBuilder creates a builder over an ontology and the flat tag names.
func NewDocumentBuilder(terms models.TermIndex, flatNames map[string]map[string]string) *DocumentBuilder {
	return &DocumentBuilder{terms: terms, flatNames: flatNames}
}

// Build returns the document of ds keyed by index field name.
func (b *DocumentBuilder) Build(ds Dataset) map[string]any {
	doc := map[string]any{
		"id":         ds.ID,
		"title":      ds.Title,
		"status":     ds.Status,
		"authors":    nonNil(ds.Authors),
		"cell_count": ds.CellCount,
	}

	text := []string{ds.Title}
	text = append(text, ds.Authors...)

	for _, c := range catalog.All() {
		ids := dedupe(ds.Terms[c.Key])
		if !c.IsTree() {
			names := make([]string, 0, len(ids))
			for _, id := range ids {
				name := b.flatNames[c.Key][id]
				if name == "" {
					name = id
				}
				names = append(names, name)
			}
			doc[c.IDsField()] = ids
			doc[c.NamesField()] = names
			text = append(text, names...)
			continue
		}

		hierarchy, ancestorIDs, ancestorNames := b.hierarchy(ids)
		var names, synonyms []string
		for _, id := range ids {
			if t := b.terms.Get(id); t != nil {
				names = append(names, t.Name)
				synonyms = append(synonyms, t.Synonyms...)
			}
		}
		names = dedupe(names)

		doc[c.IDsField()] = ids
		doc[c.AncestorIDsField()] = ancestorIDs
		doc[c.NamesField()] = nonNil(names)
		doc[c.SynonymsField()] = nonNil(dedupe(synonyms))
		doc[c.AncestorNamesField()] = ancestorNames
		doc[c.HierarchyPath()] = hierarchy
		text = append(text, names...)
	}

	doc["text_search"] = strings.Join(nonBlank(text), " ")
	return doc
}

// hierarchy walks the ancestors of the direct terms breadth-first with a
// visited set per term. Entries are unique by ID; a direct term wins over the
// same term reached as an ancestor.
func (b *DocumentBuilder) hierarchy(direct []string) ([]HierarchyEntry, []string, []string) {
	entries := []HierarchyEntry{}
	seen := make(map[string]bool)
	ancestorIDs := append([]string{}, direct...)
	inAncestors := make(map[string]bool, len(direct))
	for _, id := range direct {
		inAncestors[id] = true
	}
	var ancestorNames []string

	for _, id := range direct {
		t := b.terms.Get(id)
		if t == nil || seen[id] {
			continue
		}
		seen[id] = true
		entries = append(entries, HierarchyEntry{ID: id, Name: t.Name, IsDirect: true, Synonyms: t.Synonyms})
	}

	for _, id := range direct {
		if b.terms.Get(id) == nil {
			continue
		}
		type step struct {
			id    string
			depth int
		}
		visited := map[string]bool{id: true}
		queue := []step{{id: id}}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			parents := append([]string(nil), b.terms.Parents(current.id)...)
			sort.Strings(parents)
			for _, parentID := range parents {
				if visited[parentID] {
					continue
				}
				visited[parentID] = true
				parent := b.terms.Get(parentID)
				if parent == nil {
					continue
				}
				if !inAncestors[parentID] {
					inAncestors[parentID] = true
					ancestorIDs = append(ancestorIDs, parentID)
					ancestorNames = append(ancestorNames, parent.Name)
				}
				if !seen[parentID] {
					seen[parentID] = true
					entries = append(entries, HierarchyEntry{
						ID:       parentID,
						Name:     parent.Name,
						Depth:    current.depth + 1,
						Synonyms: parent.Synonyms,
					})
				}
				queue = append(queue, step{id: parentID, depth: current.depth + 1})
			}
		}
	}

	return entries, ancestorIDs, nonNil(dedupe(ancestorNames))
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func nonBlank(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
