package fixtures

import "github.com/DeplanckeLab/scfair/pkg/catalog"

var (
	keyword     = map[string]any{"type": "keyword"}
	text        = map[string]any{"type": "text"}
	textKeyword = map[string]any{
		"type":   "text",
		"fields": map[string]any{"keyword": map[string]any{"type": "keyword", "ignore_above": 256}},
	}
)

// DatasetsMapping returns the Elasticsearch mapping for documents produced by
// DocumentBuilder. Hierarchy fields are nested so that one entry's name and
// id are matched together.
func DatasetsMapping() map[string]any {
	props := map[string]any{
		"id":          keyword,
		"title":       text,
		"status":      keyword,
		"authors":     text,
		"cell_count":  map[string]any{"type": "integer"},
		"text_search": text,
	}
	for _, c := range catalog.All() {
		props[c.IDsField()] = keyword
		if !c.IsTree() {
			props[c.NamesField()] = textKeyword
			continue
		}
		props[c.AncestorIDsField()] = keyword
		props[c.NamesField()] = textKeyword
		props[c.SynonymsField()] = text
		props[c.AncestorNamesField()] = text
		props[c.HierarchyPath()] = map[string]any{
			"type": "nested",
			"properties": map[string]any{
				"id":        keyword,
				"name":      textKeyword,
				"depth":     map[string]any{"type": "integer"},
				"is_direct": map[string]any{"type": "boolean"},
				"synonyms":  text,
			},
		}
	}
	return map[string]any{"mappings": map[string]any{"properties": props}}
}

// OntologyMapping returns the Elasticsearch mapping of the ontology term index.
func OntologyMapping() map[string]any {
	return map[string]any{"mappings": map[string]any{"properties": map[string]any{
		"id":         keyword,
		"name":       textKeyword,
		"identifier": keyword,
		"parent_ids": keyword,
		"child_ids":  keyword,
		"synonyms":   text,
	}}}
}
