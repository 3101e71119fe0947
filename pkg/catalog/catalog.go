// Package catalog holds the static table of facet categories.
package catalog

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/DeplanckeLab/scfair/pkg/apperrors"
	"github.com/DeplanckeLab/scfair/pkg/models"
)

type entry struct {
	key         string
	kind        models.CategoryKind
	association string
	prefixes    []string
}

// Order matters: it is the order facets are listed and loaded in.
var entries = []entry{
	{key: "organism", kind: models.CategoryKindTree, prefixes: []string{"NCBITaxon"}},
	{key: "cell_types", kind: models.CategoryKindTree, prefixes: []string{"CL", "FBbt"}},
	{key: "tissue", kind: models.CategoryKindTree, prefixes: []string{"UBERON", "FBbt", "CL"}},
	{key: "developmental_stage", kind: models.CategoryKindTree, prefixes: []string{"HsapDv", "MmusDv", "FBdv", "ZFS", "UBERON"}},
	{key: "disease", kind: models.CategoryKindTree, prefixes: []string{"MONDO", "PATO"}},
	{key: "sex", kind: models.CategoryKindTree, prefixes: []string{"PATO"}},
	{key: "technology", kind: models.CategoryKindTree, prefixes: []string{"EFO"}},
	{key: "suspension_types", kind: models.CategoryKindFlat},
	{key: "source", kind: models.CategoryKindFlat, association: "source"},
}

var displayNames = map[string]string{
	"source":           "Data Source",
	"cell_types":       "Cell Type",
	"suspension_types": "Suspension Type",
}

var (
	categories []models.Category
	byKey      map[string]int
	byParamKey map[string]int
)

func init() {
	categories = make([]models.Category, 0, len(entries))
	byKey = make(map[string]int, len(entries))
	byParamKey = make(map[string]int, len(entries))

	for i, e := range entries {
		c := models.Category{
			Key:              e.key,
			Kind:             e.kind,
			ParamKey:         paramKey(e),
			DisplayName:      displayName(e.key),
			Association:      e.association,
			OntologyPrefixes: append([]string(nil), e.prefixes...),
		}
		if c.Association == "" {
			c.Association = inflection.Plural(e.key)
		}
		categories = append(categories, c)
		byKey[c.Key] = i
		byParamKey[c.ParamKey] = i
	}
}

// paramKey is the external query parameter name. Flat categories use their
// key as-is; tree categories use the pluralized key.
func paramKey(e entry) string {
	if e.kind == models.CategoryKindFlat {
		return e.key
	}
	return inflection.Plural(e.key)
}

func displayName(key string) string {
	if name, ok := displayNames[key]; ok {
		return name
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// All returns every category in catalog order. The returned slice is a copy.
func All() []models.Category {
	out := make([]models.Category, len(categories))
	copy(out, categories)
	return out
}

// Find returns the category with the given key.
func Find(key string) (models.Category, bool) {
	i, ok := byKey[key]
	if !ok {
		return models.Category{}, false
	}
	return categories[i], true
}

// Lookup is Find with an error wrapping apperrors.ErrUnknownCategory.
func Lookup(key string) (models.Category, error) {
	c, ok := Find(key)
	if !ok {
		return models.Category{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownCategory, key)
	}
	return c, nil
}

// ByParamKey resolves an external parameter name (e.g. "tissues") to its category.
func ByParamKey(param string) (models.Category, bool) {
	i, ok := byParamKey[param]
	if !ok {
		return models.Category{}, false
	}
	return categories[i], true
}

// TreeCategories returns the hierarchical categories in catalog order.
func TreeCategories() []models.Category {
	return filter(models.CategoryKindTree)
}

// FlatCategories returns the flat categories in catalog order.
func FlatCategories() []models.Category {
	return filter(models.CategoryKindFlat)
}

func filter(kind models.CategoryKind) []models.Category {
	var out []models.Category
	for _, c := range categories {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
