// Package fixtures loads a YAML catalog of ontology terms and datasets and
// turns it into indexed documents for the in-memory search backend.
package fixtures

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/models"
)

// StatusCompleted marks a dataset as searchable.
const StatusCompleted = "completed"

// Fixture is the decoded YAML file.
type Fixture struct {
	Ontology  []*models.TermMetadata `yaml:"ontology"`
	FlatTerms map[string][]FlatTerm  `yaml:"flat_terms"`
	Datasets  []Dataset              `yaml:"datasets"`
}

// FlatTerm is a tag of a flat category, e.g. a data source.
type FlatTerm struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Dataset is one catalog entry. Terms maps category keys to directly
// annotated term IDs.
type Dataset struct {
	ID        string              `yaml:"id"`
	Title     string              `yaml:"title"`
	Status    string              `yaml:"status"`
	Authors   []string            `yaml:"authors"`
	CellCount int                 `yaml:"cell_count"`
	Terms     map[string][]string `yaml:"terms"`
}

// Load reads and validates a fixture file.
func Load(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates fixture YAML.
func Parse(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	for i := range f.Datasets {
		if f.Datasets[i].Status == "" {
			f.Datasets[i].Status = StatusCompleted
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks IDs are unique and every dataset annotation resolves.
func (f *Fixture) Validate() error {
	terms := make(map[string]bool, len(f.Ontology))
	for _, t := range f.Ontology {
		if t == nil || t.ID == "" {
			return fmt.Errorf("ontology term without id")
		}
		if terms[t.ID] {
			return fmt.Errorf("duplicate ontology term %s", t.ID)
		}
		terms[t.ID] = true
	}

	flat := make(map[string]map[string]bool, len(f.FlatTerms))
	for key, tags := range f.FlatTerms {
		c, ok := catalog.Find(key)
		if !ok || c.IsTree() {
			return fmt.Errorf("flat_terms: %q is not a flat category", key)
		}
		flat[key] = make(map[string]bool, len(tags))
		for _, tag := range tags {
			flat[key][tag.ID] = true
		}
	}

	datasets := make(map[string]bool, len(f.Datasets))
	for _, ds := range f.Datasets {
		if ds.ID == "" {
			return fmt.Errorf("dataset without id")
		}
		if datasets[ds.ID] {
			return fmt.Errorf("duplicate dataset %s", ds.ID)
		}
		datasets[ds.ID] = true

		for key, ids := range ds.Terms {
			c, ok := catalog.Find(key)
			if !ok {
				return fmt.Errorf("dataset %s: unknown category %q", ds.ID, key)
			}
			for _, id := range ids {
				known := terms[id]
				if !c.IsTree() {
					known = flat[key][id]
				}
				if !known {
					return fmt.Errorf("dataset %s: unknown %s term %s", ds.ID, key, id)
				}
			}
		}
	}
	return nil
}

// Index returns the ontology as a TermIndex. Child links are derived from
// parent links and merged with any listed explicitly.
func (f *Fixture) Index() models.TermIndex {
	index := make(models.TermIndex, len(f.Ontology))
	for _, t := range f.Ontology {
		copied := *t
		copied.ParentIDs = append([]string(nil), t.ParentIDs...)
		copied.ChildIDs = append([]string(nil), t.ChildIDs...)
		index[t.ID] = &copied
	}
	for _, t := range index {
		for _, parentID := range t.ParentIDs {
			if parent := index[parentID]; parent != nil {
				parent.ChildIDs = append(parent.ChildIDs, t.ID)
			}
		}
	}
	for _, t := range index {
		t.ChildIDs = dedupeSorted(t.ChildIDs)
	}
	return index
}

// FlatNames maps category key to tag ID to display name.
func (f *Fixture) FlatNames() map[string]map[string]string {
	out := make(map[string]map[string]string, len(f.FlatTerms))
	for key, tags := range f.FlatTerms {
		out[key] = make(map[string]string, len(tags))
		for _, tag := range tags {
			out[key][tag.ID] = tag.Name
		}
	}
	return out
}

func dedupeSorted(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
