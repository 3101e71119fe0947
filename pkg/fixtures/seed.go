package fixtures

import (
	"fmt"

	"go.uber.org/zap"
)

// Indexer stores one JSON document under an ID. search.MemoryClient
// implements it.
type Indexer interface {
	Index(index, id string, doc any) error
}

// SeedResult reports what Seed indexed.
type SeedResult struct {
	Terms    int
	Datasets int
}

// Seed indexes the ontology terms of f into ontologyIndex and one derived
// document per dataset into datasetsIndex.
func Seed(f *Fixture, idx Indexer, datasetsIndex, ontologyIndex string, logger *zap.Logger) (SeedResult, error) {
	var res SeedResult
	terms := f.Index()

	for _, id := range terms.IDs() {
		if err := idx.Index(ontologyIndex, id, terms[id]); err != nil {
			return res, fmt.Errorf("failed to index term %s: %w", id, err)
		}
		res.Terms++
	}

	builder := NewDocumentBuilder(terms, f.FlatNames())
	for _, ds := range f.Datasets {
		if err := idx.Index(datasetsIndex, ds.ID, builder.Build(ds)); err != nil {
			return res, fmt.Errorf("failed to index dataset %s: %w", ds.ID, err)
		}
		res.Datasets++
	}

	logger.Info("Seeded fixture",
		zap.Int("terms", res.Terms),
		zap.Int("datasets", res.Datasets),
		zap.String("datasets_index", datasetsIndex),
		zap.String("ontology_index", ontologyIndex))
	return res, nil
}
