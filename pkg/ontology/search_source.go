package ontology

import (
	"context"
	"fmt"

	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/search"
)

// termSourceFields are the document fields read from the ontology index.
var termSourceFields = []string{"id", "name", "identifier", "parent_ids", "child_ids", "synonyms"}

// SearchSource reads terms from the ontology index of the search backend.
type SearchSource struct {
	client search.Client
	index  string
}

var _ TermSource = (*SearchSource)(nil)

// NewSearchSource creates a source reading from index.
func NewSearchSource(client search.Client, index string) *SearchSource {
	return &SearchSource{client: client, index: index}
}

// FetchTerms runs one terms query on the id field.
func (s *SearchSource) FetchTerms(ctx context.Context, ids []string) (models.TermIndex, error) {
	if len(ids) == 0 {
		return models.TermIndex{}, nil
	}

	resp, err := s.client.Search(ctx, s.index, &search.Request{
		Query:  search.TermsQuery{Field: "id", Values: ids},
		Size:   len(ids),
		Source: termSourceFields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query ontology index: %w", err)
	}

	index := make(models.TermIndex, len(resp.Hits))
	for _, hit := range resp.Hits {
		var term models.TermMetadata
		if err := hit.Decode(&term); err != nil {
			return nil, fmt.Errorf("failed to decode ontology term %s: %w", hit.ID, err)
		}
		if term.ID == "" {
			term.ID = hit.ID
		}
		index[term.ID] = &term
	}
	return index, nil
}
