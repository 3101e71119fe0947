package handlers

import (
	"context"

	"github.com/DeplanckeLab/scfair/pkg/facets"
	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/services"
)

// mockFacetService records the arguments of the last call and returns the
// configured values.
type mockFacetService struct {
	page     *models.FacetPage
	pages    map[string]*models.FacetPage
	children []models.FacetNode
	matches  []models.SearchNode
	err      error

	lastCategory string
	lastParentID string
	lastTerm     string
	lastParams   models.FacetParams
	lastLimit    int
	lastOffset   int
}

var _ services.FacetService = (*mockFacetService)(nil)

func (m *mockFacetService) LoadFacet(ctx context.Context, categoryKey string, params models.FacetParams, limit, offset int) (*models.FacetPage, error) {
	m.lastCategory, m.lastParams, m.lastLimit, m.lastOffset = categoryKey, params, limit, offset
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockFacetService) LoadChildren(ctx context.Context, categoryKey, parentID string, params models.FacetParams) ([]models.FacetNode, error) {
	m.lastCategory, m.lastParentID, m.lastParams = categoryKey, parentID, params
	if m.err != nil {
		return nil, m.err
	}
	return m.children, nil
}

func (m *mockFacetService) SearchWithin(ctx context.Context, categoryKey, term string, params models.FacetParams) ([]models.SearchNode, error) {
	m.lastCategory, m.lastTerm, m.lastParams = categoryKey, term, params
	if m.err != nil {
		return nil, m.err
	}
	return m.matches, nil
}

func (m *mockFacetService) LoadAll(ctx context.Context, params models.FacetParams, limit int) (map[string]*models.FacetPage, error) {
	m.lastParams, m.lastLimit = params, limit
	if m.err != nil {
		return nil, m.err
	}
	return m.pages, nil
}

func (m *mockFacetService) ExplainFacet(ctx context.Context, categoryKey string, params models.FacetParams) ([]facets.Decision, error) {
	m.lastCategory, m.lastParams = categoryKey, params
	return nil, m.err
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}
