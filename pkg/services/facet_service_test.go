package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DeplanckeLab/scfair/pkg/apperrors"
	"github.com/DeplanckeLab/scfair/pkg/facets"
	"github.com/DeplanckeLab/scfair/pkg/fixtures"
	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/ontology"
	"github.com/DeplanckeLab/scfair/pkg/search"
	"github.com/DeplanckeLab/scfair/pkg/workerpool"
)

// ============================================================================
// Fixture IDs (pkg/fixtures/testdata/catalog.yaml)
// ============================================================================

const (
	datasetsIndex = "datasets"
	ontologyIndex = "ontology_terms"

	anatomicalEntityID = "3d397a2a-bc71-5d4b-9fa4-d0d1b1750b3c"
	organID            = "8d17f49e-8601-54ea-8e71-9d8123e370be"
	thoracicID         = "f8d76224-4c74-57f2-9001-0ce052c8a025"
	lungID             = "5c19b0df-0c62-5c70-8c6a-a71c7a9dee3f"
	heartID            = "52c06141-87f3-58cf-8257-5743e6d4f90e"
	flyHeartID         = "dfbd3694-c476-5475-b2a1-e70568331880"
	brainID            = "9a399713-46fa-5d9e-a1ac-57219e30efa9"
	bloodID            = "b6c050e0-73f6-50c3-bca8-ef408006dd94"

	mouseID      = "98855b95-82d3-5788-a32a-86cfe54542b5"
	mammaliaID   = "d082ac1d-1caf-5d67-bd6b-a49566fd156c"
	drosophilaID = "a7e4491e-24d2-54cd-ae6d-a2490174ae0a"

	cellID       = "0d141fbc-bf85-5c6b-abe3-bb519d997643"
	cardiacID    = "a0e56379-f5e3-582f-9f0a-84607ef11374"
	leukocyteID  = "7eab4348-f2de-5d39-84ce-1e1312fd0f2c"
	bCellID      = "0df17db7-7c60-5bce-871a-0144b169addb"
	tCellID      = "ffa6326a-c0e0-5308-a87c-7b7a583f0d7c"
	cd4ID        = "6d13e1af-0376-55f4-8d10-e354e528925b"
	pneumocyteID = "0b56233c-c857-5a01-810c-e95557b627b3"

	cellxgeneID = "7725e8f9-6b39-51f1-ad56-7ef988b7523f"
	bgeeID      = "482ab485-f41f-52aa-86bc-fcd83deb5329"
	asapID      = "e859808c-ca6e-5e1e-900c-1b4d2f0466b3"
	hcaID       = "3a7a25f6-21a4-5a48-b995-23a0fafe8181"
	nucleusID   = "0dfa3133-b12f-57fb-8b2c-f143d8fbafae"
)

// ============================================================================
// Test Harness
// ============================================================================

type mockSearchClient struct {
	calls    atomic.Int32
	searchFn func(ctx context.Context, index string, req *search.Request) (*search.Response, error)
}

func (m *mockSearchClient) Search(ctx context.Context, index string, req *search.Request) (*search.Response, error) {
	m.calls.Add(1)
	return m.searchFn(ctx, index, req)
}

type testHarness struct {
	service FacetService
	client  *mockSearchClient
	metrics *FacetMetrics
	logs    *observer.ObservedLogs
}

// seedMemory loads the fixture catalog into a fresh memory backend.
func seedMemory(t *testing.T) *search.MemoryClient {
	t.Helper()
	f, err := fixtures.Load(filepath.Join("..", "fixtures", "testdata", "catalog.yaml"))
	require.NoError(t, err)
	memory := search.NewMemoryClient()
	_, err = fixtures.Seed(f, memory, datasetsIndex, ontologyIndex, zap.NewNop())
	require.NoError(t, err)
	return memory
}

// newHarness routes dataset searches through a counting mock over the seeded
// backend. Ontology lookups hit the backend directly.
func newHarness(t *testing.T) *testHarness {
	t.Helper()
	memory := seedMemory(t)
	return buildHarness(t, &mockSearchClient{searchFn: memory.Search}, memory)
}

// newFailingHarness keeps ontology lookups working while every dataset
// search fails.
func newFailingHarness(t *testing.T) *testHarness {
	t.Helper()
	failing := &mockSearchClient{searchFn: func(context.Context, string, *search.Request) (*search.Response, error) {
		return nil, &search.BackendError{Index: datasetsIndex, StatusCode: 503, Type: "unavailable", Reason: "node left http://elastic:changeme@es:9200"}
	}}
	return buildHarness(t, failing, seedMemory(t))
}

func buildHarness(t *testing.T, client *mockSearchClient, ontologyBackend search.Client) *testHarness {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	metrics := NewFacetMetrics(prometheus.NewRegistry())

	lookup := ontology.NewLookup(ontology.NewSearchSource(ontologyBackend, ontologyIndex), logger)
	service := NewFacetService(client, lookup, workerpool.New(workerpool.Config{MaxConcurrent: 3}, logger), metrics, FacetServiceConfig{
		DatasetsIndex:      datasetsIndex,
		MaxAggregationSize: 1000,
		Policy:             facets.DefaultPolicy(),
	}, logger)

	return &testHarness{service: service, client: client, metrics: metrics, logs: logs}
}

func ids(nodes []models.FacetNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func names(nodes []models.FacetNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func noParams() models.FacetParams {
	return models.FacetParams{}
}

// ============================================================================
// LoadFacet
// ============================================================================

func TestLoadFacet_TreeRoots(t *testing.T) {
	h := newHarness(t)

	page, err := h.service.LoadFacet(context.Background(), "tissue", noParams(), 30, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"Blood", "Brain", "Heart (FBbt)", "Thoracic segment organ"}, names(page.Nodes), "the UBERON heart below thoracic organ shares the name")
	assert.Equal(t, []string{bloodID, brainID, flyHeartID, thoracicID}, ids(page.Nodes))
	assert.Equal(t, &models.Pagination{Total: 4, Offset: 0, Limit: 30, HasMore: false}, page.Pagination)

	thoracic := page.Nodes[3]
	assert.Equal(t, int64(4), thoracic.Count)
	assert.True(t, thoracic.HasChildren)
	assert.False(t, thoracic.HasSelectedChildren)
	assert.False(t, page.Nodes[0].HasChildren)
	assert.Equal(t, int32(2), h.client.calls.Load(), "structure and counts passes")
}

func TestLoadFacet_GroupsOrganisms(t *testing.T) {
	h := newHarness(t)

	page, err := h.service.LoadFacet(context.Background(), "organism", noParams(), 30, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{drosophilaID, mammaliaID}, ids(page.Nodes))
	assert.Equal(t, int64(6), page.Nodes[1].Count)
}

func TestLoadFacet_EveryNodeHasPositiveCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, key := range []string{"organism", "cell_types", "tissue", "developmental_stage", "disease", "sex", "technology"} {
		page, err := h.service.LoadFacet(ctx, key, noParams(), 0, 0)
		require.NoError(t, err, key)
		assert.NotEmpty(t, page.Nodes, key)
		assert.Nil(t, page.Pagination, "non-positive limit disables pagination")
		for _, n := range page.Nodes {
			assert.Positive(t, n.Count, "%s/%s", key, n.Name)
		}
	}
}

func TestLoadFacet_SearchNarrowsRoots(t *testing.T) {
	h := newHarness(t)

	page, err := h.service.LoadFacet(context.Background(), "tissue", models.FacetParams{Search: "heart"}, 30, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{flyHeartID, thoracicID}, ids(page.Nodes))
	assert.Equal(t, int64(1), page.Nodes[0].Count)
	assert.Equal(t, int64(2), page.Nodes[1].Count)
}

func TestLoadFacet_OtherCategoryFilters(t *testing.T) {
	h := newHarness(t)
	params := models.FacetParams{}.WithSelection("organism", mouseID)

	page, err := h.service.LoadFacet(context.Background(), "tissue", params, 30, 0)

	require.NoError(t, err)
	require.Len(t, page.Nodes, 1)
	assert.Equal(t, bloodID, page.Nodes[0].ID)
	assert.Equal(t, int64(1), page.Nodes[0].Count)
}

func TestLoadFacet_OwnSelectionDoesNotNarrowCounts(t *testing.T) {
	h := newHarness(t)
	params := models.FacetParams{}.WithSelection("tissue", lungID)

	page, err := h.service.LoadFacet(context.Background(), "tissue", params, 30, 0)

	require.NoError(t, err)
	require.Len(t, page.Nodes, 4)
	first := page.Nodes[0]
	assert.Equal(t, thoracicID, first.ID, "the branch holding the selection comes first")
	assert.True(t, first.HasSelectedChildren)
	assert.Equal(t, int64(4), first.Count)
	assert.Equal(t, []string{"Blood", "Brain", "Heart (FBbt)"}, names(page.Nodes[1:]))
}

func TestLoadFacet_SelectionAboveRootsIsAnchored(t *testing.T) {
	h := newHarness(t)
	params := models.FacetParams{}.WithSelection("tissue", organID)

	page, err := h.service.LoadFacet(context.Background(), "tissue", params, 30, 0)

	require.NoError(t, err)
	require.Len(t, page.Nodes, 5)
	anchor := page.Nodes[0]
	assert.Equal(t, anatomicalEntityID, anchor.ID, "the lineage top of the selection is surfaced")
	assert.True(t, anchor.HasSelectedChildren)
	assert.NotContains(t, ids(page.Nodes), organID)
}

func TestLoadFacet_PagesConcatenate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.LoadFacet(ctx, "tissue", noParams(), 2, 0)
	require.NoError(t, err)
	second, err := h.service.LoadFacet(ctx, "tissue", noParams(), 2, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"Blood", "Brain"}, names(first.Nodes))
	assert.True(t, first.Pagination.HasMore)
	assert.Equal(t, []string{"Heart (FBbt)", "Thoracic segment organ"}, names(second.Nodes))
	assert.False(t, second.Pagination.HasMore)
	assert.Equal(t, 4, second.Pagination.Total)
}

func TestLoadFacet_NoMatchesGivesZeroedPagination(t *testing.T) {
	h := newHarness(t)

	page, err := h.service.LoadFacet(context.Background(), "tissue", models.FacetParams{Search: "zebrafish"}, 30, 0)

	require.NoError(t, err)
	assert.Empty(t, page.Nodes)
	assert.NotNil(t, page.Nodes)
	assert.Equal(t, &models.Pagination{Limit: 30}, page.Pagination)
}

func TestLoadFacet_Flat(t *testing.T) {
	h := newHarness(t)

	page, err := h.service.LoadFacet(context.Background(), "source", noParams(), 30, 0)

	require.NoError(t, err)
	assert.Nil(t, page.Pagination)
	assert.Equal(t, []string{"ASAP", "Bgee", "CELLxGENE", "Human Cell Atlas"}, names(page.Nodes))
	assert.Equal(t, []string{asapID, bgeeID, cellxgeneID, hcaID}, ids(page.Nodes))
	assert.Equal(t, int64(3), page.Nodes[2].Count)
	assert.Equal(t, int32(1), h.client.calls.Load())
}

func TestLoadFacet_FlatSelectionFirst(t *testing.T) {
	h := newHarness(t)
	params := models.FacetParams{}.WithSelection("source", hcaID)

	page, err := h.service.LoadFacet(context.Background(), "source", params, 30, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{hcaID, asapID, bgeeID, cellxgeneID}, ids(page.Nodes))
	assert.Equal(t, int64(2), page.Nodes[0].Count)
}

func TestLoadFacet_UnknownCategory(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.LoadFacet(context.Background(), "colour", noParams(), 30, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnknownCategory)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.Zero(t, h.client.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(opLoadFacet, "unknown", OutcomeInvalid)))
}

func TestLoadFacet_BackendFailureDegrades(t *testing.T) {
	h := newFailingHarness(t)

	page, err := h.service.LoadFacet(context.Background(), "tissue", noParams(), 30, 0)

	require.NoError(t, err)
	assert.Equal(t, models.DegradedFacetPage(), page)
	require.Equal(t, 1, h.logs.FilterMessage("Facet aggregation failed").Len())
	entry := h.logs.FilterMessage("Facet aggregation failed").All()[0]
	assert.NotContains(t, entry.ContextMap()["error"], "changeme")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(opLoadFacet, "tissue", OutcomeDegraded)))
}

func TestLoadFacet_RecordsMetrics(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.LoadFacet(context.Background(), "tissue", noParams(), 30, 0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(opLoadFacet, "tissue", OutcomeOK)))
	assert.Equal(t, 1, testutil.CollectAndCount(h.metrics.duration))
}

// ============================================================================
// LoadChildren
// ============================================================================

func TestLoadChildren(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.LoadChildren(context.Background(), "tissue", thoracicID, noParams())

	require.NoError(t, err)
	assert.Equal(t, []string{"Heart (UBERON)", "Lung"}, names(nodes), "labelled against the fly heart root")
	assert.Equal(t, []string{heartID, lungID}, ids(nodes))
	for _, n := range nodes {
		assert.Equal(t, int64(2), n.Count)
		assert.False(t, n.HasChildren)
	}
}

func TestLoadChildren_DuplicateLabelsFollowWholeTree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	page, err := h.service.LoadFacet(ctx, "tissue", noParams(), 30, 0)
	require.NoError(t, err)
	children, err := h.service.LoadChildren(ctx, "tissue", thoracicID, noParams())
	require.NoError(t, err)

	labels := make(map[string]string)
	for _, n := range append(page.Nodes, children...) {
		labels[n.ID] = n.Name
	}
	assert.Equal(t, "Heart (FBbt)", labels[flyHeartID])
	assert.Equal(t, "Heart (UBERON)", labels[heartID])
	assert.Equal(t, "Lung", labels[lungID], "unique names stay bare")
}

func TestLoadChildren_SkipsVisibleRoots(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.LoadChildren(context.Background(), "tissue", organID, noParams())

	require.NoError(t, err)
	require.Len(t, nodes, 1, "brain is already a top-level entry")
	assert.Equal(t, thoracicID, nodes[0].ID)
	assert.True(t, nodes[0].HasChildren)
	assert.Equal(t, int64(4), nodes[0].Count)
}

func TestLoadChildren_NestedBranch(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.LoadChildren(context.Background(), "cell_types", leukocyteID, noParams())

	require.NoError(t, err)
	assert.Equal(t, []string{bCellID, tCellID}, ids(nodes))
	assert.True(t, nodes[1].HasChildren, "T cell leads to CD4-positive T cells")
}

func TestLoadChildren_SelectedChildFirst(t *testing.T) {
	h := newHarness(t)
	params := models.FacetParams{}.WithSelection("tissue", lungID)

	nodes, err := h.service.LoadChildren(context.Background(), "tissue", thoracicID, params)

	require.NoError(t, err)
	assert.Equal(t, []string{lungID, heartID}, ids(nodes))
}

func TestLoadChildren_LeafMakesNoQuery(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.LoadChildren(context.Background(), "tissue", lungID, noParams())

	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
	assert.Zero(t, h.client.calls.Load())
}

func TestLoadChildren_InvalidInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.LoadChildren(ctx, "source", cellxgeneID, noParams())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	assert.NotErrorIs(t, err, apperrors.ErrUnknownCategory)

	_, err = h.service.LoadChildren(ctx, "colour", organID, noParams())
	assert.ErrorIs(t, err, apperrors.ErrUnknownCategory)

	_, err = h.service.LoadChildren(ctx, "tissue", "  ", noParams())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestLoadChildren_BackendFailureDegrades(t *testing.T) {
	h := newFailingHarness(t)

	nodes, err := h.service.LoadChildren(context.Background(), "tissue", thoracicID, noParams())

	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
	assert.Equal(t, 1, h.logs.FilterMessage("Children aggregation failed").Len())
}

// ============================================================================
// SearchWithin
// ============================================================================

func TestSearchWithin_TreeLabelsDuplicates(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.SearchWithin(context.Background(), "tissue", "heart", noParams())

	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Heart (FBbt)", nodes[0].Name)
	assert.Equal(t, flyHeartID, nodes[0].ID)
	assert.Equal(t, "FBbt:00003154", nodes[0].Identifier)
	assert.Equal(t, int64(1), nodes[0].Count)
	assert.Equal(t, "Heart (UBERON)", nodes[1].Name)
	assert.Equal(t, int64(2), nodes[1].Count)
	for _, n := range nodes {
		assert.True(t, n.IsDirect)
		assert.Zero(t, n.Depth)
	}
}

func TestSearchWithin_TreeHierarchicalOrder(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.SearchWithin(context.Background(), "cell_types", "cell", noParams())

	require.NoError(t, err)
	var got []string
	var depths []int
	for _, n := range nodes {
		got = append(got, n.ID)
		depths = append(depths, n.Depth)
	}
	assert.Equal(t, []string{cellID, cardiacID, leukocyteID, bCellID, tCellID, cd4ID, pneumocyteID}, got)
	assert.Equal(t, []int{0, 1, 1, 2, 2, 3, 1}, depths)
	assert.Equal(t, "Cell", nodes[0].Name)
	assert.False(t, nodes[0].IsDirect)
	assert.True(t, nodes[0].HasChildren)
	assert.True(t, nodes[1].IsDirect)
	assert.False(t, nodes[1].HasChildren)
}

func TestSearchWithin_TreeNestsAcrossUnmatchedTerms(t *testing.T) {
	f := &fixtures.Fixture{
		Ontology: []*models.TermMetadata{
			{ID: cellID, Name: "cell", Identifier: "CL:0000000"},
			{ID: leukocyteID, Name: "leukocyte", Identifier: "CL:0000738", ParentIDs: []string{cellID}},
			{ID: bCellID, Name: "B cell", Identifier: "CL:0000236", ParentIDs: []string{leukocyteID}},
		},
		Datasets: []fixtures.Dataset{
			{ID: "ds-1", Title: "Blood atlas", Status: fixtures.StatusCompleted, Terms: map[string][]string{"cell_types": {bCellID}}},
		},
	}
	memory := search.NewMemoryClient()
	_, err := fixtures.Seed(f, memory, datasetsIndex, ontologyIndex, zap.NewNop())
	require.NoError(t, err)
	h := buildHarness(t, &mockSearchClient{searchFn: memory.Search}, memory)

	nodes, err := h.service.SearchWithin(context.Background(), "cell_types", "cell", noParams())

	require.NoError(t, err)
	require.Len(t, nodes, 2, "leukocyte does not match")
	assert.Equal(t, cellID, nodes[0].ID)
	assert.Equal(t, 0, nodes[0].Depth)
	assert.True(t, nodes[0].HasChildren)
	assert.Equal(t, bCellID, nodes[1].ID)
	assert.Equal(t, 1, nodes[1].Depth, "B cell sits under cell through leukocyte")
	assert.True(t, nodes[1].IsDirect)
}

func TestSearchWithin_FlatScoring(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.SearchWithin(context.Background(), "source", "cel", noParams())

	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "CELLxGENE", nodes[0].Name, "prefix match ranks before word prefix")
	assert.Equal(t, int64(3), nodes[0].Count)
	assert.Equal(t, "Human Cell Atlas", nodes[1].Name)
}

func TestSearchWithin_FlatDropsCoOccurringTags(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.SearchWithin(context.Background(), "suspension_types", "nuc", noParams())

	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, nucleusID, nodes[0].ID)
	assert.Equal(t, "Nucleus", nodes[0].Name)
	assert.Equal(t, int64(4), nodes[0].Count)
}

func TestSearchWithin_BlankTerm(t *testing.T) {
	h := newHarness(t)

	nodes, err := h.service.SearchWithin(context.Background(), "tissue", "   ", noParams())

	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
	assert.Zero(t, h.client.calls.Load())
}

func TestSearchWithin_BackendFailureDegrades(t *testing.T) {
	h := newFailingHarness(t)

	nodes, err := h.service.SearchWithin(context.Background(), "tissue", "heart", noParams())

	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Equal(t, 1, h.logs.FilterMessage("Category search failed").Len())
}

// ============================================================================
// LoadAll / ExplainFacet
// ============================================================================

func TestLoadAll(t *testing.T) {
	h := newHarness(t)

	pages, err := h.service.LoadAll(context.Background(), noParams(), 30)

	require.NoError(t, err)
	assert.Len(t, pages, 9)
	assert.Equal(t, []string{drosophilaID, mammaliaID}, ids(pages["organism"].Nodes))
	assert.Nil(t, pages["source"].Pagination)
	assert.NotNil(t, pages["tissue"].Pagination)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.requests.WithLabelValues(opLoadAll, "all", OutcomeOK)))
}

func TestLoadAll_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := h.service.LoadAll(ctx, noParams(), 30)

	require.NoError(t, err)
	assert.Len(t, pages, 9)
	for key, page := range pages {
		assert.Empty(t, page.Nodes, key)
	}
}

func TestExplainFacet(t *testing.T) {
	h := newHarness(t)

	decisions, err := h.service.ExplainFacet(context.Background(), "tissue", noParams())

	require.NoError(t, err)
	byID := make(map[string]facets.Decision, len(decisions))
	for _, d := range decisions {
		byID[d.ID] = d
	}
	assert.Len(t, decisions, 6)
	assert.True(t, byID[thoracicID].Kept)
	assert.Equal(t, "groups 2 children", byID[thoracicID].Reason)
	assert.Equal(t, facets.StageNested, byID[lungID].Stage)
	assert.Equal(t, "nested under "+thoracicID, byID[lungID].Reason)
}

func TestExplainFacet_Errors(t *testing.T) {
	h := newFailingHarness(t)
	ctx := context.Background()

	_, err := h.service.ExplainFacet(ctx, "source", noParams())
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = h.service.ExplainFacet(ctx, "tissue", noParams())
	require.Error(t, err)
	var backendErr *search.BackendError
	assert.True(t, errors.As(err, &backendErr))
}
