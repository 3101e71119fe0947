package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DeplanckeLab/scfair/pkg/apperrors"
	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/facets"
	"github.com/DeplanckeLab/scfair/pkg/logging"
	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/ontology"
	"github.com/DeplanckeLab/scfair/pkg/querybuilder"
	"github.com/DeplanckeLab/scfair/pkg/search"
	"github.com/DeplanckeLab/scfair/pkg/workerpool"
)

// Operation labels for metrics and logs.
const (
	opLoadFacet    = "load_facet"
	opLoadChildren = "load_children"
	opSearchWithin = "search_within"
	opLoadAll      = "load_all"
)

// FacetService turns search backend aggregations into facet trees.
// Backend failures are logged and degrade to empty results; only invalid
// input is returned as an error.
type FacetService interface {
	// LoadFacet returns one page of the top-level nodes of a category.
	LoadFacet(ctx context.Context, categoryKey string, params models.FacetParams, limit, offset int) (*models.FacetPage, error)

	// LoadChildren returns the visible children of parentID in a tree category.
	LoadChildren(ctx context.Context, categoryKey, parentID string, params models.FacetParams) ([]models.FacetNode, error)

	// SearchWithin returns the terms of a category whose names match term.
	SearchWithin(ctx context.Context, categoryKey, term string, params models.FacetParams) ([]models.SearchNode, error)

	// LoadAll returns the first page of every category, keyed by category key.
	LoadAll(ctx context.Context, params models.FacetParams, limit int) (map[string]*models.FacetPage, error)

	// ExplainFacet reports the display filter decision for every candidate
	// term of a tree category. Unlike the other operations it returns
	// backend errors.
	ExplainFacet(ctx context.Context, categoryKey string, params models.FacetParams) ([]facets.Decision, error)
}

// FacetServiceConfig holds the static settings of the facet service.
type FacetServiceConfig struct {
	DatasetsIndex      string
	MaxAggregationSize int
	Policy             facets.Policy
}

type facetService struct {
	client  search.Client
	lookup  *ontology.Lookup
	pool    *workerpool.Pool
	metrics *FacetMetrics
	filter  *facets.DisplayFilter
	aggs    *querybuilder.AggregationRequestBuilder
	index   string
	logger  *zap.Logger
}

var _ FacetService = (*facetService)(nil)

// NewFacetService creates a facet service. metrics may be nil.
func NewFacetService(
	client search.Client,
	lookup *ontology.Lookup,
	pool *workerpool.Pool,
	metrics *FacetMetrics,
	cfg FacetServiceConfig,
	logger *zap.Logger,
) FacetService {
	return &facetService{
		client:  client,
		lookup:  lookup,
		pool:    pool,
		metrics: metrics,
		filter:  facets.NewDisplayFilter(cfg.Policy),
		aggs:    querybuilder.NewAggregationRequestBuilder(cfg.MaxAggregationSize),
		index:   cfg.DatasetsIndex,
		logger:  logger.Named("facet-service"),
	}
}

// category resolves key. Unknown keys wrap both ErrInvalidArgument and
// ErrUnknownCategory.
func (s *facetService) category(key string, treeOnly bool) (models.Category, error) {
	c, err := catalog.Lookup(key)
	if err != nil {
		return models.Category{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidArgument, err)
	}
	if treeOnly && !c.IsTree() {
		return models.Category{}, fmt.Errorf("%w: %s is not a hierarchical category", apperrors.ErrInvalidArgument, c.Key)
	}
	return c, nil
}

func (s *facetService) warn(msg, operation string, c models.Category, err error) {
	s.logger.Warn(msg,
		zap.String("operation", operation),
		zap.String("category", c.Key),
		zap.String("error", logging.SanitizeError(err)))
}

// LoadFacet implements FacetService.
func (s *facetService) LoadFacet(ctx context.Context, categoryKey string, params models.FacetParams, limit, offset int) (*models.FacetPage, error) {
	started := time.Now()
	c, err := s.category(categoryKey, false)
	if err != nil {
		s.metrics.observe(opLoadFacet, "unknown", OutcomeInvalid, started)
		return nil, err
	}

	var page *models.FacetPage
	if c.IsTree() {
		page, err = s.loadTree(ctx, c, params, limit, offset)
	} else {
		page, err = s.loadFlat(ctx, c, params)
	}
	if err != nil {
		s.warn("Facet aggregation failed", opLoadFacet, c, err)
		s.metrics.observe(opLoadFacet, c.Key, OutcomeDegraded, started)
		return models.DegradedFacetPage(), nil
	}

	s.metrics.observe(opLoadFacet, c.Key, OutcomeOK, started)
	return page, nil
}

// loadTree runs the structure pass (no text, no filters) and the counts pass
// (text plus the other categories' filters) concurrently. The structure
// decides which terms are roots; the counts decide which of them are shown.
func (s *facetService) loadTree(ctx context.Context, c models.Category, params models.FacetParams, limit, offset int) (*models.FacetPage, error) {
	fb := querybuilder.NewFilterBuilder(params)
	aggName := querybuilder.FacetAggName(c)

	var structure, filtered facets.Counts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		structure, err = s.treeCounts(gctx, s.aggs.TreeFacet(c, querybuilder.BuildQuery("", nil), nil), aggName)
		return err
	})
	g.Go(func() error {
		var err error
		filtered, err = s.treeCounts(gctx, s.aggs.TreeFacet(c, querybuilder.BuildQuery(params.SearchText(), nil), fb.BuildExcept(c.Key)), aggName)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(structure.Direct) == 0 || len(filtered.Ancestor) == 0 {
		return models.EmptyFacetPage(limit), nil
	}

	selected := params.Selected(c.Key)
	st := s.resolveStructure(ctx, structure, selected, params.HasSearch())

	filteredKeys := filtered.AncestorKeys()
	display := make([]string, 0, len(st.roots))
	for _, id := range st.roots {
		if filtered.AncestorOf(id) > 0 {
			display = append(display, id)
		}
	}
	display = append(display, selectionAnchors(selected, display, st.roots, filteredKeys, st.metadata)...)

	shown := make([]string, 0, len(display))
	seen := make(map[string]bool, len(display))
	for _, id := range display {
		if seen[id] || filtered.AncestorOf(id) <= 0 {
			continue
		}
		seen[id] = true
		shown = append(shown, id)
	}

	nodes := facets.BuildNodes(facets.NodeInput{
		DisplayIDs:           shown,
		Counts:               filtered.Ancestor,
		Metadata:             st.metadata,
		ScopedTermIDs:        filteredKeys,
		VisibleRoots:         st.roots,
		SelectedIDs:          selected,
		GlobalDuplicateNames: st.duplicates,
	})
	return facets.NewPaginator(params.AllSelected()).Paginate(nodes, limit, offset), nil
}

// selectionAnchors keeps selections reachable when they are not displayed
// themselves. For each such selection it returns the top of its lineage
// within valid (stopping at visible roots), or the selection itself when it
// has no valid parent.
func selectionAnchors(selected, display, roots, valid []string, metadata models.TermIndex) []string {
	shown := make(map[string]bool, len(display))
	for _, id := range display {
		shown[id] = true
	}
	inValid := make(map[string]bool, len(valid))
	for _, id := range valid {
		inValid[id] = true
	}

	var anchors []string
	for _, id := range selected {
		if shown[id] || !inValid[id] {
			continue
		}
		path := facets.BuildAncestorPaths([]string{id}, roots, valid, metadata)
		if len(path) == 0 {
			anchors = append(anchors, id)
			continue
		}
		anchors = append(anchors, facets.FilterToRootLevelOnly(path, metadata)...)
	}
	sort.Strings(anchors)
	return anchors
}

type treeStructure struct {
	metadata models.TermIndex
	roots    []string
	// duplicates are the names shared by two or more structure terms.
	duplicates map[string]bool
}

// resolveStructure fetches metadata for every structure term plus extraIDs
// in one batch and computes the visible roots and the duplicate names of the
// whole unfiltered tree, so a label does not change between the root page and
// a children load.
func (s *facetService) resolveStructure(ctx context.Context, structure facets.Counts, extraIDs []string, hasSearch bool) treeStructure {
	directKeys := structure.DirectKeys()
	ancestorKeys := structure.AncestorKeys()

	ids := make([]string, 0, len(directKeys)+len(ancestorKeys)+len(extraIDs))
	ids = append(ids, ancestorKeys...)
	ids = append(ids, directKeys...)
	ids = append(ids, extraIDs...)
	metadata := s.lookup.FetchTerms(ctx, ids)

	candidates := s.filter.BuildCandidates(directKeys, ancestorKeys, structure, metadata)
	return treeStructure{
		metadata:   metadata,
		roots:      s.filter.ComputeDisplayIDs(candidates, structure, metadata, hasSearch),
		duplicates: facets.DuplicateNames(metadata, ids[:len(ancestorKeys)+len(directKeys)]),
	}
}

func (s *facetService) treeCounts(ctx context.Context, req *search.Request, aggName string) (facets.Counts, error) {
	resp, err := s.client.Search(ctx, s.index, req)
	if err != nil {
		return facets.Counts{}, err
	}
	return countsFrom(resp.Aggregations.Get(aggName)), nil
}

// countsFrom reads the direct and ancestor buckets under agg. Missing or
// malformed aggregations yield empty counts.
func countsFrom(agg *search.AggregationResult) facets.Counts {
	counts := facets.NewCounts()
	for _, b := range agg.Sub(querybuilder.DirectTermsAgg).BucketList() {
		if b.DocCount > 0 {
			counts.Direct[b.Key] = b.DocCount
		}
	}
	for _, b := range agg.Sub(querybuilder.AncestorTermsAgg).BucketList() {
		if b.DocCount > 0 {
			counts.Ancestor[b.Key] = b.DocCount
		}
	}
	return counts
}

func (s *facetService) loadFlat(ctx context.Context, c models.Category, params models.FacetParams) (*models.FacetPage, error) {
	fb := querybuilder.NewFilterBuilder(params)
	req := s.aggs.FlatFacet(c, querybuilder.BuildQuery(params.SearchText(), nil), fb.BuildExcept(c.Key))
	resp, err := s.client.Search(ctx, s.index, req)
	if err != nil {
		return nil, err
	}

	buckets := resp.Aggregations.Get(querybuilder.FacetAggName(c)).Sub(querybuilder.FlatTermsAggName(c)).BucketList()
	nodes := make([]models.FacetNode, 0, len(buckets))
	for _, b := range buckets {
		if b.DocCount <= 0 {
			continue
		}
		nodes = append(nodes, models.FacetNode{
			ID:    b.Key,
			Name:  facets.Capitalize(flatName(c, b)),
			Count: b.DocCount,
		})
	}
	return &models.FacetPage{Nodes: facets.NewPaginator(params.AllSelected()).Sort(nodes)}, nil
}

// flatName recovers the display name of a flat bucket from its sample
// document, where names are stored parallel to IDs.
func flatName(c models.Category, b search.Bucket) string {
	hit, ok := b.Sub(querybuilder.SampleDocAgg).TopHit()
	if !ok {
		return b.Key
	}
	var doc map[string][]string
	if err := hit.Decode(&doc); err != nil {
		return b.Key
	}
	names := doc[c.NamesField()]
	for i, id := range doc[c.IDsField()] {
		if id == b.Key && i < len(names) && strings.TrimSpace(names[i]) != "" {
			return names[i]
		}
	}
	return b.Key
}

// LoadChildren implements FacetService.
func (s *facetService) LoadChildren(ctx context.Context, categoryKey, parentID string, params models.FacetParams) ([]models.FacetNode, error) {
	started := time.Now()
	c, err := s.category(categoryKey, true)
	if err != nil {
		s.metrics.observe(opLoadChildren, "unknown", OutcomeInvalid, started)
		return nil, err
	}
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		s.metrics.observe(opLoadChildren, c.Key, OutcomeInvalid, started)
		return nil, fmt.Errorf("%w: parent_id is required", apperrors.ErrInvalidArgument)
	}

	children := s.lookup.Children(ctx, parentID, c)
	if len(children) == 0 {
		s.metrics.observe(opLoadChildren, c.Key, OutcomeOK, started)
		return []models.FacetNode{}, nil
	}

	nodes, err := s.loadChildren(ctx, c, parentID, children, params)
	if err != nil {
		s.warn("Children aggregation failed", opLoadChildren, c, err)
		s.metrics.observe(opLoadChildren, c.Key, OutcomeDegraded, started)
		return []models.FacetNode{}, nil
	}

	s.metrics.observe(opLoadChildren, c.Key, OutcomeOK, started)
	return nodes, nil
}

func (s *facetService) loadChildren(ctx context.Context, c models.Category, parentID string, children []string, params models.FacetParams) ([]models.FacetNode, error) {
	fb := querybuilder.NewFilterBuilder(params)

	var structure facets.Counts
	var scoped *search.AggregationResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req := s.aggs.Children(c, querybuilder.BuildQuery(params.SearchText(), nil), fb.BuildExcept(c.Key), children)
		resp, err := s.client.Search(gctx, s.index, req)
		if err != nil {
			return err
		}
		scoped = resp.Aggregations.Get(querybuilder.ChildrenAggName(c))
		return nil
	})
	g.Go(func() error {
		var err error
		structure, err = s.treeCounts(gctx, s.aggs.TreeFacet(c, querybuilder.BuildQuery("", nil), nil), querybuilder.FacetAggName(c))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	childCounts := make(map[string]int64, len(children))
	for _, b := range scoped.Sub(querybuilder.ChildrenTermsAgg).BucketList() {
		if b.DocCount > 0 {
			childCounts[b.Key] = b.DocCount
		}
	}
	scope := countsFrom(scoped)

	selected := params.Selected(c.Key)
	extra := append(append([]string{}, children...), selected...)
	st := s.resolveStructure(ctx, structure, extra, params.HasSearch())

	roots := make(map[string]bool, len(st.roots))
	for _, id := range st.roots {
		roots[id] = true
	}

	shown := make([]string, 0, len(children))
	for _, id := range children {
		if childCounts[id] <= 0 || roots[id] || nestedUnderSibling(id, childCounts, st.metadata) {
			continue
		}
		shown = append(shown, id)
	}

	s.logger.Debug("Loaded children",
		zap.String("category", c.Key),
		zap.String("parent_id", parentID),
		zap.Int("children", len(children)),
		zap.Int("shown", len(shown)),
		zap.Int("direct_terms", len(scope.Direct)))

	nodes := facets.BuildNodes(facets.NodeInput{
		DisplayIDs:           shown,
		Counts:               childCounts,
		Metadata:             st.metadata,
		ScopedTermIDs:        scope.AncestorKeys(),
		VisibleRoots:         st.roots,
		SelectedIDs:          selected,
		GlobalDuplicateNames: st.duplicates,
	})
	return facets.NewPaginator(params.AllSelected()).Sort(nodes), nil
}

// nestedUnderSibling reports whether a direct parent of id is itself one of
// the counted children, in which case id is shown under that sibling.
func nestedUnderSibling(id string, childCounts map[string]int64, metadata models.TermIndex) bool {
	for _, parent := range metadata.Parents(id) {
		if parent != id && childCounts[parent] > 0 {
			return true
		}
	}
	return false
}

// SearchWithin implements FacetService.
func (s *facetService) SearchWithin(ctx context.Context, categoryKey, term string, params models.FacetParams) ([]models.SearchNode, error) {
	started := time.Now()
	c, err := s.category(categoryKey, false)
	if err != nil {
		s.metrics.observe(opSearchWithin, "unknown", OutcomeInvalid, started)
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.SearchNode{}, nil
	}

	base := querybuilder.BuildQuery(params.SearchText(), querybuilder.NewFilterBuilder(params).BuildExcept(c.Key))
	var nodes []models.SearchNode
	if c.IsTree() {
		nodes, err = s.searchTree(ctx, c, base, term)
	} else {
		nodes, err = s.searchFlat(ctx, c, base, term)
	}
	if err != nil {
		s.warn("Category search failed", opSearchWithin, c, err)
		s.metrics.observe(opSearchWithin, c.Key, OutcomeDegraded, started)
		return []models.SearchNode{}, nil
	}

	s.metrics.observe(opSearchWithin, c.Key, OutcomeOK, started)
	return nodes, nil
}

// hierarchyEntry is the indexed shape of one <category>_hierarchy element.
type hierarchyEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Depth    int    `json:"depth"`
	IsDirect bool   `json:"is_direct"`
}

func (s *facetService) searchTree(ctx context.Context, c models.Category, base search.Query, term string) ([]models.SearchNode, error) {
	resp, err := s.client.Search(ctx, s.index, s.aggs.TreeSearch(c, base, term))
	if err != nil {
		return nil, err
	}

	buckets := resp.Aggregations.Get(querybuilder.MatchingAggName(c)).
		Sub(querybuilder.FilteredAgg).
		Sub(querybuilder.NodesAgg).
		BucketList()
	if len(buckets) == 0 {
		return []models.SearchNode{}, nil
	}

	// The sample hierarchies hold the ancestors of every match, which the
	// hierarchical ordering walks through.
	ids := make([]string, 0, len(buckets))
	entries := make([]hierarchyEntry, 0, len(buckets))
	for _, b := range buckets {
		ids = append(ids, b.Key)
		hierarchy := sampleHierarchy(c, b)
		for _, e := range hierarchy {
			ids = append(ids, e.ID)
		}
		entries = append(entries, entryFor(b.Key, hierarchy))
	}
	metadata := s.lookup.FetchTerms(ctx, ids)

	found := make([]models.FacetNode, 0, len(buckets))
	for i, b := range buckets {
		name := metadata.Name(b.Key)
		if strings.TrimSpace(name) == "" {
			name = entries[i].Name
		}
		if strings.TrimSpace(name) == "" {
			name = b.Key
		}
		count := b.Sub(querybuilder.DetailsAgg).Count()
		if count == 0 {
			count = b.DocCount
		}
		found = append(found, models.FacetNode{ID: b.Key, Name: facets.Capitalize(name), Count: count})
	}
	facets.LabelDuplicates(found, metadata)

	nodes := make([]models.SearchNode, 0, len(found))
	for i, n := range found {
		nodes = append(nodes, models.SearchNode{
			FacetNode:  n,
			Identifier: metadata.Identifier(n.ID),
			IsDirect:   entries[i].IsDirect,
		})
	}
	return facets.SortHierarchically(nodes, metadata), nil
}

// sampleHierarchy returns the hierarchy entries of the sample document of
// bucket b.
func sampleHierarchy(c models.Category, b search.Bucket) []hierarchyEntry {
	hit, ok := b.Sub(querybuilder.DetailsAgg).Sub(querybuilder.SampleAgg).TopHit()
	if !ok {
		return nil
	}
	var doc map[string][]hierarchyEntry
	if err := hit.Decode(&doc); err != nil {
		return nil
	}
	return doc[c.HierarchyPath()]
}

func entryFor(id string, hierarchy []hierarchyEntry) hierarchyEntry {
	for _, e := range hierarchy {
		if e.ID == id {
			return e
		}
	}
	return hierarchyEntry{}
}

func (s *facetService) searchFlat(ctx context.Context, c models.Category, base search.Query, term string) ([]models.SearchNode, error) {
	resp, err := s.client.Search(ctx, s.index, s.aggs.FlatSearch(c, base, term))
	if err != nil {
		return nil, err
	}

	type scored struct {
		node  models.SearchNode
		score int
	}
	var matches []scored
	for _, b := range resp.Aggregations.Get(querybuilder.MatchingAggName(c)).Sub(querybuilder.NodesAgg).BucketList() {
		name := facets.Capitalize(flatName(c, b))
		score, ok := facets.ScoreFlatMatch(name, term)
		if !ok {
			continue
		}
		matches = append(matches, scored{
			node:  models.SearchNode{FacetNode: models.FacetNode{ID: b.Key, Name: name, Count: b.DocCount}, IsDirect: true},
			score: score,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score < matches[j].score
		}
		ni, nj := strings.ToLower(matches[i].node.Name), strings.ToLower(matches[j].node.Name)
		if ni != nj {
			return ni < nj
		}
		return matches[i].node.ID < matches[j].node.ID
	})

	nodes := make([]models.SearchNode, 0, len(matches))
	for _, m := range matches {
		nodes = append(nodes, m.node)
	}
	return nodes, nil
}

// LoadAll implements FacetService. Categories load in parallel through the
// worker pool; a category that fails gets a degraded page.
func (s *facetService) LoadAll(ctx context.Context, params models.FacetParams, limit int) (map[string]*models.FacetPage, error) {
	started := time.Now()
	categories := catalog.All()

	items := make([]workerpool.Item[*models.FacetPage], 0, len(categories))
	for _, c := range categories {
		items = append(items, workerpool.Item[*models.FacetPage]{
			ID: c.Key,
			Execute: func(ctx context.Context) (*models.FacetPage, error) {
				return s.LoadFacet(ctx, c.Key, params, limit, 0)
			},
		})
	}

	pages := make(map[string]*models.FacetPage, len(categories))
	outcome := OutcomeOK
	for _, r := range workerpool.Process(ctx, s.pool, items) {
		if r.Err != nil || r.Result == nil {
			s.logger.Warn("Facet load failed",
				zap.String("category", r.ID),
				zap.Error(r.Err))
			pages[r.ID] = models.DegradedFacetPage()
			outcome = OutcomeDegraded
			continue
		}
		pages[r.ID] = r.Result
	}

	s.metrics.observe(opLoadAll, "all", outcome, started)
	return pages, nil
}

// ExplainFacet implements FacetService.
func (s *facetService) ExplainFacet(ctx context.Context, categoryKey string, params models.FacetParams) ([]facets.Decision, error) {
	c, err := s.category(categoryKey, true)
	if err != nil {
		return nil, err
	}

	structure, err := s.treeCounts(ctx, s.aggs.TreeFacet(c, querybuilder.BuildQuery("", nil), nil), querybuilder.FacetAggName(c))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s structure: %w", c.Key, err)
	}

	directKeys := structure.DirectKeys()
	ancestorKeys := structure.AncestorKeys()
	metadata := s.lookup.FetchTerms(ctx, append(append([]string{}, ancestorKeys...), directKeys...))
	candidates := s.filter.BuildCandidates(directKeys, ancestorKeys, structure, metadata)
	return s.filter.Explain(candidates, structure, metadata, params.HasSearch()), nil
}
