package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/apperrors"
	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/logging"
	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/services"
)

// ============================================================================
// Response Types
// ============================================================================

// ChildrenResponse for GET /api/facets/{category}/children
type ChildrenResponse struct {
	Category string             `json:"category"`
	ParentID string             `json:"parent_id"`
	Nodes    []models.FacetNode `json:"nodes"`
}

// SearchResponse for GET /api/facets/{category}/search
type SearchResponse struct {
	Category string              `json:"category"`
	Query    string              `json:"query"`
	Nodes    []models.SearchNode `json:"nodes"`
}

// CategoryResponse is one entry of GET /api/facets/catalog
type CategoryResponse struct {
	Key         string              `json:"key"`
	Kind        models.CategoryKind `json:"kind"`
	ParamKey    string              `json:"param_key"`
	DisplayName string              `json:"display_name"`
}

// ============================================================================
// Handler
// ============================================================================

// FacetsHandler serves facet trees, lazy children and in-facet search.
type FacetsHandler struct {
	facetService services.FacetService
	defaultLimit int
	logger       *zap.Logger
}

// NewFacetsHandler creates a new facets handler.
func NewFacetsHandler(facetService services.FacetService, defaultLimit int, logger *zap.Logger) *FacetsHandler {
	return &FacetsHandler{
		facetService: facetService,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// RegisterRoutes registers the facet routes on the given mux.
func (h *FacetsHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/facets"

	mux.HandleFunc("GET "+base, h.All)
	mux.HandleFunc("GET "+base+"/catalog", h.Catalog)
	mux.HandleFunc("GET "+base+"/{category}", h.Load)
	mux.HandleFunc("GET "+base+"/{category}/children", h.Children)
	mux.HandleFunc("GET "+base+"/{category}/search", h.Search)
}

// All handles GET /api/facets
func (h *FacetsHandler) All(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _, err := ParsePagination(query, h.defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pagination", err.Error(), h.logger)
		return
	}

	pages, err := h.facetService.LoadAll(r.Context(), ParseFacetParams(query), limit)
	if err != nil {
		h.serviceError(w, "Failed to load facets", "", err)
		return
	}
	h.write(w, ApiResponse{Success: true, Data: pages})
}

// Catalog handles GET /api/facets/catalog
func (h *FacetsHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	categories := catalog.All()
	out := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryResponse{
			Key:         c.Key,
			Kind:        c.Kind,
			ParamKey:    c.ParamKey,
			DisplayName: c.DisplayName,
		})
	}
	h.write(w, ApiResponse{Success: true, Data: out})
}

// Load handles GET /api/facets/{category}
func (h *FacetsHandler) Load(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	query := r.URL.Query()
	limit, offset, err := ParsePagination(query, h.defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pagination", err.Error(), h.logger)
		return
	}

	page, err := h.facetService.LoadFacet(r.Context(), category, ParseFacetParams(query), limit, offset)
	if err != nil {
		h.serviceError(w, "Failed to load facet", category, err)
		return
	}
	h.write(w, ApiResponse{Success: true, Data: page})
}

// Children handles GET /api/facets/{category}/children?parent_id=
func (h *FacetsHandler) Children(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	parentID, ok := ParseParentID(w, r, h.logger)
	if !ok {
		return
	}

	nodes, err := h.facetService.LoadChildren(r.Context(), category, parentID, ParseFacetParams(r.URL.Query()))
	if err != nil {
		h.serviceError(w, "Failed to load children", category, err)
		return
	}
	h.write(w, ApiResponse{Success: true, Data: ChildrenResponse{
		Category: category,
		ParentID: parentID,
		Nodes:    nodes,
	}})
}

// Search handles GET /api/facets/{category}/search?q=
func (h *FacetsHandler) Search(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")
	query := r.URL.Query()
	term := strings.TrimSpace(query.Get("q"))

	nodes, err := h.facetService.SearchWithin(r.Context(), category, term, ParseFacetParams(query))
	if err != nil {
		h.serviceError(w, "Failed to search facet", category, err)
		return
	}
	h.write(w, ApiResponse{Success: true, Data: SearchResponse{
		Category: category,
		Query:    term,
		Nodes:    nodes,
	}})
}

// serviceError maps service errors onto HTTP status codes. Unknown
// categories are checked first since they also wrap ErrInvalidArgument.
func (h *FacetsHandler) serviceError(w http.ResponseWriter, msg, category string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, "unknown_category", "Unknown facet category: "+logging.TruncateString(category, 64), h.logger)
	case errors.Is(err, apperrors.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error(), h.logger)
	default:
		h.logger.Error(msg, zap.String("category", category), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Facet request failed", h.logger)
	}
}

func (h *FacetsHandler) write(w http.ResponseWriter, resp ApiResponse) {
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
