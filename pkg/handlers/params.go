package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/models"
)

// MaxLimit caps the page size a client may request.
const MaxLimit = 500

// ParseFacetParams reads the free-text search and the per-category
// selections from the query string. Each category is read from its param
// key in both plain and bracketed array form ("tissues" and "tissues[]").
// Unknown parameters are ignored.
func ParseFacetParams(query url.Values) models.FacetParams {
	params := models.FacetParams{
		Search:     strings.TrimSpace(query.Get("search")),
		Selections: make(map[string][]string),
	}
	for name, values := range query {
		c, ok := catalog.ByParamKey(strings.TrimSuffix(name, "[]"))
		if !ok {
			continue
		}
		for _, v := range values {
			// Comma lists are accepted alongside repeated parameters.
			for _, id := range strings.Split(v, ",") {
				if id = strings.TrimSpace(id); id != "" {
					params.Selections[c.Key] = append(params.Selections[c.Key], id)
				}
			}
		}
	}
	return params
}

// ParsePagination reads limit and offset. A missing limit falls back to
// defaultLimit; limit=0 disables pagination.
func ParsePagination(query url.Values, defaultLimit int) (limit, offset int, err error) {
	limit = defaultLimit
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, fmt.Errorf("limit must be a non-negative integer")
		}
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// ParseParentID extracts and validates the parent_id query parameter.
// Returns the normalized ID and true on success, or "" and false on error
// (after writing an error response).
func ParseParentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("parent_id"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_parent_id", "parent_id is required", logger)
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_parent_id", "Invalid parent ID format", logger)
		return "", false
	}
	return id.String(), true
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
