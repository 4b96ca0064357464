package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ucplabs/ucp-bridge/internal/catalog"
	"github.com/ucplabs/ucp-bridge/pkg/httputil"
	"github.com/ucplabs/ucp-bridge/pkg/validator"
)

// defaultSearchLimit caps catalog search results per request.
const defaultSearchLimit = 20

// CatalogHandler handles product search and protocol discovery.
type CatalogHandler struct {
	catalog       *catalog.Service
	storeName     string
	storeCurrency string
	version       string
	logger        *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(cat *catalog.Service, storeName, storeCurrency, version string, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:       cat,
		storeName:     storeName,
		storeCurrency: storeCurrency,
		version:       version,
		logger:        logger,
	}
}

// SearchRequest is the JSON request body for product search.
type SearchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,gt=0,lte=100"`
}

// Search handles POST /ucp/v1/search.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req SearchRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}

	items, err := h.catalog.Search(r.Context(), req.Query, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetProduct handles GET /ucp/v1/products/{id}: a single-product lookup served
// through the read-through cache.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.catalog.FindProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, catalog.ProjectItem(p))
}

// Discovery handles GET /ucp/v1/discovery: the capability manifest agents use
// to find the checkout and search endpoints.
func (h *CatalogHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"protocol": "ucp",
		"version":  h.version,
		"capabilities": map[string]any{
			"shopping.search": map[string]any{
				"version":  "2026-01-11",
				"endpoint": "/ucp/v1/search",
				"schema":   "https://ucp.dev/schemas/shopping/search.json",
				"method":   http.MethodPost,
			},
			"shopping.checkout": map[string]any{
				"version":  "2026-01-11",
				"endpoint": "/ucp/v1/checkout",
				"schema":   "https://ucp.dev/schemas/shopping/checkout.json",
				"method":   http.MethodPost,
			},
		},
		"store_info": map[string]any{
			"name":     h.storeName,
			"currency": h.storeCurrency,
		},
	})
}
