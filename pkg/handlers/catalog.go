package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// CatalogHandler serves ingredient categories, recipe categories and suppliers.
type CatalogHandler struct {
	catalogService services.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalogService services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers the catalog routes on the given mux.
func (h *CatalogHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/ingredient-categories", authMiddleware.RequireAuth(tenantMiddleware(h.ListCategories)))
	mux.HandleFunc("POST /api/ingredient-categories", authMiddleware.RequireAuth(tenantMiddleware(h.CreateCategory)))

	mux.HandleFunc("GET /api/recipe-categories", authMiddleware.RequireAuth(tenantMiddleware(h.ListRecipeCategories)))
	mux.HandleFunc("POST /api/recipe-categories", authMiddleware.RequireAuth(tenantMiddleware(h.CreateRecipeCategory)))

	mux.HandleFunc("GET /api/suppliers", authMiddleware.RequireAuth(tenantMiddleware(h.ListSuppliers)))
	mux.HandleFunc("POST /api/suppliers", authMiddleware.RequireAuth(tenantMiddleware(h.CreateSupplier)))
	mux.HandleFunc("PUT /api/suppliers/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.UpdateSupplier)))
}

// ListCategories handles GET /api/ingredient-categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	categories, err := h.catalogService.ListCategories(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list categories", h.logger, zap.Int64("user_id", userID))
		return
	}
	if categories == nil {
		categories = []*models.Category{}
	}

	writeData(w, http.StatusOK, categories, h.logger)
}

// CreateCategory handles POST /api/ingredient-categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req services.CategoryInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	category, err := h.catalogService.CreateCategory(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, err, "create category", h.logger, zap.Int64("user_id", userID))
		return
	}

	writeData(w, http.StatusCreated, category, h.logger)
}

// ListRecipeCategories handles GET /api/recipe-categories
func (h *CatalogHandler) ListRecipeCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	categories, err := h.catalogService.ListRecipeCategories(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list recipe categories", h.logger, zap.Int64("user_id", userID))
		return
	}
	if categories == nil {
		categories = []*models.RecipeCategory{}
	}

	writeData(w, http.StatusOK, categories, h.logger)
}

// CreateRecipeCategory handles POST /api/recipe-categories
func (h *CatalogHandler) CreateRecipeCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req services.CategoryInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	category, err := h.catalogService.CreateRecipeCategory(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, err, "create recipe category", h.logger, zap.Int64("user_id", userID))
		return
	}

	writeData(w, http.StatusCreated, category, h.logger)
}

// ListSuppliers handles GET /api/suppliers
func (h *CatalogHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	suppliers, err := h.catalogService.ListSuppliers(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list suppliers", h.logger, zap.Int64("user_id", userID))
		return
	}
	if suppliers == nil {
		suppliers = []*models.Supplier{}
	}

	writeData(w, http.StatusOK, suppliers, h.logger)
}

// CreateSupplier handles POST /api/suppliers
func (h *CatalogHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req services.SupplierInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	supplier, err := h.catalogService.CreateSupplier(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, err, "create supplier", h.logger, zap.Int64("user_id", userID))
		return
	}

	writeData(w, http.StatusCreated, supplier, h.logger)
}

// UpdateSupplier handles PUT /api/suppliers/{id}
func (h *CatalogHandler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req services.SupplierInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	supplier, err := h.catalogService.UpdateSupplier(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, err, "update supplier", h.logger, zap.Int64("supplier_id", id))
		return
	}

	writeData(w, http.StatusOK, supplier, h.logger)
}
