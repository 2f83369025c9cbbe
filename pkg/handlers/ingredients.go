package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// IngredientListResponse for GET /api/ingredients
type IngredientListResponse struct {
	Ingredients []*models.Ingredient `json:"ingredients"`
	Total       int                  `json:"total"`
}

// IngredientHandler handles ingredient HTTP requests.
type IngredientHandler struct {
	ingredientService services.IngredientService
	logger            *zap.Logger
}

// NewIngredientHandler creates a new ingredient handler.
func NewIngredientHandler(ingredientService services.IngredientService, logger *zap.Logger) *IngredientHandler {
	return &IngredientHandler{
		ingredientService: ingredientService,
		logger:            logger,
	}
}

// RegisterRoutes registers the ingredient handler's routes on the given mux.
func (h *IngredientHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/ingredients"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(tenantMiddleware(h.List)))
	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(tenantMiddleware(h.Create)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.Update)))
}

// List handles GET /api/ingredients
func (h *IngredientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	ingredients, err := h.ingredientService.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list ingredients", h.logger, zap.Int64("user_id", userID))
		return
	}
	if ingredients == nil {
		ingredients = []*models.Ingredient{}
	}

	writeData(w, http.StatusOK, IngredientListResponse{Ingredients: ingredients, Total: len(ingredients)}, h.logger)
}

// Get handles GET /api/ingredients/{id}
func (h *IngredientHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	ing, err := h.ingredientService.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err, "get ingredient", h.logger, zap.Int64("ingredient_id", id))
		return
	}

	writeData(w, http.StatusOK, ing, h.logger)
}

// Create handles POST /api/ingredients
func (h *IngredientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req services.IngredientInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	ing, err := h.ingredientService.Create(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, err, "create ingredient", h.logger, zap.Int64("user_id", userID))
		return
	}

	writeData(w, http.StatusCreated, ing, h.logger)
}

// Update handles PUT /api/ingredients/{id}
func (h *IngredientHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req services.IngredientInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	ing, err := h.ingredientService.Update(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, err, "update ingredient", h.logger, zap.Int64("ingredient_id", id))
		return
	}

	writeData(w, http.StatusOK, ing, h.logger)
}
