package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// RecipeHandler handles recipe HTTP requests.
type RecipeHandler struct {
	recipeService services.RecipeService
	logger        *zap.Logger
}

// NewRecipeHandler creates a new recipe handler.
func NewRecipeHandler(recipeService services.RecipeService, logger *zap.Logger) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		logger:        logger,
	}
}

// RegisterRoutes registers the recipe handler's routes on the given mux.
func (h *RecipeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/recipes"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(tenantMiddleware(h.List)))
	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(tenantMiddleware(h.Create)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.Get)))
	mux.HandleFunc("PUT "+base+"/{id}", authMiddleware.RequireAuth(tenantMiddleware(h.Update)))
}

// List handles GET /api/recipes
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	list, err := h.recipeService.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list recipes", h.logger, zap.Int64("user_id", userID))
		return
	}
	if list.Recipes == nil {
		list.Recipes = []*services.RecipeCard{}
	}

	writeData(w, http.StatusOK, list, h.logger)
}

// Get handles GET /api/recipes/{id}
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}

	card, err := h.recipeService.Get(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, err, "get recipe", h.logger, zap.Int64("recipe_id", id))
		return
	}

	writeData(w, http.StatusOK, card, h.logger)
}

// Create handles POST /api/recipes
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, 0)
}

// Update handles PUT /api/recipes/{id}
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, "id", h.logger)
	if !ok {
		return
	}
	h.save(w, r, id)
}

func (h *RecipeHandler) save(w http.ResponseWriter, r *http.Request, id int64) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req services.RecipeInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	card, err := h.recipeService.Save(r.Context(), userID, id, &req)
	if err != nil {
		writeServiceError(w, err, "save recipe", h.logger,
			zap.Int64("user_id", userID),
			zap.Int64("recipe_id", id))
		return
	}

	status := http.StatusOK
	if id == 0 {
		status = http.StatusCreated
	}
	writeData(w, status, card, h.logger)
}
