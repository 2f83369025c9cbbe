package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// DashboardHandler serves the tenant overview.
type DashboardHandler struct {
	dashboardService services.DashboardService
	logger           *zap.Logger
}

func NewDashboardHandler(dashboardService services.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, logger: logger}
}

func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/dashboard", authMiddleware.RequireAuth(tenantMiddleware(h.Get)))
}

// Get handles GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.dashboardService.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "load dashboard", h.logger, zap.Int64("user_id", userID))
		return
	}

	writeData(w, http.StatusOK, stats, h.logger)
}
