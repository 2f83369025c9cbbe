package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/audit"
	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// ReportHandler exports a tenant's costing data for offline collaborators
// (spreadsheets, print layouts). It only reads through services.ReportSource.
type ReportHandler struct {
	source  services.ReportSource
	auditor *audit.Auditor
	now     func() time.Time
	logger  *zap.Logger
}

func NewReportHandler(source services.ReportSource, auditor *audit.Auditor, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{source: source, auditor: auditor, now: time.Now, logger: logger}
}

func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/reports/export", authMiddleware.RequireAuth(tenantMiddleware(h.Export)))
}

// Export handles GET /api/reports/export. The price movement section takes
// the same filters as GET /api/price-movements.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	filter, ok := parseMovementFilter(w, r, h.logger)
	if !ok {
		return
	}

	bundle, err := services.BuildReport(r.Context(), h.source, userID, filter)
	if err != nil {
		writeServiceError(w, err, "build report", h.logger, zap.Int64("user_id", userID))
		return
	}

	h.auditor.LogReportExport(userID, exportDetails(filter, bundle), r.RemoteAddr)

	filename := fmt.Sprintf("recipe-costing-%s.json", h.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeData(w, http.StatusOK, bundle, h.logger)
}

func exportDetails(filter models.PriceMovementFilter, bundle *services.ReportBundle) audit.ExportDetails {
	details := audit.ExportDetails{
		IngredientID: filter.IngredientID,
		Ingredients:  len(bundle.Ingredients),
	}
	if filter.StartDate != nil {
		details.StartDate = filter.StartDate.Format(time.DateOnly)
	}
	if filter.EndDate != nil {
		details.EndDate = filter.EndDate.Format(time.DateOnly)
	}
	if bundle.Recipes != nil {
		details.Recipes = len(bundle.Recipes.Recipes)
	}
	if bundle.PriceMovements != nil {
		details.Movements = len(bundle.PriceMovements.Movements)
	}
	return details
}
