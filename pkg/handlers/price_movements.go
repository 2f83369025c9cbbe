package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/audit"
	"github.com/ekaya-inc/recipe-costing/pkg/auth"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

// RecordPriceChangeRequest for POST /api/price-movements. EffectiveDate is
// YYYY-MM-DD; empty means today.
type RecordPriceChangeRequest struct {
	IngredientID  int64           `json:"ingredient_id"`
	NewPrice      decimal.Decimal `json:"new_price"`
	EffectiveDate string          `json:"effective_date,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	RequestKey    *uuid.UUID      `json:"request_key,omitempty"`
}

// PriceMovementHandler handles the price ledger endpoints.
type PriceMovementHandler struct {
	movementService services.PriceMovementService
	auditor         *audit.Auditor
	logger          *zap.Logger
}

// NewPriceMovementHandler creates a new price movement handler. auditor may
// be nil.
func NewPriceMovementHandler(movementService services.PriceMovementService, auditor *audit.Auditor, logger *zap.Logger) *PriceMovementHandler {
	return &PriceMovementHandler{
		movementService: movementService,
		auditor:         auditor,
		logger:          logger,
	}
}

// RegisterRoutes registers the price movement routes on the given mux.
func (h *PriceMovementHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/price-movements"

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(tenantMiddleware(h.List)))
	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(tenantMiddleware(h.Record)))
}

// parseMovementFilter reads ingredient_id, start_date and end_date.
func parseMovementFilter(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.PriceMovementFilter, bool) {
	var filter models.PriceMovementFilter
	var ok bool

	if filter.IngredientID, ok = parseOptionalID(w, r, "ingredient_id", logger); !ok {
		return filter, false
	}
	if filter.StartDate, ok = parseOptionalDate(w, r, "start_date", logger); !ok {
		return filter, false
	}
	if filter.EndDate, ok = parseOptionalDate(w, r, "end_date", logger); !ok {
		return filter, false
	}
	return filter, true
}

// List handles GET /api/price-movements
func (h *PriceMovementHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	filter, ok := parseMovementFilter(w, r, h.logger)
	if !ok {
		return
	}

	list, err := h.movementService.List(r.Context(), userID, filter)
	if err != nil {
		writeServiceError(w, err, "list price movements", h.logger, zap.Int64("user_id", userID))
		return
	}
	if list.Movements == nil {
		list.Movements = []*models.PriceMovement{}
	}

	writeData(w, http.StatusOK, list, h.logger)
}

// Record handles POST /api/price-movements. A replayed request_key answers
// 200 with the original movement instead of 201.
func (h *PriceMovementHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req RecordPriceChangeRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	input := &services.PriceChangeInput{
		IngredientID: req.IngredientID,
		NewPrice:     req.NewPrice,
		Notes:        req.Notes,
		RequestKey:   req.RequestKey,
	}
	if req.EffectiveDate != "" {
		effective, err := time.Parse(time.DateOnly, req.EffectiveDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "effective_date: expected YYYY-MM-DD", h.logger)
			return
		}
		input.EffectiveDate = &effective
	}

	result, err := h.movementService.RecordPriceChange(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, err, "record price change", h.logger,
			zap.Int64("user_id", userID),
			zap.Int64("ingredient_id", req.IngredientID))
		return
	}

	h.auditor.LogPriceChange(userID, result.Movement, result.Replayed, r.RemoteAddr)

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeData(w, status, result, h.logger)
}
