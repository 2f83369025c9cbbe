package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/costing"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/repositories"
)

const maxMovementNotes = 500

// PriceChangeInput records a new unit price for an ingredient.
type PriceChangeInput struct {
	IngredientID  int64           `json:"ingredient_id"`
	NewPrice      decimal.Decimal `json:"new_price"`
	EffectiveDate *time.Time      `json:"effective_date,omitempty"` // defaults to today
	Notes         string          `json:"notes,omitempty"`
	// RequestKey makes the call safe to retry: replaying a key returns the
	// movement it recorded and writes nothing.
	RequestKey *uuid.UUID `json:"request_key,omitempty"`
}

// PriceChangeResult is the ledger entry plus the refreshed ingredient snapshot.
type PriceChangeResult struct {
	Movement   *models.PriceMovement `json:"movement"`
	Ingredient *models.Ingredient    `json:"ingredient"`
	Replayed   bool                  `json:"replayed"`
}

// PriceMovementList is a filtered ledger view with its summary.
type PriceMovementList struct {
	Movements []*models.PriceMovement  `json:"movements"`
	Summary   costing.MovementSummary `json:"summary"`
}

// PriceMovementService is the costing workflow around the price ledger.
type PriceMovementService interface {
	List(ctx context.Context, userID int64, filter models.PriceMovementFilter) (*PriceMovementList, error)
	// RecordPriceChange appends a ledger entry and moves the ingredient
	// snapshot to the new price in one transaction.
	RecordPriceChange(ctx context.Context, userID int64, input *PriceChangeInput) (*PriceChangeResult, error)
}

type priceMovementService struct {
	ingredientRepo repositories.IngredientRepository
	movementRepo   repositories.PriceMovementRepository
	runInTx        TxRunner
	dashboard      DashboardInvalidator
	now            func() time.Time
	logger         *zap.Logger
}

// NewPriceMovementService creates a new PriceMovementService.
func NewPriceMovementService(
	ingredientRepo repositories.IngredientRepository,
	movementRepo repositories.PriceMovementRepository,
	runInTx TxRunner,
	dashboard DashboardInvalidator,
	logger *zap.Logger,
) PriceMovementService {
	return &priceMovementService{
		ingredientRepo: ingredientRepo,
		movementRepo:   movementRepo,
		runInTx:        runInTx,
		dashboard:      invalidatorOrNoop(dashboard),
		now:            time.Now,
		logger:         logger.Named("price-movement-service"),
	}
}

var _ PriceMovementService = (*priceMovementService)(nil)

func (s *priceMovementService) List(ctx context.Context, userID int64, filter models.PriceMovementFilter) (*PriceMovementList, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, apperrors.Invalid("start_date", "must not be after end_date")
	}
	if filter.IngredientID != nil && *filter.IngredientID <= 0 {
		filter.IngredientID = nil
	}

	movements, err := s.movementRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	changes := make([]decimal.Decimal, len(movements))
	for i, m := range movements {
		changes[i] = m.ChangeAmount
	}

	return &PriceMovementList{
		Movements: movements,
		Summary:   costing.SummarizeChanges(changes),
	}, nil
}

func (s *priceMovementService) RecordPriceChange(ctx context.Context, userID int64, input *PriceChangeInput) (*PriceChangeResult, error) {
	if err := validatePriceChange(input); err != nil {
		return nil, err
	}

	newPrice := costing.RoundMoney(input.NewPrice)
	if input.RequestKey != nil {
		if result, err := s.replay(ctx, userID, input, newPrice); result != nil || err != nil {
			return result, err
		}
	}

	effective := today(s.now())
	if input.EffectiveDate != nil {
		effective = today(*input.EffectiveDate)
	}

	result := &PriceChangeResult{}
	err := s.runInTx(ctx, func(ctx context.Context) error {
		// Lock the row so concurrent recorders on one ingredient serialise and
		// each sees the other's price as its previous price.
		ing, err := s.ingredientRepo.GetByIDForUpdate(ctx, userID, input.IngredientID)
		if err != nil {
			return err
		}
		if ing == nil {
			return apperrors.ErrNotFound
		}

		packageTotal := costing.PackageTotal(newPrice, ing.PackageQuantity)
		if !costing.MoneyFits(packageTotal) {
			return apperrors.Invalid("new_price", "package price would exceed %s", costing.MaxMoney.StringFixed(costing.MoneyPlaces))
		}
		previous := ing.CostPerUnit
		change := costing.ChangePercentage(previous, newPrice)
		if err := checkChangePercentage("new_price", change); err != nil {
			return err
		}

		movement := &models.PriceMovement{
			UserID:           userID,
			IngredientID:     ing.ID,
			PreviousPrice:    previous,
			NewPrice:         newPrice,
			ChangeAmount:     costing.ChangeAmount(previous, newPrice),
			ChangePercentage: change,
			EffectiveDate:    effective,
			Notes:            strings.TrimSpace(input.Notes),
			RequestKey:       input.RequestKey,
			IngredientName:   ing.Name,
			Unit:             ing.Unit,
			Currency:         ing.Currency,
		}
		if err := s.movementRepo.Create(ctx, movement); err != nil {
			return err
		}

		ing.CostPerUnit = newPrice
		ing.TotalCost = decimal.NewNullDecimal(packageTotal)
		lastUpdate := effective
		ing.LastPriceUpdate = &lastUpdate
		if err := s.ingredientRepo.Update(ctx, ing); err != nil {
			return err
		}

		result.Movement = movement
		result.Ingredient = ing
		return nil
	})
	if errors.Is(err, apperrors.ErrConflict) && input.RequestKey != nil {
		// A concurrent call with the same key won the race.
		if replayed, replayErr := s.replay(ctx, userID, input, newPrice); replayed != nil || replayErr != nil {
			return replayed, replayErr
		}
	}
	if err != nil {
		return nil, err
	}

	s.dashboard.Invalidate(ctx, userID)
	s.logger.Info("Price change recorded",
		zap.Int64("user_id", userID),
		zap.Int64("ingredient_id", input.IngredientID),
		zap.Int64("movement_id", result.Movement.ID),
		zap.String("previous_price", result.Movement.PreviousPrice.StringFixed(costing.MoneyPlaces)),
		zap.String("new_price", newPrice.StringFixed(costing.MoneyPlaces)))
	return result, nil
}

// replay returns the result of an earlier call with the same request key, or
// nil if there was none. A key reused for a different ingredient or price is a
// conflict rather than a replay.
func (s *priceMovementService) replay(ctx context.Context, userID int64, input *PriceChangeInput, newPrice decimal.Decimal) (*PriceChangeResult, error) {
	key := *input.RequestKey
	existing, err := s.movementRepo.GetByRequestKey(ctx, userID, key)
	if err != nil || existing == nil {
		return nil, err
	}

	if existing.IngredientID != input.IngredientID || !existing.NewPrice.Equal(newPrice) {
		s.logger.Warn("Request key reused for a different price change",
			zap.Int64("user_id", userID),
			zap.String("request_key", key.String()),
			zap.Int64("movement_id", existing.ID),
			zap.Int64("ingredient_id", input.IngredientID),
			zap.String("new_price", newPrice.StringFixed(costing.MoneyPlaces)))
		return nil, fmt.Errorf("request key %s already recorded movement %d: %w", key, existing.ID, apperrors.ErrConflict)
	}

	ing, err := s.ingredientRepo.GetByID(ctx, userID, existing.IngredientID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Replayed price change",
		zap.Int64("user_id", userID),
		zap.String("request_key", key.String()),
		zap.Int64("movement_id", existing.ID))
	return &PriceChangeResult{Movement: existing, Ingredient: ing, Replayed: true}, nil
}

func validatePriceChange(input *PriceChangeInput) error {
	if input == nil {
		return apperrors.Invalid("", "price change is required")
	}
	if input.IngredientID <= 0 {
		return apperrors.Invalid("ingredient_id", "select an ingredient")
	}
	if input.NewPrice.Sign() < 0 {
		return apperrors.Invalid("new_price", "must not be negative")
	}
	if !costing.MoneyFits(input.NewPrice) {
		return apperrors.Invalid("new_price", "must be at most %s", costing.MaxMoney.StringFixed(costing.MoneyPlaces))
	}
	if utf8.RuneCountInString(strings.TrimSpace(input.Notes)) > maxMovementNotes {
		return apperrors.Invalid("notes", "must be at most %d characters", maxMovementNotes)
	}
	return nil
}
