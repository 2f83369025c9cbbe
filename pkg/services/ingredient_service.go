package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/costing"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/repositories"
)

// maxPackageValue bounds both the package price and the package quantity.
var maxPackageValue = decimal.NewFromInt(99999999)

// IngredientInput is the editable part of an ingredient. The unit cost is
// always derived as TotalCost / PackageQuantity.
type IngredientInput struct {
	Name            string          `json:"name"`
	CategoryID      *int64          `json:"category_id,omitempty"`
	Supplier        string          `json:"supplier,omitempty"`
	Unit            string          `json:"unit"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	PackageQuantity decimal.Decimal `json:"package_quantity"`
	Notes           string          `json:"notes,omitempty"`
}

// IngredientService manages ingredients and their package price.
type IngredientService interface {
	List(ctx context.Context, userID int64) ([]*models.Ingredient, error)
	Get(ctx context.Context, userID, id int64) (*models.Ingredient, error)
	Create(ctx context.Context, userID int64, input *IngredientInput) (*models.Ingredient, error)
	// Update edits an ingredient. When the edit changes the unit cost, a
	// compensating price movement is appended in the same transaction so the
	// ledger stays the source of the current price.
	Update(ctx context.Context, userID, id int64, input *IngredientInput) (*models.Ingredient, error)
}

type ingredientService struct {
	ingredientRepo repositories.IngredientRepository
	movementRepo   repositories.PriceMovementRepository
	runInTx        TxRunner
	dashboard      DashboardInvalidator
	now            func() time.Time
	logger         *zap.Logger
}

// NewIngredientService creates a new IngredientService.
func NewIngredientService(
	ingredientRepo repositories.IngredientRepository,
	movementRepo repositories.PriceMovementRepository,
	runInTx TxRunner,
	dashboard DashboardInvalidator,
	logger *zap.Logger,
) IngredientService {
	return &ingredientService{
		ingredientRepo: ingredientRepo,
		movementRepo:   movementRepo,
		runInTx:        runInTx,
		dashboard:      invalidatorOrNoop(dashboard),
		now:            time.Now,
		logger:         logger.Named("ingredient-service"),
	}
}

var _ IngredientService = (*ingredientService)(nil)

func (s *ingredientService) List(ctx context.Context, userID int64) ([]*models.Ingredient, error) {
	return s.ingredientRepo.List(ctx, userID)
}

func (s *ingredientService) Get(ctx context.Context, userID, id int64) (*models.Ingredient, error) {
	ing, err := s.ingredientRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if ing == nil {
		return nil, apperrors.ErrNotFound
	}
	return ing, nil
}

func (s *ingredientService) Create(ctx context.Context, userID int64, input *IngredientInput) (*models.Ingredient, error) {
	ing := &models.Ingredient{
		UserID:   userID,
		Currency: models.DefaultCurrency,
		IsActive: true,
	}
	if err := applyIngredientInput(ing, input); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ing.LastPriceUpdate = &now

	if err := s.ingredientRepo.Create(ctx, ing); err != nil {
		return nil, err
	}

	s.dashboard.Invalidate(ctx, userID)
	s.logger.Info("Ingredient created",
		zap.Int64("user_id", userID),
		zap.Int64("ingredient_id", ing.ID),
		zap.String("cost_per_unit", ing.CostPerUnit.StringFixed(costing.MoneyPlaces)))
	return ing, nil
}

func (s *ingredientService) Update(ctx context.Context, userID, id int64, input *IngredientInput) (*models.Ingredient, error) {
	var updated *models.Ingredient
	var movement *models.PriceMovement

	err := s.runInTx(ctx, func(ctx context.Context) error {
		ing, err := s.ingredientRepo.GetByIDForUpdate(ctx, userID, id)
		if err != nil {
			return err
		}
		if ing == nil {
			return apperrors.ErrNotFound
		}

		previous := ing.CostPerUnit
		if err := applyIngredientInput(ing, input); err != nil {
			return err
		}

		if !ing.CostPerUnit.Equal(previous) {
			change := costing.ChangePercentage(previous, ing.CostPerUnit)
			if err := checkChangePercentage("total_cost", change); err != nil {
				return err
			}
			now := s.now().UTC()
			movement = &models.PriceMovement{
				UserID:           userID,
				IngredientID:     ing.ID,
				PreviousPrice:    previous,
				NewPrice:         ing.CostPerUnit,
				ChangeAmount:     costing.ChangeAmount(previous, ing.CostPerUnit),
				ChangePercentage: change,
				EffectiveDate:    today(now),
				Notes:            "Package price edited",
			}
			if err := s.movementRepo.Create(ctx, movement); err != nil {
				return err
			}
			ing.LastPriceUpdate = &now
		}

		if err := s.ingredientRepo.Update(ctx, ing); err != nil {
			return err
		}
		updated = ing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dashboard.Invalidate(ctx, userID)
	if movement != nil {
		s.logger.Info("Ingredient price edited",
			zap.Int64("user_id", userID),
			zap.Int64("ingredient_id", id),
			zap.Int64("movement_id", movement.ID))
	}
	return updated, nil
}

// applyIngredientInput validates input and copies it onto ing, deriving the
// unit cost from the package price when the package changed.
func applyIngredientInput(ing *models.Ingredient, input *IngredientInput) error {
	if input == nil {
		return apperrors.Invalid("", "ingredient is required")
	}

	name, err := requiredText("name", input.Name, 150)
	if err != nil {
		return err
	}
	unit, err := requiredText("unit", input.Unit, 30)
	if err != nil {
		return err
	}
	supplier, err := optionalText("supplier", input.Supplier, 150)
	if err != nil {
		return err
	}
	notes, err := optionalText("notes", input.Notes, 2000)
	if err != nil {
		return err
	}
	if input.CategoryID != nil && *input.CategoryID <= 0 {
		return apperrors.Invalid("category_id", "select a valid category")
	}

	totalCost := costing.RoundMoney(input.TotalCost)
	if totalCost.LessThanOrEqual(decimal.Zero) || totalCost.GreaterThan(maxPackageValue) {
		return apperrors.Invalid("total_cost", "must be greater than zero")
	}
	packageQuantity := costing.RoundQuantity(input.PackageQuantity)
	if packageQuantity.LessThanOrEqual(decimal.Zero) || packageQuantity.GreaterThan(maxPackageValue) {
		return apperrors.Invalid("package_quantity", "must be greater than zero")
	}

	// The stored total was rounded when the last price change was recorded,
	// so dividing it back out can miss the recorded unit price by a cent.
	// Keep the unit price unless the package itself was edited.
	packageEdited := !ing.TotalCost.Valid || !ing.PackageQuantity.Valid ||
		!ing.TotalCost.Decimal.Equal(totalCost) || !ing.PackageQuantity.Decimal.Equal(packageQuantity)
	costPerUnit := ing.CostPerUnit
	if packageEdited {
		costPerUnit = costing.CostPerUnit(totalCost, packageQuantity)
		if !costing.MoneyFits(costPerUnit) {
			return apperrors.Invalid("package_quantity", "is too small for the package price")
		}
	}

	ing.Name = name
	ing.Unit = unit
	ing.Supplier = supplier
	ing.Notes = notes
	ing.CategoryID = input.CategoryID
	ing.TotalCost = decimal.NewNullDecimal(totalCost)
	ing.PackageQuantity = decimal.NewNullDecimal(packageQuantity)
	ing.CostPerUnit = costPerUnit
	return nil
}
