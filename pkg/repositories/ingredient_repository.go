package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// IngredientRepository owns the ingredient price snapshot.
type IngredientRepository interface {
	List(ctx context.Context, userID int64) ([]*models.Ingredient, error)
	GetByID(ctx context.Context, userID, id int64) (*models.Ingredient, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, userID, id int64) (*models.Ingredient, error)
	Create(ctx context.Context, ingredient *models.Ingredient) error
	Update(ctx context.Context, ingredient *models.Ingredient) error
}

type ingredientRepository struct{}

// NewIngredientRepository creates a new IngredientRepository.
func NewIngredientRepository() IngredientRepository {
	return &ingredientRepository{}
}

var _ IngredientRepository = (*ingredientRepository)(nil)

const ingredientColumns = `
	i.id, i.user_id, i.name, i.category_id, i.unit, i.cost_per_unit, i.currency,
	i.package_quantity, i.total_cost, i.supplier, i.last_price_update, i.notes,
	i.is_active, i.created_at, i.updated_at`

func (r *ingredientRepository) List(ctx context.Context, userID int64) ([]*models.Ingredient, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + ingredientColumns + `, c.name, c.icon_key
		FROM ingredients i
		LEFT JOIN categories c ON c.id = i.category_id AND c.user_id = i.user_id
		WHERE i.user_id = $1
		ORDER BY lower(i.name), i.name`

	rows, err := scope.Querier().Query(ctx, query, userID)
	if err != nil {
		return nil, wrap(err, "failed to query ingredients")
	}
	defer rows.Close()

	ingredients := make([]*models.Ingredient, 0)
	for rows.Next() {
		var categoryName, categoryIcon *string
		ing, err := scanIngredient(rows, &categoryName, &categoryIcon)
		if err != nil {
			return nil, err
		}
		ing.CategoryName = derefString(categoryName)
		ing.CategoryIcon = derefString(categoryIcon)
		ingredients = append(ingredients, ing)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(err, "error iterating ingredients")
	}

	return ingredients, nil
}

func (r *ingredientRepository) GetByID(ctx context.Context, userID, id int64) (*models.Ingredient, error) {
	return r.get(ctx, userID, id, "")
}

func (r *ingredientRepository) GetByIDForUpdate(ctx context.Context, userID, id int64) (*models.Ingredient, error) {
	return r.get(ctx, userID, id, "FOR UPDATE")
}

func (r *ingredientRepository) get(ctx context.Context, userID, id int64, lock string) (*models.Ingredient, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + ingredientColumns + `
		FROM ingredients i
		WHERE i.id = $1 AND i.user_id = $2 ` + lock

	ing, err := scanIngredient(scope.Querier().QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ing, nil
}

func (r *ingredientRepository) Create(ctx context.Context, ing *models.Ingredient) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	if ing.Currency == "" {
		ing.Currency = models.DefaultCurrency
	}

	query := `
		INSERT INTO ingredients (
			user_id, name, category_id, unit, cost_per_unit, currency,
			package_quantity, total_cost, supplier, last_price_update, notes, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err = scope.Querier().QueryRow(ctx, query,
		ing.UserID,
		ing.Name,
		ing.CategoryID,
		ing.Unit,
		ing.CostPerUnit,
		ing.Currency,
		ing.PackageQuantity,
		ing.TotalCost,
		nullString(ing.Supplier),
		ing.LastPriceUpdate,
		nullString(ing.Notes),
		ing.IsActive,
	).Scan(&ing.ID, &ing.CreatedAt)
	if err != nil {
		return ingredientWriteError(err, "failed to create ingredient")
	}

	ing.UpdatedAt = nil
	return nil
}

func (r *ingredientRepository) Update(ctx context.Context, ing *models.Ingredient) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE ingredients
		SET name = $3, category_id = $4, supplier = $5, unit = $6,
		    package_quantity = $7, total_cost = $8, cost_per_unit = $9,
		    last_price_update = $10, notes = $11, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at`

	err = scope.Querier().QueryRow(ctx, query,
		ing.ID,
		ing.UserID,
		ing.Name,
		ing.CategoryID,
		nullString(ing.Supplier),
		ing.Unit,
		ing.PackageQuantity,
		ing.TotalCost,
		ing.CostPerUnit,
		ing.LastPriceUpdate,
		nullString(ing.Notes),
	).Scan(&ing.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return ingredientWriteError(err, "failed to update ingredient")
	}

	return nil
}

func ingredientWriteError(err error, msg string) error {
	if isUniqueViolation(err) {
		return apperrors.ErrDuplicateName
	}
	if isForeignKeyViolation(err, "ingredients_category_fk") {
		return apperrors.Invalid("category_id", "unknown ingredient category")
	}
	return wrap(err, "%s", msg)
}

// scanIngredient scans ingredientColumns followed by any extra destinations.
func scanIngredient(row pgx.Row, extra ...any) (*models.Ingredient, error) {
	var ing models.Ingredient
	var supplier, notes *string

	dest := []any{
		&ing.ID,
		&ing.UserID,
		&ing.Name,
		&ing.CategoryID,
		&ing.Unit,
		&ing.CostPerUnit,
		&ing.Currency,
		&ing.PackageQuantity,
		&ing.TotalCost,
		&supplier,
		&ing.LastPriceUpdate,
		&notes,
		&ing.IsActive,
		&ing.CreatedAt,
		&ing.UpdatedAt,
	}

	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrap(err, "failed to scan ingredient")
	}

	ing.Supplier = derefString(supplier)
	ing.Notes = derefString(notes)
	return &ing, nil
}
