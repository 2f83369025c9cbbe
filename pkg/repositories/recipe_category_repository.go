package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// RecipeCategoryRepository provides data access for recipe categories.
type RecipeCategoryRepository interface {
	List(ctx context.Context, userID int64) ([]*models.RecipeCategory, error)
	GetByID(ctx context.Context, userID, id int64) (*models.RecipeCategory, error)
	Create(ctx context.Context, category *models.RecipeCategory) error
}

type recipeCategoryRepository struct{}

// NewRecipeCategoryRepository creates a new RecipeCategoryRepository.
func NewRecipeCategoryRepository() RecipeCategoryRepository {
	return &recipeCategoryRepository{}
}

var _ RecipeCategoryRepository = (*recipeCategoryRepository)(nil)

const recipeCategoryColumns = `
	id, user_id, name, description, icon_key, color, display_order, is_active, created_at, updated_at`

func (r *recipeCategoryRepository) List(ctx context.Context, userID int64) ([]*models.RecipeCategory, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + recipeCategoryColumns + `
		FROM recipe_categories
		WHERE user_id = $1
		ORDER BY display_order NULLS LAST, name`

	rows, err := scope.Querier().Query(ctx, query, userID)
	if err != nil {
		return nil, wrap(err, "failed to query recipe categories")
	}
	defer rows.Close()

	categories := make([]*models.RecipeCategory, 0)
	for rows.Next() {
		c, err := scanRecipeCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(err, "error iterating recipe categories")
	}

	return categories, nil
}

func (r *recipeCategoryRepository) GetByID(ctx context.Context, userID, id int64) (*models.RecipeCategory, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + recipeCategoryColumns + ` FROM recipe_categories WHERE id = $1 AND user_id = $2`

	c, err := scanRecipeCategory(scope.Querier().QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *recipeCategoryRepository) Create(ctx context.Context, c *models.RecipeCategory) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	if c.IconKey == "" {
		c.IconKey = models.DefaultRecipeCategoryIcon
	}

	query := `
		INSERT INTO recipe_categories (user_id, name, description, icon_key, color, display_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err = scope.Querier().QueryRow(ctx, query,
		c.UserID,
		c.Name,
		nullString(c.Description),
		c.IconKey,
		nullString(c.Color),
		c.DisplayOrder,
		c.IsActive,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateName
		}
		return wrap(err, "failed to create recipe category")
	}

	c.UpdatedAt = nil
	return nil
}

func scanRecipeCategory(row pgx.Row) (*models.RecipeCategory, error) {
	var c models.RecipeCategory
	var description, color *string

	err := row.Scan(&c.ID, &c.UserID, &c.Name, &description, &c.IconKey, &color,
		&c.DisplayOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrap(err, "failed to scan recipe category")
	}

	c.Description = derefString(description)
	c.Color = derefString(color)
	return &c, nil
}
