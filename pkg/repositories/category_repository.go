package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// CategoryRepository provides data access for ingredient categories.
type CategoryRepository interface {
	List(ctx context.Context, userID int64) ([]*models.Category, error)
	GetByID(ctx context.Context, userID, id int64) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}

type categoryRepository struct{}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository() CategoryRepository {
	return &categoryRepository{}
}

var _ CategoryRepository = (*categoryRepository)(nil)

const categoryColumns = `id, user_id, name, description, icon_key, display_order, is_active, created_at`

func (r *categoryRepository) List(ctx context.Context, userID int64) ([]*models.Category, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE user_id = $1
		ORDER BY display_order NULLS LAST, name`

	rows, err := scope.Querier().Query(ctx, query, userID)
	if err != nil {
		return nil, wrap(err, "failed to query categories")
	}
	defer rows.Close()

	categories := make([]*models.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(err, "error iterating categories")
	}

	return categories, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, userID, id int64) (*models.Category, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 AND user_id = $2`

	c, err := scanCategory(scope.Querier().QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *categoryRepository) Create(ctx context.Context, c *models.Category) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO categories (user_id, name, description, icon_key, display_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err = scope.Querier().QueryRow(ctx, query,
		c.UserID,
		c.Name,
		nullString(c.Description),
		nullString(c.IconKey),
		c.DisplayOrder,
		c.IsActive,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateName
		}
		return wrap(err, "failed to create category")
	}

	return nil
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	var description, iconKey *string

	err := row.Scan(&c.ID, &c.UserID, &c.Name, &description, &iconKey, &c.DisplayOrder, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrap(err, "failed to scan category")
	}

	c.Description = derefString(description)
	c.IconKey = derefString(iconKey)
	return &c, nil
}
