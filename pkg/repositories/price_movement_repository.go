package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// PriceMovementRepository is the append-only price ledger. There is no update
// or delete; a mistaken entry is corrected by recording a compensating one.
type PriceMovementRepository interface {
	// Create appends one movement. ChangeAmount and ChangePercentage must
	// already be computed; the ledger stores them as given.
	Create(ctx context.Context, movement *models.PriceMovement) error
	List(ctx context.Context, userID int64, filter models.PriceMovementFilter) ([]*models.PriceMovement, error)
	GetByRequestKey(ctx context.Context, userID int64, key uuid.UUID) (*models.PriceMovement, error)
}

type priceMovementRepository struct{}

// NewPriceMovementRepository creates a new PriceMovementRepository.
func NewPriceMovementRepository() PriceMovementRepository {
	return &priceMovementRepository{}
}

var _ PriceMovementRepository = (*priceMovementRepository)(nil)

const priceMovementColumns = `
	m.id, m.user_id, m.ingredient_id, m.previous_price, m.new_price,
	m.change_amount, m.change_percentage, m.effective_date, m.recorded_at,
	m.notes, m.request_key, i.name, i.unit, i.currency`

func (r *priceMovementRepository) Create(ctx context.Context, m *models.PriceMovement) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ingredient_price_movements (
			user_id, ingredient_id, previous_price, new_price, change_amount,
			change_percentage, effective_date, notes, request_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, recorded_at`

	err = scope.Querier().QueryRow(ctx, query,
		m.UserID,
		m.IngredientID,
		m.PreviousPrice,
		m.NewPrice,
		m.ChangeAmount,
		m.ChangePercentage,
		m.EffectiveDate,
		nullString(m.Notes),
		m.RequestKey,
	).Scan(&m.ID, &m.RecordedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		if isForeignKeyViolation(err, "price_movements_ingredient_fk") {
			return apperrors.ErrNotFound
		}
		return wrap(err, "failed to create price movement")
	}

	return nil
}

func (r *priceMovementRepository) List(ctx context.Context, userID int64, filter models.PriceMovementFilter) ([]*models.PriceMovement, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	conditions := []string{"m.user_id = $1"}
	args := []any{userID}

	if filter.IngredientID != nil {
		args = append(args, *filter.IngredientID)
		conditions = append(conditions, fmt.Sprintf("m.ingredient_id = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("m.effective_date >= $%d::date", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("m.effective_date <= $%d::date", len(args)))
	}

	query := `
		SELECT ` + priceMovementColumns + `
		FROM ingredient_price_movements m
		JOIN ingredients i ON i.id = m.ingredient_id AND i.user_id = m.user_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY m.effective_date DESC, m.recorded_at DESC, m.id DESC`

	rows, err := scope.Querier().Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "failed to query price movements")
	}
	defer rows.Close()

	movements := make([]*models.PriceMovement, 0)
	for rows.Next() {
		m, err := scanPriceMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(err, "error iterating price movements")
	}

	return movements, nil
}

func (r *priceMovementRepository) GetByRequestKey(ctx context.Context, userID int64, key uuid.UUID) (*models.PriceMovement, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + priceMovementColumns + `
		FROM ingredient_price_movements m
		JOIN ingredients i ON i.id = m.ingredient_id AND i.user_id = m.user_id
		WHERE m.user_id = $1 AND m.request_key = $2`

	m, err := scanPriceMovement(scope.Querier().QueryRow(ctx, query, userID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func scanPriceMovement(row pgx.Row) (*models.PriceMovement, error) {
	var m models.PriceMovement
	var notes *string

	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.IngredientID,
		&m.PreviousPrice,
		&m.NewPrice,
		&m.ChangeAmount,
		&m.ChangePercentage,
		&m.EffectiveDate,
		&m.RecordedAt,
		&notes,
		&m.RequestKey,
		&m.IngredientName,
		&m.Unit,
		&m.Currency,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrap(err, "failed to scan price movement")
	}

	m.Notes = derefString(notes)
	return &m, nil
}
