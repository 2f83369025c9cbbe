package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// SupplierRepository provides data access for suppliers.
type SupplierRepository interface {
	List(ctx context.Context, userID int64) ([]*models.Supplier, error)
	GetByID(ctx context.Context, userID, id int64) (*models.Supplier, error)
	Create(ctx context.Context, supplier *models.Supplier) error
	Update(ctx context.Context, supplier *models.Supplier) error
}

type supplierRepository struct{}

// NewSupplierRepository creates a new SupplierRepository.
func NewSupplierRepository() SupplierRepository {
	return &supplierRepository{}
}

var _ SupplierRepository = (*supplierRepository)(nil)

const supplierColumns = `
	id, user_id, name, contact_person, phone, email, address, notes, is_active, created_at, updated_at`

func (r *supplierRepository) List(ctx context.Context, userID int64) ([]*models.Supplier, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + supplierColumns + `
		FROM suppliers
		WHERE user_id = $1
		ORDER BY lower(name), name`

	rows, err := scope.Querier().Query(ctx, query, userID)
	if err != nil {
		return nil, wrap(err, "failed to query suppliers")
	}
	defer rows.Close()

	suppliers := make([]*models.Supplier, 0)
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(err, "error iterating suppliers")
	}

	return suppliers, nil
}

func (r *supplierRepository) GetByID(ctx context.Context, userID, id int64) (*models.Supplier, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE id = $1 AND user_id = $2`

	s, err := scanSupplier(scope.Querier().QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *supplierRepository) Create(ctx context.Context, s *models.Supplier) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO suppliers (user_id, name, contact_person, phone, email, address, notes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err = scope.Querier().QueryRow(ctx, query,
		s.UserID,
		s.Name,
		nullString(s.ContactPerson),
		nullString(s.Phone),
		nullString(s.Email),
		nullString(s.Address),
		nullString(s.Notes),
		s.IsActive,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateName
		}
		return wrap(err, "failed to create supplier")
	}

	s.UpdatedAt = nil
	return nil
}

func (r *supplierRepository) Update(ctx context.Context, s *models.Supplier) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE suppliers
		SET name = $3, contact_person = $4, phone = $5, email = $6,
		    address = $7, notes = $8, is_active = $9, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at`

	err = scope.Querier().QueryRow(ctx, query,
		s.ID,
		s.UserID,
		s.Name,
		nullString(s.ContactPerson),
		nullString(s.Phone),
		nullString(s.Email),
		nullString(s.Address),
		nullString(s.Notes),
		s.IsActive,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateName
		}
		return wrap(err, "failed to update supplier")
	}

	return nil
}

func scanSupplier(row pgx.Row) (*models.Supplier, error) {
	var s models.Supplier
	var contact, phone, email, address, notes *string

	err := row.Scan(&s.ID, &s.UserID, &s.Name, &contact, &phone, &email, &address, &notes,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrap(err, "failed to scan supplier")
	}

	s.ContactPerson = derefString(contact)
	s.Phone = derefString(phone)
	s.Email = derefString(email)
	s.Address = derefString(address)
	s.Notes = derefString(notes)
	return &s, nil
}
