package services

import (
	"context"
	"net/mail"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/repositories"
)

// CategoryInput creates an ingredient or recipe category. Color only
// applies to recipe categories.
type CategoryInput struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	IconKey      string `json:"icon_key,omitempty"`
	Color        string `json:"color,omitempty"`
	DisplayOrder *int   `json:"display_order,omitempty"`
}

// SupplierInput is the editable part of a supplier.
type SupplierInput struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Address       string `json:"address,omitempty"`
	Notes         string `json:"notes,omitempty"`
	IsActive      *bool  `json:"is_active,omitempty"` // defaults to true
}

// CatalogService manages the lookup data around ingredients and recipes:
// ingredient categories, recipe categories and suppliers.
type CatalogService interface {
	ListCategories(ctx context.Context, userID int64) ([]*models.Category, error)
	CreateCategory(ctx context.Context, userID int64, input *CategoryInput) (*models.Category, error)

	ListRecipeCategories(ctx context.Context, userID int64) ([]*models.RecipeCategory, error)
	CreateRecipeCategory(ctx context.Context, userID int64, input *CategoryInput) (*models.RecipeCategory, error)

	ListSuppliers(ctx context.Context, userID int64) ([]*models.Supplier, error)
	CreateSupplier(ctx context.Context, userID int64, input *SupplierInput) (*models.Supplier, error)
	UpdateSupplier(ctx context.Context, userID, id int64, input *SupplierInput) (*models.Supplier, error)
}

type catalogService struct {
	categoryRepo       repositories.CategoryRepository
	recipeCategoryRepo repositories.RecipeCategoryRepository
	supplierRepo       repositories.SupplierRepository
	logger             *zap.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	categoryRepo repositories.CategoryRepository,
	recipeCategoryRepo repositories.RecipeCategoryRepository,
	supplierRepo repositories.SupplierRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		categoryRepo:       categoryRepo,
		recipeCategoryRepo: recipeCategoryRepo,
		supplierRepo:       supplierRepo,
		logger:             logger.Named("catalog-service"),
	}
}

var _ CatalogService = (*catalogService)(nil)

func (s *catalogService) ListCategories(ctx context.Context, userID int64) ([]*models.Category, error) {
	return s.categoryRepo.List(ctx, userID)
}

func (s *catalogService) CreateCategory(ctx context.Context, userID int64, input *CategoryInput) (*models.Category, error) {
	name, description, err := validateCategory(input)
	if err != nil {
		return nil, err
	}
	iconKey, err := optionalText("icon_key", input.IconKey, 50)
	if err != nil {
		return nil, err
	}

	category := &models.Category{
		UserID:       userID,
		Name:         name,
		Description:  description,
		IconKey:      iconKey,
		DisplayOrder: input.DisplayOrder,
		IsActive:     true,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Ingredient category created",
		zap.Int64("user_id", userID),
		zap.Int64("category_id", category.ID))
	return category, nil
}

func (s *catalogService) ListRecipeCategories(ctx context.Context, userID int64) ([]*models.RecipeCategory, error) {
	return s.recipeCategoryRepo.List(ctx, userID)
}

func (s *catalogService) CreateRecipeCategory(ctx context.Context, userID int64, input *CategoryInput) (*models.RecipeCategory, error) {
	name, description, err := validateCategory(input)
	if err != nil {
		return nil, err
	}
	iconKey, err := optionalText("icon_key", input.IconKey, 50)
	if err != nil {
		return nil, err
	}
	color, err := optionalText("color", input.Color, 20)
	if err != nil {
		return nil, err
	}

	category := &models.RecipeCategory{
		UserID:       userID,
		Name:         name,
		Description:  description,
		IconKey:      iconKey,
		Color:        color,
		DisplayOrder: input.DisplayOrder,
		IsActive:     true,
	}
	if err := s.recipeCategoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Recipe category created",
		zap.Int64("user_id", userID),
		zap.Int64("category_id", category.ID))
	return category, nil
}

func validateCategory(input *CategoryInput) (name, description string, err error) {
	if input == nil {
		return "", "", apperrors.Invalid("", "category is required")
	}
	if name, err = requiredText("name", input.Name, 100); err != nil {
		return "", "", err
	}
	if description, err = optionalText("description", input.Description, 200); err != nil {
		return "", "", err
	}
	return name, description, nil
}

func (s *catalogService) ListSuppliers(ctx context.Context, userID int64) ([]*models.Supplier, error) {
	return s.supplierRepo.List(ctx, userID)
}

func (s *catalogService) CreateSupplier(ctx context.Context, userID int64, input *SupplierInput) (*models.Supplier, error) {
	supplier := &models.Supplier{UserID: userID}
	if err := applySupplierInput(supplier, input); err != nil {
		return nil, err
	}

	if err := s.supplierRepo.Create(ctx, supplier); err != nil {
		return nil, err
	}

	s.logger.Info("Supplier created",
		zap.Int64("user_id", userID),
		zap.Int64("supplier_id", supplier.ID))
	return supplier, nil
}

func (s *catalogService) UpdateSupplier(ctx context.Context, userID, id int64, input *SupplierInput) (*models.Supplier, error) {
	supplier := &models.Supplier{ID: id, UserID: userID}
	if err := applySupplierInput(supplier, input); err != nil {
		return nil, err
	}

	if err := s.supplierRepo.Update(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

func applySupplierInput(supplier *models.Supplier, input *SupplierInput) error {
	if input == nil {
		return apperrors.Invalid("", "supplier is required")
	}

	var err error
	if supplier.Name, err = requiredText("name", input.Name, 150); err != nil {
		return err
	}
	if supplier.ContactPerson, err = optionalText("contact_person", input.ContactPerson, 150); err != nil {
		return err
	}
	if supplier.Phone, err = optionalText("phone", input.Phone, 50); err != nil {
		return err
	}
	if supplier.Email, err = optionalText("email", input.Email, 150); err != nil {
		return err
	}
	if supplier.Email != "" {
		if _, err := mail.ParseAddress(supplier.Email); err != nil {
			return apperrors.Invalid("email", "is not a valid email address")
		}
	}
	if supplier.Address, err = optionalText("address", input.Address, 500); err != nil {
		return err
	}
	if supplier.Notes, err = optionalText("notes", input.Notes, 2000); err != nil {
		return err
	}

	supplier.IsActive = true
	if input.IsActive != nil {
		supplier.IsActive = *input.IsActive
	}
	return nil
}
