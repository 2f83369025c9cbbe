package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/recipe-costing/pkg/apperrors"
	"github.com/ekaya-inc/recipe-costing/pkg/database"
	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// RecipeRepository stores recipe headers with their ingredient lines.
type RecipeRepository interface {
	// List returns the tenant's recipes newest first, lines included.
	List(ctx context.Context, userID int64) ([]*models.Recipe, error)
	Get(ctx context.Context, userID, id int64) (*models.Recipe, error)
	// Save inserts the recipe when ID is zero, otherwise updates it. The
	// stored lines are replaced by recipe.Ingredients in the same transaction.
	Save(ctx context.Context, recipe *models.Recipe) error
}

type recipeRepository struct{}

// NewRecipeRepository creates a new RecipeRepository.
func NewRecipeRepository() RecipeRepository {
	return &recipeRepository{}
}

var _ RecipeRepository = (*recipeRepository)(nil)

// chefNotesSupported checks for the optional recipes.chef_notes column. Databases
// migrated before it existed read it as NULL and ignore writes to it.
func chefNotesSupported(ctx context.Context, scope *database.TenantScope) (bool, error) {
	return scope.HasColumn(ctx, "recipes", "chef_notes")
}

func recipeSelect(chefNotes bool) string {
	notesColumn := "NULL::text"
	if chefNotes {
		notesColumn = "r.chef_notes"
	}
	return `
		SELECT r.id, r.user_id, r.name, r.category_id, r.description, ` + notesColumn + `,
		       r.preparation_time, r.yield, r.target_margin, r.ingredient_cost,
		       r.suggested_price, r.image_path, r.created_at, r.updated_at,
		       c.name, c.icon_key, c.color
		FROM recipes r
		LEFT JOIN recipe_categories c ON c.id = r.category_id AND c.user_id = r.user_id`
}

func (r *recipeRepository) List(ctx context.Context, userID int64) ([]*models.Recipe, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	chefNotes, err := chefNotesSupported(ctx, scope)
	if err != nil {
		return nil, err
	}

	query := recipeSelect(chefNotes) + `
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC`

	rows, err := scope.Querier().Query(ctx, query, userID)
	if err != nil {
		return nil, wrap(err, "failed to query recipes")
	}
	defer rows.Close()

	recipes := make([]*models.Recipe, 0)
	byID := make(map[int64]*models.Recipe)
	ids := make([]int64, 0)
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, recipe)
		byID[recipe.ID] = recipe
		ids = append(ids, recipe.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "error iterating recipes")
	}

	if len(ids) == 0 {
		return recipes, nil
	}

	lines, err := loadRecipeLines(ctx, scope.Querier(), userID, ids)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if recipe, ok := byID[line.RecipeID]; ok {
			recipe.Ingredients = append(recipe.Ingredients, line)
		}
	}

	return recipes, nil
}

func (r *recipeRepository) Get(ctx context.Context, userID, id int64) (*models.Recipe, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	chefNotes, err := chefNotesSupported(ctx, scope)
	if err != nil {
		return nil, err
	}

	query := recipeSelect(chefNotes) + `
		WHERE r.id = $1 AND r.user_id = $2`

	recipe, err := scanRecipe(scope.Querier().QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lines, err := loadRecipeLines(ctx, scope.Querier(), userID, []int64{recipe.ID})
	if err != nil {
		return nil, err
	}
	recipe.Ingredients = lines

	return recipe, nil
}

func (r *recipeRepository) Save(ctx context.Context, recipe *models.Recipe) error {
	scope, err := tenantScope(ctx)
	if err != nil {
		return err
	}

	chefNotes, err := chefNotesSupported(ctx, scope)
	if err != nil {
		return err
	}

	tx, err := scope.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	isNew := recipe.ID == 0
	if isNew {
		err = insertRecipeHeader(ctx, tx, recipe, chefNotes)
	} else {
		err = updateRecipeHeader(ctx, tx, recipe, chefNotes)
	}
	if err != nil {
		if isNew {
			recipe.ID = 0
		}
		return err
	}

	if !isNew {
		if _, err := tx.Exec(ctx, "DELETE FROM recipe_ingredients WHERE recipe_id = $1", recipe.ID); err != nil {
			return wrap(err, "failed to clear recipe lines")
		}
	}

	if err := insertRecipeLines(ctx, tx, recipe); err != nil {
		if isNew {
			recipe.ID = 0
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isNew {
			recipe.ID = 0
		}
		return wrap(err, "failed to commit recipe")
	}

	return nil
}

func insertRecipeHeader(ctx context.Context, tx pgx.Tx, recipe *models.Recipe, chefNotes bool) error {
	args := []any{
		recipe.UserID,
		recipe.Name,
		recipe.CategoryID,
		nullString(recipe.Description),
		recipe.PreparationTime,
		recipe.Yield,
		recipe.TargetMargin,
		recipe.IngredientCost,
		recipe.SuggestedPrice,
		nullString(recipe.ImagePath),
	}

	columns := `user_id, name, category_id, description, preparation_time, yield,
		target_margin, ingredient_cost, suggested_price, image_path`
	values := "$1, $2, $3, $4, $5, $6, $7, $8, $9, $10"
	if chefNotes {
		columns += ", chef_notes"
		values += ", $11"
		args = append(args, recipe.ChefNotes)
	}

	query := fmt.Sprintf(`
		INSERT INTO recipes (%s)
		VALUES (%s)
		RETURNING id, created_at`, columns, values)

	if err := tx.QueryRow(ctx, query, args...).Scan(&recipe.ID, &recipe.CreatedAt); err != nil {
		return recipeWriteError(err, "failed to create recipe")
	}
	recipe.UpdatedAt = nil
	if !chefNotes {
		recipe.ChefNotes = nil
	}
	return nil
}

func updateRecipeHeader(ctx context.Context, tx pgx.Tx, recipe *models.Recipe, chefNotes bool) error {
	args := []any{
		recipe.ID,
		recipe.UserID,
		recipe.Name,
		recipe.CategoryID,
		nullString(recipe.Description),
		recipe.PreparationTime,
		recipe.Yield,
		recipe.TargetMargin,
		recipe.IngredientCost,
		recipe.SuggestedPrice,
		nullString(recipe.ImagePath),
	}

	set := `name = $3, category_id = $4, description = $5, preparation_time = $6,
		yield = $7, target_margin = $8, ingredient_cost = $9, suggested_price = $10,
		image_path = $11, updated_at = now()`
	if chefNotes {
		set += ", chef_notes = $12"
		args = append(args, recipe.ChefNotes)
	}

	query := fmt.Sprintf(`
		UPDATE recipes SET %s
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at`, set)

	err := tx.QueryRow(ctx, query, args...).Scan(&recipe.CreatedAt, &recipe.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return recipeWriteError(err, "failed to update recipe")
	}
	if !chefNotes {
		recipe.ChefNotes = nil
	}
	return nil
}

func insertRecipeLines(ctx context.Context, tx pgx.Tx, recipe *models.Recipe) error {
	if len(recipe.Ingredients) == 0 {
		return nil
	}

	query := `
		INSERT INTO recipe_ingredients (
			recipe_id, ingredient_id, ingredient_name, quantity, unit, cost_per_unit, total_cost
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	batch := &pgx.Batch{}
	for _, line := range recipe.Ingredients {
		batch.Queue(query,
			recipe.ID,
			line.IngredientID,
			line.IngredientName,
			line.Quantity,
			line.Unit,
			line.CostPerUnit,
			line.TotalCost,
		)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]int64, len(recipe.Ingredients))
	for i := range recipe.Ingredients {
		if err := results.QueryRow().Scan(&ids[i]); err != nil {
			_ = results.Close()
			return wrap(err, "failed to insert recipe line %d", i)
		}
	}
	if err := results.Close(); err != nil {
		return wrap(err, "failed to insert recipe lines")
	}

	for i := range recipe.Ingredients {
		recipe.Ingredients[i].ID = ids[i]
		recipe.Ingredients[i].RecipeID = recipe.ID
	}
	return nil
}

func recipeWriteError(err error, msg string) error {
	if isForeignKeyViolation(err, "recipes_category_fk") {
		return apperrors.Invalid("category_id", "unknown recipe category")
	}
	return wrap(err, "%s", msg)
}

// loadRecipeLines fetches the lines of every recipe in ids with one query.
func loadRecipeLines(ctx context.Context, q database.Querier, userID int64, ids []int64) ([]models.RecipeIngredient, error) {
	query := `
		SELECT ri.id, ri.recipe_id, ri.ingredient_id, ri.ingredient_name,
		       ri.quantity, ri.unit, ri.cost_per_unit, ri.total_cost
		FROM recipe_ingredients ri
		JOIN recipes r ON r.id = ri.recipe_id
		WHERE ri.recipe_id = ANY($1) AND r.user_id = $2
		ORDER BY ri.recipe_id, ri.id`

	rows, err := q.Query(ctx, query, ids, userID)
	if err != nil {
		return nil, wrap(err, "failed to query recipe lines")
	}
	defer rows.Close()

	lines := make([]models.RecipeIngredient, 0)
	for rows.Next() {
		var line models.RecipeIngredient
		err := rows.Scan(
			&line.ID,
			&line.RecipeID,
			&line.IngredientID,
			&line.IngredientName,
			&line.Quantity,
			&line.Unit,
			&line.CostPerUnit,
			&line.TotalCost,
		)
		if err != nil {
			return nil, wrap(err, "failed to scan recipe line")
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap(err, "error iterating recipe lines")
	}

	return lines, nil
}

func scanRecipe(row pgx.Row) (*models.Recipe, error) {
	var recipe models.Recipe
	var description, imagePath, categoryName, categoryIcon, categoryColor *string

	err := row.Scan(
		&recipe.ID,
		&recipe.UserID,
		&recipe.Name,
		&recipe.CategoryID,
		&description,
		&recipe.ChefNotes,
		&recipe.PreparationTime,
		&recipe.Yield,
		&recipe.TargetMargin,
		&recipe.IngredientCost,
		&recipe.SuggestedPrice,
		&imagePath,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
		&categoryName,
		&categoryIcon,
		&categoryColor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, wrap(err, "failed to scan recipe")
	}

	recipe.Description = derefString(description)
	recipe.ImagePath = derefString(imagePath)
	recipe.CategoryName = derefString(categoryName)
	recipe.CategoryIcon = derefString(categoryIcon)
	recipe.CategoryColor = derefString(categoryColor)
	recipe.Ingredients = make([]models.RecipeIngredient, 0)
	return &recipe, nil
}
