// seed-demo loads a fixture of categories, suppliers, ingredients, price
// changes and recipes into one tenant. Loading is repeatable: entries that
// already exist by name are skipped and price changes are recorded once.
//
// Usage: go run ./scripts/seed-demo [-fixture path.yaml] <user-id>
//
// Database connection: Uses standard PG* environment variables, read from a
// .env file in the working directory when one exists
//
// Flags:
//
//	-fixture   YAML fixture to load (default: the bundled demo kitchen)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/config"
	"github.com/ekaya-inc/recipe-costing/pkg/database"
	"github.com/ekaya-inc/recipe-costing/pkg/logging"
	"github.com/ekaya-inc/recipe-costing/pkg/repositories"
	"github.com/ekaya-inc/recipe-costing/pkg/seed"
	"github.com/ekaya-inc/recipe-costing/pkg/services"
)

func main() {
	fixturePath := flag.String("fixture", "", "YAML fixture to load (default: bundled demo)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-fixture path.yaml] <user-id>\n", os.Args[0])
		os.Exit(1)
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		fmt.Fprintf(os.Stderr, "Invalid user ID: %s\n", args[0])
		os.Exit(1)
	}

	fixture, err := loadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New("local")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Exported variables win over .env; a missing file is fine.
	_ = godotenv.Load()

	var dbCfg config.DatabaseConfig
	if err := cleanenv.ReadEnv(&dbCfg); err != nil {
		logger.Fatal("Failed to read database settings", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &database.Config{URL: dbCfg.URL(), MaxConnections: 2, ApplicationName: "seed-demo"})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	ctx, cleanup, err := database.NewTenantScopeProvider(db).WithTenantScope(ctx, userID)
	if err != nil {
		logger.Fatal("Failed to set tenant context", zap.Error(err))
	}
	defer cleanup()

	result, err := newLoader(logger).Load(ctx, userID, fixture)
	if err != nil {
		logger.Fatal("Seeding failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func loadFixture(path string) (*seed.Fixture, error) {
	if path == "" {
		return seed.Demo()
	}
	return seed.LoadFile(path)
}

func newLoader(logger *zap.Logger) *seed.Loader {
	ingredientRepo := repositories.NewIngredientRepository()
	movementRepo := repositories.NewPriceMovementRepository()
	recipeCategoryRepo := repositories.NewRecipeCategoryRepository()

	// No dashboard cache here; entries expire on their TTL.
	catalog := services.NewCatalogService(repositories.NewCategoryRepository(), recipeCategoryRepo, repositories.NewSupplierRepository(), logger)
	ingredients := services.NewIngredientService(ingredientRepo, movementRepo, database.RunInTx, nil, logger)
	movements := services.NewPriceMovementService(ingredientRepo, movementRepo, database.RunInTx, nil, logger)
	recipes := services.NewRecipeService(repositories.NewRecipeRepository(), ingredientRepo, recipeCategoryRepo, database.RunInTx, nil, logger)

	return seed.NewLoader(catalog, ingredients, movements, recipes, logger)
}
