// cleanup-test-data removes every row a tenant owns, price ledger included.
// Integration runs and demo seeding leave tenants behind; this clears them.
//
// Usage: go run ./scripts/cleanup-test-data [-dry-run=false] <user-id>
//
// Database connection: Uses standard PG* environment variables, read from a
// .env file in the working directory when one exists
//
// Flags:
//
//	-dry-run   Show row counts without deleting anything (default: true)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ekaya-inc/recipe-costing/pkg/config"
	"github.com/ekaya-inc/recipe-costing/pkg/database"
	"github.com/ekaya-inc/recipe-costing/pkg/logging"
)

func main() {
	dryRun := flag.Bool("dry-run", true, "Show row counts without deleting anything")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-dry-run=false] <user-id>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		fmt.Fprintf(os.Stderr, "  -dry-run  Show row counts without deleting (default: true)\n")
		os.Exit(1)
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		fmt.Fprintf(os.Stderr, "Invalid user ID: %s\n", args[0])
		os.Exit(1)
	}

	// Exported variables win over .env; a missing file is fine.
	_ = godotenv.Load()

	var dbCfg config.DatabaseConfig
	if err := cleanenv.ReadEnv(&dbCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read database settings: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{URL: dbCfg.URL(), MaxConnections: 2})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %s\n", logging.SanitizeError(err))
		os.Exit(1)
	}
	defer db.Close()

	scope, err := db.WithTenant(ctx, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set tenant context: %v\n", err)
		os.Exit(1)
	}
	defer scope.Close()

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to actually delete rows")
		fmt.Println()

		counts, err := database.CountTenantRows(ctx, scope.Querier(), userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting rows: %v\n", err)
			os.Exit(1)
		}
		total := printCounts(counts)
		fmt.Printf("\nTotal rows that would be deleted: %d\n", total)
		return
	}

	counts, err := database.PurgeTenant(ctx, scope, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error purging tenant %d: %v\n", userID, err)
		os.Exit(1)
	}
	total := printCounts(counts)
	fmt.Printf("\nTotal rows deleted: %d\n", total)
}

func printCounts(counts database.PurgeCounts) int64 {
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var total int64
	for _, table := range tables {
		fmt.Printf("  %-28s %d\n", table, counts[table])
		total += counts[table]
	}
	return total
}
