package repositories

import (
	"context"
	"time"

	"github.com/ekaya-inc/recipe-costing/pkg/models"
)

// DashboardRepository aggregates a tenant's overview in one round trip.
type DashboardRepository interface {
	GetStats(ctx context.Context, userID int64, since time.Time) (*models.DashboardStats, error)
}

type dashboardRepository struct{}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository() DashboardRepository {
	return &dashboardRepository{}
}

var _ DashboardRepository = (*dashboardRepository)(nil)

func (r *dashboardRepository) GetStats(ctx context.Context, userID int64, since time.Time) (*models.DashboardStats, error) {
	scope, err := tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			(SELECT count(*) FROM recipes WHERE user_id = $1),
			(SELECT count(*) FROM ingredients WHERE user_id = $1),
			(SELECT COALESCE(round(avg(ingredient_cost), 2), 0) FROM recipes WHERE user_id = $1),
			(SELECT COALESCE(round(avg(target_margin), 4), 0) FROM recipes WHERE user_id = $1),
			(SELECT count(*) FROM ingredient_price_movements
			 WHERE user_id = $1 AND effective_date >= $2::date)`

	stats := &models.DashboardStats{Since: since}
	err = scope.Querier().QueryRow(ctx, query, userID, since).Scan(
		&stats.RecipeCount,
		&stats.IngredientCount,
		&stats.AverageCost,
		&stats.AverageMargin,
		&stats.RecentMovements,
	)
	if err != nil {
		return nil, wrap(err, "failed to load dashboard stats")
	}

	stats.GeneratedAt = time.Now().UTC()
	return stats, nil
}
