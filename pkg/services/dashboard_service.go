package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/recipe-costing/pkg/models"
	"github.com/ekaya-inc/recipe-costing/pkg/repositories"
)

// recentMovementWindow is how far back the dashboard counts price movements.
const recentMovementWindow = 30 * 24 * time.Hour

// DashboardCache is the read-through cache in front of the dashboard query.
// Get returns a version even on a miss; Set stores under that version, so a
// result computed across an Invalidate is never served.
// *cache.DashboardCache implements it.
type DashboardCache interface {
	DashboardInvalidator
	Get(ctx context.Context, userID int64) (*models.DashboardStats, int64, bool)
	Set(ctx context.Context, userID, version int64, stats *models.DashboardStats)
}

// DashboardService serves the tenant overview.
type DashboardService interface {
	Get(ctx context.Context, userID int64) (*models.DashboardStats, error)
}

type dashboardService struct {
	repo   repositories.DashboardRepository
	cache  DashboardCache
	now    func() time.Time
	logger *zap.Logger
}

// NewDashboardService creates a new DashboardService. cache may be nil.
func NewDashboardService(repo repositories.DashboardRepository, cache DashboardCache, logger *zap.Logger) DashboardService {
	return &dashboardService{
		repo:   repo,
		cache:  cache,
		now:    time.Now,
		logger: logger.Named("dashboard-service"),
	}
}

var _ DashboardService = (*dashboardService)(nil)

func (s *dashboardService) Get(ctx context.Context, userID int64) (*models.DashboardStats, error) {
	version := int64(-1)
	if s.cache != nil {
		stats, v, ok := s.cache.Get(ctx, userID)
		if ok {
			return stats, nil
		}
		version = v
	}

	since := today(s.now().Add(-recentMovementWindow))
	stats, err := s.repo.GetStats(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, userID, version, stats)
	}
	s.logger.Debug("Dashboard computed", zap.Int64("user_id", userID))
	return stats, nil
}
