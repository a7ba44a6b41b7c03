package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lojaju/backend/internal/cache"
	"lojaju/backend/internal/sale"
	"lojaju/backend/internal/store"
)

// Drafts left untouched this long are dropped from the registry.
const draftIdleTimeout = 12 * time.Hour

type Service struct {
	repo         store.Repository
	drafts       *sale.Registry
	dashboard    cache.DashboardCache
	dashboardTTL time.Duration
	loc          *time.Location
	logger       *zap.Logger
	now          func() time.Time
}

func New(repo store.Repository, dashboardCache cache.DashboardCache, loc *time.Location, dashboardTTL time.Duration, logger *zap.Logger) *Service {
	if dashboardCache == nil {
		dashboardCache = cache.NoopDashboardCache{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if dashboardTTL <= 0 {
		dashboardTTL = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:         repo,
		drafts:       sale.NewRegistry(repo, draftIdleTimeout),
		dashboard:    dashboardCache,
		dashboardTTL: dashboardTTL,
		loc:          loc,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// invalidateDashboard drops the cached summary after a write. A cache failure
// only costs a stale dashboard for one TTL, so it is logged and ignored.
func (s *Service) invalidateDashboard(ctx context.Context) {
	if err := s.dashboard.Delete(ctx, cache.DashboardKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
