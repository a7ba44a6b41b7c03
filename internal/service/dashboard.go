package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lojaju/backend/internal/cache"
	"lojaju/backend/internal/domain"
)

const quarterDays = 90

// DashboardWindows returns the start of the current month and the start of
// the day 90 days ago, both in loc.
func DashboardWindows(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	back := local.AddDate(0, 0, -quarterDays)
	quarterStart := time.Date(back.Year(), back.Month(), back.Day(), 0, 0, 0, 0, loc)
	return monthStart, quarterStart
}

// Dashboard serves the cached summary when present.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	cached, ok, err := s.dashboard.Get(ctx, cache.DashboardKey)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", zap.Error(err))
	}
	if ok && cached != nil {
		return *cached, nil
	}

	summary, err := s.ComputeDashboard(ctx, s.now())
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	if err := s.dashboard.Set(ctx, cache.DashboardKey, &summary, s.dashboardTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return summary, nil
}

func (s *Service) ComputeDashboard(ctx context.Context, now time.Time) (domain.DashboardSummary, error) {
	monthStart, quarterStart := DashboardWindows(now, s.loc)
	summary := domain.DashboardSummary{
		GeneratedAt:  now.In(s.loc),
		Timezone:     s.loc.String(),
		MonthStart:   monthStart,
		QuarterStart: quarterStart,
	}

	var err error
	if summary.Customers, err = s.repo.CountCustomers(ctx); err != nil {
		return summary, err
	}
	if summary.Sales.Month, err = s.repo.SalesTotalSince(ctx, monthStart); err != nil {
		return summary, err
	}
	if summary.Sales.Quarter, err = s.repo.SalesTotalSince(ctx, quarterStart); err != nil {
		return summary, err
	}
	if summary.Received.Month, err = s.repo.PaymentsTotalSince(ctx, monthStart); err != nil {
		return summary, err
	}
	if summary.Received.Quarter, err = s.repo.PaymentsTotalSince(ctx, quarterStart); err != nil {
		return summary, err
	}
	if summary.Profit.Month, err = s.repo.ProfitSince(ctx, monthStart); err != nil {
		return summary, err
	}
	if summary.Profit.Quarter, err = s.repo.ProfitSince(ctx, quarterStart); err != nil {
		return summary, err
	}
	if summary.OutstandingTotal, err = s.repo.OutstandingTotal(ctx, nil); err != nil {
		return summary, err
	}
	return summary, nil
}
