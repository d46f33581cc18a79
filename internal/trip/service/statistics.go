package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"rihla/internal/trip/models"
	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
	"rihla/pkg/requestcontext"
)

// GetStatistics assembles the organization rollup. The trip and registration
// aggregates run concurrently; the assembled result is served from the cache
// when one is configured. Empty organizations get the zero-value rollup.
func (s *Service) GetStatistics(ctx context.Context, orgID id.OrgID) (*models.Statistics, error) {
	start := time.Now()
	defer s.observeStatistics(start)

	if s.statsCache != nil {
		if cached, ok := s.statsCache.Get(ctx, orgID); ok {
			return cached, nil
		}
	}

	now := requestcontext.Now(ctx)

	var (
		counts models.TripCounts
		totals models.RegistrationTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.stats.TripCounts(gctx, orgID, now)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.stats.RegistrationTotals(gctx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate statistics")
	}

	stats := &models.Statistics{TripCounts: counts, RegistrationTotals: totals}
	if s.statsCache != nil {
		s.statsCache.Set(ctx, orgID, stats)
	}
	return stats, nil
}

func (s *Service) observeStatistics(start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStatistics(start)
}
