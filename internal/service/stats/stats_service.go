package stats

import (
	"context"

	"github.com/voyagehq/bookingcore/internal/repository"
)

type StatsUseCase interface {
	Statistics(ctx context.Context) (*repository.Statistics, error)
}

type Cache interface {
	GetStats(ctx context.Context) (*repository.Statistics, error)
	SetStats(ctx context.Context, stats *repository.Statistics) error
}

// StatsService serves the aggregation snapshot cache-first; the cache TTL is
// the staleness bound.
type StatsService struct {
	repo  repository.StatsRepository
	cache Cache
}

func NewStatsService(repo repository.StatsRepository, cache Cache) *StatsService {
	return &StatsService{repo: repo, cache: cache}
}

func (s *StatsService) Statistics(ctx context.Context) (*repository.Statistics, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetStats(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	stats, err := s.repo.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetStats(ctx, stats)
	}
	return stats, nil
}

var _ StatsUseCase = (*StatsService)(nil)
