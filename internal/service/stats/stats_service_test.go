package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voyagehq/bookingcore/internal/repository"
)

type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) Collect(ctx context.Context) (*repository.Statistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Statistics), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetStats(ctx context.Context) (*repository.Statistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Statistics), args.Error(1)
}

func (m *MockCache) SetStats(ctx context.Context, stats *repository.Statistics) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func snapshot() *repository.Statistics {
	return &repository.Statistics{
		BookingsByState: map[string]int64{"COMPLETED": 12},
		RefundedCents:   90_000,
	}
}

func TestStatistics_CacheHitSkipsRepository(t *testing.T) {
	repo := &MockStatsRepository{}
	cache := &MockCache{}
	svc := NewStatsService(repo, cache)

	cache.On("GetStats", mock.Anything).Return(snapshot(), nil)

	got, err := svc.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(12), got.BookingsByState["COMPLETED"])
	repo.AssertNotCalled(t, "Collect", mock.Anything)
}

func TestStatistics_CacheMissCollectsAndBackfills(t *testing.T) {
	repo := &MockStatsRepository{}
	cache := &MockCache{}
	svc := NewStatsService(repo, cache)

	cache.On("GetStats", mock.Anything).Return(nil, nil)
	repo.On("Collect", mock.Anything).Return(snapshot(), nil)
	cache.On("SetStats", mock.Anything, mock.Anything).Return(nil)

	got, err := svc.Statistics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(90_000), got.RefundedCents)
	cache.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestStatistics_NilCache(t *testing.T) {
	repo := &MockStatsRepository{}
	svc := NewStatsService(repo, nil)

	repo.On("Collect", mock.Anything).Return(snapshot(), nil)

	got, err := svc.Statistics(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
}
