package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"settlement-engine/internal/config"
	"settlement-engine/internal/service"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) ExpireDueOffers(ctx context.Context) (*service.SweepResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SweepResult), args.Error(1)
}

func TestRunExpireOffers(t *testing.T) {
	cfg := &config.Config{}

	t.Run("Success", func(t *testing.T) {
		sweeper := new(MockSweeper)
		want := &service.SweepResult{Scanned: 3, Expired: 2, Skipped: 1, ExpiredIDs: []string{"a", "b"}}
		sweeper.On("ExpireDueOffers", mock.Anything).Return(want, nil).Once()

		jr := NewJobRunner(sweeper, cfg)
		res, err := jr.RunExpireOffers(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, res)
		assert.Same(t, cfg, jr.Config())
		sweeper.AssertExpectations(t)
	})

	t.Run("Partial failure is returned", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("ExpireDueOffers", mock.Anything).
			Return(&service.SweepResult{Scanned: 2, Expired: 1, Failed: 1}, errors.New("expire o2: storage down")).Once()

		res, err := NewJobRunner(sweeper, cfg).RunExpireOffers(context.Background())
		assert.Error(t, err)
		require.NotNil(t, res)
		assert.Equal(t, 1, res.Failed)
	})

	t.Run("Panic is recovered", func(t *testing.T) {
		sweeper := new(MockSweeper)
		sweeper.On("ExpireDueOffers", mock.Anything).Panic("boom")

		jr := NewJobRunner(sweeper, cfg)
		res, err := jr.RunExpireOffers(context.Background())
		assert.Error(t, err)
		assert.Nil(t, res)
		assert.NotPanics(t, jr.ExpireOffers)
	})
}

func TestRunAll(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("ExpireDueOffers", mock.Anything).Return(&service.SweepResult{}, nil).Once()

	NewJobRunner(sweeper, &config.Config{}).RunAll()
	sweeper.AssertExpectations(t)
}
