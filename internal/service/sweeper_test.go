package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/yoyaba/gtm-docgen/config"
	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/data"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
	"github.com/yoyaba/gtm-docgen/internal/mocks"
)

func sweeperConfig() config.SweeperConfig {
	return config.SweeperConfig{
		Interval:  time.Minute,
		Horizon:   24 * time.Hour,
		BatchSize: 100,
		Retention: 72 * time.Hour,
	}
}

func TestNewSweeperService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockJobRegistry(ctrl)
	store := mocks.NewMockIdempotencyStore(ctrl)

	t.Run("success", func(t *testing.T) {
		svc, err := NewSweeperService(SweeperServiceOptions{
			Registry: registry,
			Store:    store,
			Config:   sweeperConfig(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("missing registry", func(t *testing.T) {
		svc, err := NewSweeperService(SweeperServiceOptions{Store: store, Config: sweeperConfig()})
		require.Error(t, err)
		assert.Nil(t, svc)
	})

	t.Run("missing store", func(t *testing.T) {
		svc, err := NewSweeperService(SweeperServiceOptions{Registry: registry, Config: sweeperConfig()})
		require.Error(t, err)
		assert.Nil(t, svc)
	})
}

func TestSweeperServiceSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("expires jobs past the horizon only", func(t *testing.T) {
		tp := data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		registry := data.NewMemoryJobRegistry(tp)
		store := data.NewMemoryIdempotencyStore(tp)

		require.NoError(t, registry.Create(ctx, &model.ResearchJob{
			Handle: "resp_old", State: model.JobStateSubmitted,
			Context: model.SubmissionContext{CompanyID: "1", CompanyName: "Old Co"},
		}))

		tp.AddTime(12 * time.Hour)
		require.NoError(t, registry.Create(ctx, &model.ResearchJob{
			Handle: "resp_fresh", State: model.JobStateSubmitted,
			Context: model.SubmissionContext{CompanyID: "2", CompanyName: "Fresh Co"},
		}))

		tp.AddTime(13 * time.Hour)

		svc := MustNewSweeperService(SweeperServiceOptions{
			Registry: registry,
			Store:    store,
			Config:   sweeperConfig(),
		})
		expired, purged := svc.Sweep(ctx)
		assert.EqualValues(t, 1, expired)
		assert.EqualValues(t, 0, purged)

		old, err := registry.GetByHandle(ctx, "resp_old")
		require.NoError(t, err)
		assert.Equal(t, model.JobStateExpired, old.State)
		require.NotNil(t, old.FailureReason)
		assert.Equal(t, "no completion webhook within validity horizon", *old.FailureReason)

		fresh, err := registry.GetByHandle(ctx, "resp_fresh")
		require.NoError(t, err)
		assert.Equal(t, model.JobStateSubmitted, fresh.State)
	})

	t.Run("terminal jobs are never expired", func(t *testing.T) {
		tp := data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		registry := data.NewMemoryJobRegistry(tp)

		require.NoError(t, registry.Create(ctx, &model.ResearchJob{
			Handle: "resp_done", State: model.JobStateSubmitted,
			Context: model.SubmissionContext{CompanyID: "1", CompanyName: "Done Co"},
		}))
		won, err := registry.Transition(ctx, core.TransitionParams{Handle: "resp_done", To: model.JobStateCompleted})
		require.NoError(t, err)
		require.True(t, won)

		tp.AddTime(48 * time.Hour)

		svc := MustNewSweeperService(SweeperServiceOptions{
			Registry: registry,
			Store:    data.NewMemoryIdempotencyStore(tp),
			Config:   sweeperConfig(),
		})
		expired, _ := svc.Sweep(ctx)
		assert.EqualValues(t, 0, expired)

		job, err := registry.GetByHandle(ctx, "resp_done")
		require.NoError(t, err)
		assert.Equal(t, model.JobStateCompleted, job.State)
	})

	t.Run("purges finished execution records past retention", func(t *testing.T) {
		tp := data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		store := data.NewMemoryIdempotencyStore(tp)

		_, err := store.Begin(ctx, "doc:resp_done", 10*time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.MarkSucceeded(ctx, "doc:resp_done", "https://docs.example.com/d/x"))

		_, err = store.Begin(ctx, "doc:resp_running", 10*time.Minute)
		require.NoError(t, err)

		tp.AddTime(73 * time.Hour)

		svc := MustNewSweeperService(SweeperServiceOptions{
			Registry: data.NewMemoryJobRegistry(tp),
			Store:    store,
			Config:   sweeperConfig(),
		})
		_, purged := svc.Sweep(ctx)
		assert.EqualValues(t, 1, purged)

		// In-progress records are never purged regardless of age.
		_, err = store.Get(ctx, "doc:resp_running")
		require.NoError(t, err)
		_, err = store.Get(ctx, "doc:resp_done")
		require.Error(t, err)
	})

	t.Run("batch size bounds one pass", func(t *testing.T) {
		tp := data.NewFixedTimeProvider(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		registry := data.NewMemoryJobRegistry(tp)
		for i := range 10 {
			require.NoError(t, registry.Create(ctx, &model.ResearchJob{
				Handle: fmt.Sprintf("resp_%d", i), State: model.JobStateSubmitted,
				Context: model.SubmissionContext{CompanyID: "1", CompanyName: "Bulk Co"},
			}))
		}
		tp.AddTime(25 * time.Hour)

		cfg := sweeperConfig()
		cfg.BatchSize = 3
		svc := MustNewSweeperService(SweeperServiceOptions{
			Registry: registry,
			Store:    data.NewMemoryIdempotencyStore(tp),
			Config:   cfg,
		})

		expired, _ := svc.Sweep(ctx)
		assert.EqualValues(t, 3, expired)

		// The next pass picks up where the last one stopped.
		expired, _ = svc.Sweep(ctx)
		assert.EqualValues(t, 3, expired)
	})

	t.Run("storage errors are logged, not fatal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := mocks.NewMockJobRegistry(ctrl)
		store := mocks.NewMockIdempotencyStore(ctrl)
		registry.EXPECT().
			ExpireStale(gomock.Any(), gomock.Any()).
			Return(int64(0), assert.AnError)
		store.EXPECT().
			PurgeExpired(gomock.Any(), gomock.Any()).
			Return(int64(0), assert.AnError)

		svc := MustNewSweeperService(SweeperServiceOptions{
			Registry: registry,
			Store:    store,
			Config:   sweeperConfig(),
		})
		expired, purged := svc.Sweep(ctx)
		assert.EqualValues(t, 0, expired)
		assert.EqualValues(t, 0, purged)
	})
}

func TestSweeperServiceRunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockJobRegistry(ctrl)
	store := mocks.NewMockIdempotencyStore(ctrl)
	registry.EXPECT().ExpireStale(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()
	store.EXPECT().PurgeExpired(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()

	cfg := sweeperConfig()
	cfg.Interval = 10 * time.Millisecond
	svc := MustNewSweeperService(SweeperServiceOptions{
		Registry: registry,
		Store:    store,
		Config:   cfg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
