package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/data"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
	apperrors "github.com/yoyaba/gtm-docgen/internal/errors"
	"github.com/yoyaba/gtm-docgen/internal/mocks"
)

func validSubmitRequest() *model.SubmitRequest {
	return &model.SubmitRequest{
		CompanyID:   "41227",
		CompanyName: "Acme Robotics",
		StageTS:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Enrichment:  json.RawMessage(`{"industry":"manufacturing","employees":250}`),
	}
}

func TestNewSubmissionService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	registry := mocks.NewMockJobRegistry(ctrl)
	provider := mocks.NewMockResearchProvider(ctrl)

	t.Run("success", func(t *testing.T) {
		svc, err := NewSubmissionService(SubmissionServiceOptions{
			Registry: registry,
			Provider: provider,
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("missing registry", func(t *testing.T) {
		svc, err := NewSubmissionService(SubmissionServiceOptions{Provider: provider})
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "JobRegistry is required")
	})

	t.Run("missing provider", func(t *testing.T) {
		svc, err := NewSubmissionService(SubmissionServiceOptions{Registry: registry})
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "ResearchProvider is required")
	})
}

func TestSubmissionServiceSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("success records job keyed by provider handle", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := mocks.NewMockJobRegistry(ctrl)
		provider := mocks.NewMockResearchProvider(ctrl)

		provider.EXPECT().
			Submit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.SubmitResearchParams) (string, error) {
				assert.Equal(t, "Acme Robotics", params.CompanyName)
				assert.Contains(t, params.Input, "Acme Robotics")
				assert.Contains(t, params.Input, "41227")
				assert.Contains(t, params.Input, "manufacturing")
				return "resp_abc123", nil
			})
		registry.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, job *model.ResearchJob) error {
				assert.Equal(t, "resp_abc123", job.Handle)
				assert.Equal(t, model.JobStateSubmitted, job.State)
				assert.Equal(t, "41227", job.Context.CompanyID)
				assert.Positive(t, job.InputTokens)
				return nil
			})

		svc := MustNewSubmissionService(SubmissionServiceOptions{Registry: registry, Provider: provider})
		job, err := svc.Submit(ctx, validSubmitRequest())
		require.NoError(t, err)
		assert.Equal(t, "resp_abc123", job.Handle)
	})

	t.Run("invalid request never reaches the provider", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := mocks.NewMockJobRegistry(ctrl)
		provider := mocks.NewMockResearchProvider(ctrl)

		svc := MustNewSubmissionService(SubmissionServiceOptions{Registry: registry, Provider: provider})

		req := validSubmitRequest()
		req.CompanyName = "  "
		job, err := svc.Submit(ctx, req)
		require.Error(t, err)
		assert.Nil(t, job)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("nil request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := MustNewSubmissionService(SubmissionServiceOptions{
			Registry: mocks.NewMockJobRegistry(ctrl),
			Provider: mocks.NewMockResearchProvider(ctrl),
		})
		job, err := svc.Submit(ctx, nil)
		require.Error(t, err)
		assert.Nil(t, job)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("provider failure leaves no record", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := mocks.NewMockJobRegistry(ctrl)
		provider := mocks.NewMockResearchProvider(ctrl)

		provider.EXPECT().
			Submit(gomock.Any(), gomock.Any()).
			Return("", apperrors.TransientProvider(errors.New("503"), "provider unavailable"))

		svc := MustNewSubmissionService(SubmissionServiceOptions{Registry: registry, Provider: provider})
		job, err := svc.Submit(ctx, validSubmitRequest())
		require.Error(t, err)
		assert.Nil(t, job)
		assert.True(t, apperrors.IsTransientProvider(err))
	})

	t.Run("duplicate handle maps to conflict", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := mocks.NewMockJobRegistry(ctrl)
		provider := mocks.NewMockResearchProvider(ctrl)

		provider.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("resp_dup", nil)
		registry.EXPECT().Create(gomock.Any(), gomock.Any()).Return(data.ErrDuplicateHandle)

		svc := MustNewSubmissionService(SubmissionServiceOptions{Registry: registry, Provider: provider})
		job, err := svc.Submit(ctx, validSubmitRequest())
		require.Error(t, err)
		assert.Nil(t, job)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("registry failure surfaces after submission", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := mocks.NewMockJobRegistry(ctrl)
		provider := mocks.NewMockResearchProvider(ctrl)

		provider.EXPECT().Submit(gomock.Any(), gomock.Any()).Return("resp_orphan", nil)
		registry.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

		svc := MustNewSubmissionService(SubmissionServiceOptions{Registry: registry, Provider: provider})
		job, err := svc.Submit(ctx, validSubmitRequest())
		require.Error(t, err)
		assert.Nil(t, job)
		assert.Contains(t, err.Error(), "record research job")
	})
}

func TestSubmissionServiceStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("returns registry view", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := mocks.NewMockJobRegistry(ctrl)
		ref := "https://docs.example.com/d/abc"
		registry.EXPECT().GetByHandle(gomock.Any(), "resp_abc123").Return(&model.ResearchJob{
			Handle:    "resp_abc123",
			Context:   model.SubmissionContext{CompanyName: "Acme Robotics"},
			State:     model.JobStateCompleted,
			ResultRef: &ref,
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}, nil)

		svc := MustNewSubmissionService(SubmissionServiceOptions{
			Registry: registry,
			Provider: mocks.NewMockResearchProvider(gomock.NewController(t)),
		})
		status, err := svc.Status(ctx, "resp_abc123")
		require.NoError(t, err)
		assert.Equal(t, model.JobStateCompleted, status.State)
		assert.Equal(t, "Acme Robotics", status.CompanyName)
		require.NotNil(t, status.ResultRef)
		assert.Equal(t, ref, *status.ResultRef)
	})

	t.Run("unknown handle", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		registry := mocks.NewMockJobRegistry(ctrl)
		registry.EXPECT().GetByHandle(gomock.Any(), "resp_missing").Return(nil, model.ErrJobNotFound)

		svc := MustNewSubmissionService(SubmissionServiceOptions{
			Registry: registry,
			Provider: mocks.NewMockResearchProvider(gomock.NewController(t)),
		})
		status, err := svc.Status(ctx, "resp_missing")
		require.Error(t, err)
		assert.Nil(t, status)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("blank handle", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := MustNewSubmissionService(SubmissionServiceOptions{
			Registry: mocks.NewMockJobRegistry(ctrl),
			Provider: mocks.NewMockResearchProvider(ctrl),
		})
		status, err := svc.Status(ctx, "  ")
		require.Error(t, err)
		assert.Nil(t, status)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 0, estimateTokens("abc"))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 25, estimateTokens(string(make([]byte, 100))))
}
