// Package mocks provides mock implementations for testing the gtm-docgen job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRegistry := mocks.NewMockJobRegistry(ctrl)
//	mockRegistry.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for JobRegistry interface from internal/core package.
// This creates MockJobRegistry with methods for all JobRegistry interface methods:
// Create, GetByHandle, Transition, RecordResult, ExpireStale, Stats
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_registry_mock.go github.com/yoyaba/gtm-docgen/internal/core JobRegistry

// Generate mock for IdempotencyStore interface from internal/core package.
// This creates MockIdempotencyStore with methods for all IdempotencyStore interface methods:
// Begin, MarkSucceeded, MarkFailed, PurgeExpired
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=idempotency_store_mock.go github.com/yoyaba/gtm-docgen/internal/core IdempotencyStore

// Generate mock for ReplayCache interface from internal/core package.
// This creates MockReplayCache with methods for all ReplayCache interface methods:
// Claim, Ping
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=replay_cache_mock.go github.com/yoyaba/gtm-docgen/internal/core ReplayCache

// Generate mock for ResearchProvider interface from internal/core package.
// This creates MockResearchProvider with methods for all ResearchProvider interface methods:
// Submit, Fetch
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=research_provider_mock.go github.com/yoyaba/gtm-docgen/internal/core ResearchProvider

// Generate mock for DocumentCreator interface from internal/core package.
// This creates MockDocumentCreator with methods for all DocumentCreator interface methods:
// CreateDocument
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=document_creator_mock.go github.com/yoyaba/gtm-docgen/internal/core DocumentCreator

// Generate mock for CRMClient interface from internal/core package.
// This creates MockCRMClient with methods for all CRMClient interface methods:
// UpdateDealStatus
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=crm_client_mock.go github.com/yoyaba/gtm-docgen/internal/core CRMClient
