package data

import (
	"context"
	"sync"
	"time"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
)

// In-memory implementations of the store ports. Used by tests that exercise
// concurrent delivery races, where a mock's scripted expectations would hide
// the interleavings under test. They honor the same contracts as the
// Postgres implementations.

// MemoryJobRegistry is an in-memory core.JobRegistry.
type MemoryJobRegistry struct {
	mu           sync.Mutex
	jobs         map[string]*model.ResearchJob
	timeProvider TimeProvider
}

// NewMemoryJobRegistry creates an empty in-memory registry.
func NewMemoryJobRegistry(tp TimeProvider) *MemoryJobRegistry {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemoryJobRegistry{jobs: make(map[string]*model.ResearchJob), timeProvider: tp}
}

// Create registers a job, failing on a duplicate handle.
func (m *MemoryJobRegistry) Create(_ context.Context, job *model.ResearchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.Handle]; exists {
		return ErrDuplicateHandle
	}
	now := m.timeProvider.Now().UTC()
	job.CreatedAt = now
	job.LastTransitionAt = now
	stored := *job
	m.jobs[job.Handle] = &stored
	return nil
}

// GetByHandle returns a copy of the stored job.
func (m *MemoryJobRegistry) GetByHandle(_ context.Context, handle string) (*model.ResearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[handle]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// Transition applies the submitted-only conditional update.
func (m *MemoryJobRegistry) Transition(_ context.Context, params core.TransitionParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[params.Handle]
	if !ok || job.State != model.JobStateSubmitted {
		return false, nil
	}
	job.State = params.To
	job.ResultRef = params.ResultRef
	job.FailureReason = params.FailureReason
	if params.OutputTokens != nil {
		job.OutputTokens = params.OutputTokens
	}
	job.LastTransitionAt = m.timeProvider.Now().UTC()
	return true, nil
}

// RecordResult attaches the artifact reference to a completed job.
func (m *MemoryJobRegistry) RecordResult(_ context.Context, handle, resultRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[handle]
	if !ok || job.State != model.JobStateCompleted {
		return model.ErrJobNotFound
	}
	job.ResultRef = &resultRef
	return nil
}

// ExpireStale expires submitted jobs older than the horizon.
func (m *MemoryJobRegistry) ExpireStale(_ context.Context, params core.ExpireStaleParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.timeProvider.Now().UTC()
	cutoff := now.Add(-params.Horizon)
	reason := "no completion webhook within validity horizon"
	var expired int64
	for _, job := range m.jobs {
		if params.BatchSize > 0 && expired >= int64(params.BatchSize) {
			break
		}
		if job.State == model.JobStateSubmitted && job.CreatedAt.Before(cutoff) {
			job.State = model.JobStateExpired
			job.FailureReason = &reason
			job.LastTransitionAt = now
			expired++
		}
	}
	return expired, nil
}

// Stats counts jobs per state.
func (m *MemoryJobRegistry) Stats(_ context.Context) (*model.JobStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s model.JobStats
	for _, job := range m.jobs {
		switch job.State {
		case model.JobStateSubmitted:
			s.Submitted++
		case model.JobStateCompleted:
			s.Completed++
		case model.JobStateFailed:
			s.Failed++
		case model.JobStateExpired:
			s.Expired++
		}
	}
	return &s, nil
}

// MemoryIdempotencyStore is an in-memory core.IdempotencyStore.
type MemoryIdempotencyStore struct {
	mu           sync.Mutex
	records      map[string]*model.IdempotencyRecord
	retention    time.Duration
	timeProvider TimeProvider
}

// NewMemoryIdempotencyStore creates an empty in-memory store.
func NewMemoryIdempotencyStore(tp TimeProvider) *MemoryIdempotencyStore {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemoryIdempotencyStore{
		records:      make(map[string]*model.IdempotencyRecord),
		retention:    defaultRetention,
		timeProvider: tp,
	}
}

// Begin claims the key under the same contract as the Postgres repo.
func (m *MemoryIdempotencyStore) Begin(
	_ context.Context,
	key string,
	staleAfter time.Duration,
) (*core.BeginResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.timeProvider.Now().UTC()

	rec, exists := m.records[key]
	if !exists {
		rec = &model.IdempotencyRecord{
			DedupeKey: key,
			Status:    model.ExecutionInProgress,
			StartedAt: now,
			ExpiresAt: now.Add(m.retention),
		}
		m.records[key] = rec
		cp := *rec
		return &core.BeginResult{Outcome: core.BeginStarted, Record: &cp}, nil
	}

	switch rec.Status {
	case model.ExecutionSucceeded:
		cp := *rec
		return &core.BeginResult{Outcome: core.BeginAlreadySucceeded, Record: &cp}, nil
	case model.ExecutionFailed:
		m.reset(rec, now)
		cp := *rec
		return &core.BeginResult{Outcome: core.BeginRetryAfterFailure, Record: &cp}, nil
	default:
		if staleAfter > 0 && now.Sub(rec.StartedAt) > staleAfter {
			m.reset(rec, now)
			cp := *rec
			return &core.BeginResult{Outcome: core.BeginStarted, Record: &cp}, nil
		}
		cp := *rec
		return &core.BeginResult{Outcome: core.BeginInProgress, Record: &cp}, nil
	}
}

func (m *MemoryIdempotencyStore) reset(rec *model.IdempotencyRecord, now time.Time) {
	rec.Status = model.ExecutionInProgress
	rec.StartedAt = now
	rec.FinishedAt = nil
	rec.ExpiresAt = now.Add(m.retention)
}

// MarkSucceeded records the result ref.
func (m *MemoryIdempotencyStore) MarkSucceeded(_ context.Context, key, resultRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return ErrExecutionNotFound
	}
	now := m.timeProvider.Now().UTC()
	rec.Status = model.ExecutionSucceeded
	rec.ResultRef = &resultRef
	rec.LastError = nil
	rec.FinishedAt = &now
	rec.ExpiresAt = now.Add(m.retention)
	return nil
}

// MarkFailed records the failure message.
func (m *MemoryIdempotencyStore) MarkFailed(_ context.Context, key, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return ErrExecutionNotFound
	}
	now := m.timeProvider.Now().UTC()
	rec.Status = model.ExecutionFailed
	rec.LastError = &errMsg
	rec.FinishedAt = &now
	return nil
}

// PurgeExpired removes finished records past retention.
func (m *MemoryIdempotencyStore) PurgeExpired(_ context.Context, batchSize int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.timeProvider.Now().UTC()
	var purged int64
	for key, rec := range m.records {
		if batchSize > 0 && purged >= int64(batchSize) {
			break
		}
		if rec.Status != model.ExecutionInProgress && rec.ExpiresAt.Before(now) {
			delete(m.records, key)
			purged++
		}
	}
	return purged, nil
}

// Get returns a copy of the record for assertions in tests.
func (m *MemoryIdempotencyStore) Get(_ context.Context, key string) (*model.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	cp := *rec
	return &cp, nil
}

// MemoryReplayCache is an in-memory core.ReplayCache.
type MemoryReplayCache struct {
	mu           sync.Mutex
	seen         map[string]time.Time
	timeProvider TimeProvider
}

// NewMemoryReplayCache creates an empty in-memory replay cache.
func NewMemoryReplayCache(tp TimeProvider) *MemoryReplayCache {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &MemoryReplayCache{seen: make(map[string]time.Time), timeProvider: tp}
}

// Claim records the event id if unseen or expired.
func (m *MemoryReplayCache) Claim(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.timeProvider.Now()
	if expiry, ok := m.seen[eventID]; ok && now.Before(expiry) {
		return false, nil
	}
	m.seen[eventID] = now.Add(ttl)
	return true, nil
}

// Ping always succeeds.
func (m *MemoryReplayCache) Ping(context.Context) error { return nil }

var (
	_ core.JobRegistry      = (*MemoryJobRegistry)(nil)
	_ core.IdempotencyStore = (*MemoryIdempotencyStore)(nil)
	_ core.ReplayCache      = (*MemoryReplayCache)(nil)
)
