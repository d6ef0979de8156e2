// Package data provides Postgres and Redis backed implementations of the
// core ports, plus in-memory doubles for tests.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/data/pgxutil"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
)

// ErrDuplicateHandle is returned when a job handle is registered twice.
var ErrDuplicateHandle = errors.New("job handle already registered")

// RegistryConfig holds configuration options for the job registry.
type RegistryConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRegistry provides Postgres-backed storage for research job records.
// State transitions are conditional updates so concurrent deliveries and the
// expiry sweeper can race safely; exactly one writer observes rows-affected=1.
type JobRegistry struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRegistry creates a new JobRegistry with the given database connection and configuration.
func NewJobRegistry(db *sql.DB, cfg RegistryConfig) *JobRegistry {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &JobRegistry{DB: db, timeProvider: tp, logger: cfg.Logger}
}

const jobColumns = `
  job_handle,
  company_id,
  company_name,
  stage_ts,
  enrichment,
  state,
  result_ref,
  failure_reason,
  input_tokens,
  output_tokens,
  created_at,
  last_transition_at
`

// Create registers a newly submitted job. The provider handle is the primary
// key, so a duplicate submission surfaces as ErrDuplicateHandle.
func (r *JobRegistry) Create(ctx context.Context, job *model.ResearchJob) error {
	if job == nil {
		return errors.New("research job is required")
	}
	if job.Handle == "" {
		return errors.New("job handle is required")
	}
	if !job.State.Valid() {
		return fmt.Errorf("invalid job state: %s", job.State)
	}

	enrichment := job.Context.Enrichment
	if len(enrichment) == 0 {
		enrichment = json.RawMessage(`{}`)
	}

	now := r.timeProvider.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO research_jobs(
			job_handle, company_id, company_name, stage_ts, enrichment,
			state, input_tokens, created_at, last_transition_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`,
		job.Handle,
		job.Context.CompanyID,
		job.Context.CompanyName,
		job.Context.StageTS.UTC(),
		[]byte(enrichment),
		job.State,
		job.InputTokens,
		now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateHandle
		}
		return fmt.Errorf("insert research job: %w", err)
	}

	job.CreatedAt = now
	job.LastTransitionAt = now
	return nil
}

// GetByHandle retrieves a job by its provider handle.
func (r *JobRegistry) GetByHandle(ctx context.Context, handle string) (*model.ResearchJob, error) {
	var job *model.ResearchJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM research_jobs
			WHERE job_handle = $1
		`, handle)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get research job: %w", err)
	}
	return job, nil
}

// Transition moves a job out of submitted into the requested state. The WHERE
// clause is the entire concurrency story: only a job still in submitted
// matches, so the loser of any race gets rows-affected=0 and no error.
func (r *JobRegistry) Transition(ctx context.Context, params core.TransitionParams) (bool, error) {
	if !params.To.Valid() || !params.To.Terminal() {
		return false, fmt.Errorf("invalid transition target: %s", params.To)
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE research_jobs
		SET state = $2,
		    result_ref = $3,
		    failure_reason = $4,
		    output_tokens = COALESCE($5, output_tokens),
		    last_transition_at = $6
		WHERE job_handle = $1 AND state = 'submitted'
	`, params.Handle, params.To, params.ResultRef, params.FailureReason, params.OutputTokens, now)
	if err != nil {
		return false, fmt.Errorf("transition research job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// RecordResult attaches the artifact reference to a completed job.
func (r *JobRegistry) RecordResult(ctx context.Context, handle, resultRef string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE research_jobs
		SET result_ref = $2
		WHERE job_handle = $1 AND state = 'completed'
	`, handle, resultRef)
	if err != nil {
		return fmt.Errorf("record job result: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record result rows affected: %w", err)
	}
	if ra == 0 {
		return model.ErrJobNotFound
	}
	return nil
}

// Advisory lock namespace for the expiry sweep so concurrent sweepers skip
// instead of contending.
const (
	advisoryLockSweepMajor int64 = 2001
	advisoryLockSweepMinor int64 = 1
)

// ExpireStale marks submitted jobs older than the horizon as expired.
// Runs under an advisory lock; a second sweeper observes locked=false and
// returns 0 without touching anything.
func (r *JobRegistry) ExpireStale(ctx context.Context, params core.ExpireStaleParams) (int64, error) {
	if params.Horizon <= 0 {
		return 0, errors.New("expiry horizon must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = 100
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx,
				"SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)",
				advisoryLockSweepMajor, advisoryLockSweepMinor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now().UTC()
			cutoff := currentTime.Add(-params.Horizon)
			res, err := tx.ExecContext(ctx, `
				UPDATE research_jobs
				SET state = 'expired',
				    failure_reason = 'no completion webhook within validity horizon',
				    last_transition_at = $1
				WHERE job_handle IN (
					SELECT job_handle FROM research_jobs
					WHERE state = 'submitted' AND created_at < $2
					ORDER BY created_at ASC
					LIMIT $3
					FOR UPDATE SKIP LOCKED
				)
			`, currentTime, cutoff, batch)
			if err != nil {
				return fmt.Errorf("expire stale jobs: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// Stats returns counts of jobs in each lifecycle state.
func (r *JobRegistry) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE state = 'submitted') AS submitted,
    count(*) FILTER (WHERE state = 'completed') AS completed,
    count(*) FILTER (WHERE state = 'failed')    AS failed,
    count(*) FILTER (WHERE state = 'expired')   AS expired
  FROM research_jobs
  `).Scan(
		&s.Submitted,
		&s.Completed,
		&s.Failed,
		&s.Expired,
	)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return &s, nil
}

// collectJobFromRows collects a single job from pgx rows.
func collectJobFromRows(rows pgx.Rows) (*model.ResearchJob, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

func scanJobFromRow(scanner jobRowScanner) (*model.ResearchJob, error) {
	job := &model.ResearchJob{}
	var (
		enrichment               []byte
		resultRef, failureReason sql.NullString
		outputTokens             sql.NullInt64
	)
	if err := scanner.Scan(
		&job.Handle,
		&job.Context.CompanyID,
		&job.Context.CompanyName,
		&job.Context.StageTS,
		&enrichment,
		&job.State,
		&resultRef,
		&failureReason,
		&job.InputTokens,
		&outputTokens,
		&job.CreatedAt,
		&job.LastTransitionAt,
	); err != nil {
		return nil, err
	}

	job.Context.Enrichment = cloneJSON(enrichment)
	job.ResultRef = cloneNullableString(resultRef)
	job.FailureReason = cloneNullableString(failureReason)
	if outputTokens.Valid {
		n := int(outputTokens.Int64)
		job.OutputTokens = &n
	}
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

var _ core.JobRegistry = (*JobRegistry)(nil)
