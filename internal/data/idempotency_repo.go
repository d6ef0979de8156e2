package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/data/pgxutil"
	"github.com/yoyaba/gtm-docgen/internal/domain/model"
)

// ErrExecutionNotFound is returned when marking a dedupe key that was never begun.
var ErrExecutionNotFound = errors.New("effect execution not found")

// defaultRetention is how long finished executions are kept. It must exceed
// the provider's redelivery ceiling or a late redelivery would re-run the effect.
const defaultRetention = 72 * time.Hour

// IdempotencyConfig holds configuration options for the idempotency repo.
type IdempotencyConfig struct {
	Retention    time.Duration
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// IdempotencyRepo provides Postgres-backed effect execution guards. The
// dedupe key is the primary key; INSERT ON CONFLICT DO NOTHING decides which
// of any number of concurrent callers owns the execution.
type IdempotencyRepo struct {
	DB           *sql.DB
	retention    time.Duration
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewIdempotencyRepo creates a new IdempotencyRepo with the given database connection and configuration.
func NewIdempotencyRepo(db *sql.DB, cfg IdempotencyConfig) *IdempotencyRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	return &IdempotencyRepo{DB: db, retention: retention, timeProvider: tp, logger: cfg.Logger}
}

const executionColumns = `
  dedupe_key,
  status,
  result_ref,
  last_error,
  started_at,
  finished_at,
  expires_at
`

// Begin claims the dedupe key. Exactly one concurrent caller gets the insert
// through; everyone else reads back the record in the same transaction and is
// classified from its status. An in_progress record whose started_at is older
// than staleAfter belongs to a crashed execution and is taken over.
func (r *IdempotencyRepo) Begin(
	ctx context.Context,
	key string,
	staleAfter time.Duration,
) (*core.BeginResult, error) {
	if key == "" {
		return nil, errors.New("dedupe key is required")
	}

	now := r.timeProvider.Now().UTC()
	var result *core.BeginResult
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, `
				INSERT INTO effect_executions(dedupe_key, status, started_at, expires_at)
				VALUES ($1, 'in_progress', $2, $3)
				ON CONFLICT (dedupe_key) DO NOTHING
			`, key, now, now.Add(r.retention))
			if err != nil {
				return fmt.Errorf("claim dedupe key: %w", err)
			}

			rec, err := r.getInTx(ctx, tx, key)
			if err != nil {
				return err
			}

			if tag.RowsAffected() > 0 {
				result = &core.BeginResult{Outcome: core.BeginStarted, Record: rec}
				return nil
			}

			switch rec.Status {
			case model.ExecutionSucceeded:
				result = &core.BeginResult{Outcome: core.BeginAlreadySucceeded, Record: rec}
				return nil
			case model.ExecutionFailed:
				return r.takeOver(ctx, tx, takeOverParams{key: key, now: now, rec: rec, result: &result, outcome: core.BeginRetryAfterFailure})
			case model.ExecutionInProgress:
				if staleAfter > 0 && now.Sub(rec.StartedAt) > staleAfter {
					return r.takeOver(ctx, tx, takeOverParams{key: key, now: now, rec: rec, result: &result, outcome: core.BeginStarted})
				}
				result = &core.BeginResult{Outcome: core.BeginInProgress, Record: rec}
				return nil
			default:
				return fmt.Errorf("unexpected execution status: %s", rec.Status)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// takeOverParams groups parameters for takeOver to keep param count ≤3.
type takeOverParams struct {
	key     string
	now     time.Time
	rec     *model.IdempotencyRecord
	result  **core.BeginResult
	outcome core.BeginOutcome
}

// takeOver resets a failed or stale record back to in_progress under the
// caller's ownership. Runs inside the Begin transaction so the row is locked.
func (r *IdempotencyRepo) takeOver(ctx context.Context, tx pgx.Tx, p takeOverParams) error {
	_, err := tx.Exec(ctx, `
		UPDATE effect_executions
		SET status = 'in_progress',
		    started_at = $2,
		    finished_at = NULL,
		    expires_at = $3
		WHERE dedupe_key = $1
	`, p.key, p.now, p.now.Add(r.retention))
	if err != nil {
		return fmt.Errorf("take over execution: %w", err)
	}
	rec := *p.rec
	rec.Status = model.ExecutionInProgress
	rec.StartedAt = p.now
	rec.FinishedAt = nil
	rec.ExpiresAt = p.now.Add(r.retention)
	*p.result = &core.BeginResult{Outcome: p.outcome, Record: &rec}
	return nil
}

func (r *IdempotencyRepo) getInTx(ctx context.Context, tx pgx.Tx, key string) (*model.IdempotencyRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+executionColumns+`
		FROM effect_executions
		WHERE dedupe_key = $1
		FOR UPDATE
	`, key)
	if err != nil {
		return nil, fmt.Errorf("read execution record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return nil, rowsErr
		}
		return nil, ErrExecutionNotFound
	}
	return scanExecutionFromRow(rows)
}

// Get retrieves one execution record outside any transaction.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*model.IdempotencyRecord, error) {
	var rec *model.IdempotencyRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+executionColumns+`
			FROM effect_executions
			WHERE dedupe_key = $1
		`, key)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			if rowsErr := rows.Err(); rowsErr != nil {
				return rowsErr
			}
			return ErrExecutionNotFound
		}
		rec, err = scanExecutionFromRow(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkSucceeded records the effect result against the dedupe key. The status
// write and the result ref land in the same UPDATE, so there is no window
// where the effect is succeeded without its artifact reference.
func (r *IdempotencyRepo) MarkSucceeded(ctx context.Context, key, resultRef string) error {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE effect_executions
		SET status = 'succeeded',
		    result_ref = $2,
		    last_error = NULL,
		    finished_at = $3,
		    expires_at = $4
		WHERE dedupe_key = $1
	`, key, resultRef, now, now.Add(r.retention))
	if err != nil {
		return fmt.Errorf("mark execution succeeded: %w", err)
	}
	return requireRowAffected(res)
}

// MarkFailed records a failed execution. The record stays claimable for retry.
func (r *IdempotencyRepo) MarkFailed(ctx context.Context, key, errMsg string) error {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE effect_executions
		SET status = 'failed',
		    last_error = $2,
		    finished_at = $3
		WHERE dedupe_key = $1
	`, key, errMsg, now)
	if err != nil {
		return fmt.Errorf("mark execution failed: %w", err)
	}
	return requireRowAffected(res)
}

// PurgeExpired deletes finished executions past their retention window.
// Processes up to batchSize rows per call to prevent long locks.
func (r *IdempotencyRepo) PurgeExpired(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM effect_executions
		WHERE dedupe_key IN (
			SELECT dedupe_key FROM effect_executions
			WHERE status <> 'in_progress' AND expires_at < $1
			LIMIT $2
		)
	`, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("purge expired executions: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return ra, nil
}

func requireRowAffected(res sql.Result) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if ra == 0 {
		return ErrExecutionNotFound
	}
	return nil
}

func scanExecutionFromRow(scanner jobRowScanner) (*model.IdempotencyRecord, error) {
	rec := &model.IdempotencyRecord{}
	var (
		resultRef, lastError sql.NullString
		finishedAt           sql.NullTime
	)
	if err := scanner.Scan(
		&rec.DedupeKey,
		&rec.Status,
		&resultRef,
		&lastError,
		&rec.StartedAt,
		&finishedAt,
		&rec.ExpiresAt,
	); err != nil {
		return nil, err
	}
	rec.ResultRef = cloneNullableString(resultRef)
	rec.LastError = cloneNullableString(lastError)
	rec.FinishedAt = cloneNullableTime(finishedAt)
	return rec, nil
}

var _ core.IdempotencyStore = (*IdempotencyRepo)(nil)
