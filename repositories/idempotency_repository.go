package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories/dbmodels"
)

// BeginIdempotentRequest claims an (endpoint, key) pair for this execution.
// The insert is the claim: a unique violation means someone got there first,
// and the stored row decides whether that is a replay, a still-running
// execution, or a key reused with a different body.
func (repo ParkhausDbRepository) BeginIdempotentRequest(
	ctx context.Context,
	exec Executor,
	endpoint, key, requestHash string,
	now time.Time,
) (models.IdempotencyCheck, error) {
	insert := NewQueryBuilder().
		Insert(dbmodels.TABLE_IDEMPOTENCY_KEYS).
		Columns("endpoint", "key", "request_hash", "completed", "created_at").
		Values(endpoint, key, requestHash, false, now)

	_, err := ExecuteQuery(ctx, exec, insert)
	if err == nil {
		return models.IdempotencyCheck{State: models.IdempotencyStarted}, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return models.IdempotencyCheck{}, err
	}

	query := NewQueryBuilder().
		Select(dbmodels.SelectIdempotencyKeyColumns...).
		From(dbmodels.TABLE_IDEMPOTENCY_KEYS).
		Where(squirrel.Eq{"endpoint": endpoint, "key": key})

	sql, args, err := query.ToSql()
	if err != nil {
		return models.IdempotencyCheck{}, errors.Wrap(err, "can't build sql query")
	}

	var row dbmodels.DbIdempotencyKey
	err = exec.QueryRow(ctx, sql, args...).Scan(
		&row.Endpoint, &row.Key, &row.RequestHash, &row.Completed,
		&row.Status, &row.Response, &row.CreatedAt, &row.CompletedAt,
	)
	if err != nil {
		return models.IdempotencyCheck{}, adaptPgError(err)
	}

	if row.RequestHash != requestHash {
		return models.IdempotencyCheck{State: models.IdempotencyConflict}, nil
	}
	if !row.Completed {
		return models.IdempotencyCheck{State: models.IdempotencyInProgress}, nil
	}
	return models.IdempotencyCheck{
		State:          models.IdempotencyReplay,
		StoredStatus:   int(row.Status.Int64),
		StoredResponse: json.RawMessage(row.Response),
	}, nil
}

// CompleteIdempotentRequest stores the final status and body so that later
// retries replay them byte-identical.
func (repo ParkhausDbRepository) CompleteIdempotentRequest(
	ctx context.Context,
	exec Executor,
	endpoint, key string,
	status int,
	response json.RawMessage,
	now time.Time,
) error {
	query := NewQueryBuilder().
		Update(dbmodels.TABLE_IDEMPOTENCY_KEYS).
		Set("completed", true).
		Set("status", status).
		Set("response", []byte(response)).
		Set("completed_at", now).
		Where(squirrel.Eq{"endpoint": endpoint, "key": key})

	affected, err := ExecuteQuery(ctx, exec, query)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Newf("idempotency key %s/%s vanished before completion", endpoint, key)
	}
	return nil
}

// ReleaseIdempotentRequest frees a claimed key after a failed execution so a
// retry can run instead of seeing in_progress forever.
func (repo ParkhausDbRepository) ReleaseIdempotentRequest(ctx context.Context, exec Executor, endpoint, key string) error {
	query := NewQueryBuilder().
		Delete(dbmodels.TABLE_IDEMPOTENCY_KEYS).
		Where(squirrel.Eq{"endpoint": endpoint, "key": key, "completed": false})

	_, err := ExecuteQuery(ctx, exec, query)
	return err
}
