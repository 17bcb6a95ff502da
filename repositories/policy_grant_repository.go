package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories/dbmodels"
)

func (repo ParkhausDbRepository) InsertPolicyGrant(ctx context.Context, exec Executor, sessionId string, grant models.SessionPolicyGrant) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return errors.Wrap(err, "can't encode policy grant")
	}

	query := NewQueryBuilder().
		Insert(dbmodels.TABLE_POLICY_GRANTS).
		Columns("id", "session_id", "payload", "expires_at", "created_at").
		Values(grant.Id, sessionId, payload, grant.ExpiresAt, grant.CreatedAt)

	_, err = ExecuteQuery(ctx, exec, query)
	return err
}

func (repo ParkhausDbRepository) GetPolicyGrant(ctx context.Context, exec Executor, grantId string) (models.SessionPolicyGrant, error) {
	query := NewQueryBuilder().
		Select(dbmodels.SelectPolicyGrantColumns...).
		From(dbmodels.TABLE_POLICY_GRANTS).
		Where(squirrel.Eq{"id": grantId})

	return SqlToModel(ctx, exec, query, dbmodels.AdaptPolicyGrant)
}

func (repo ParkhausDbRepository) GetPolicyGrantExpiresAt(ctx context.Context, exec Executor, grantId string) (time.Time, error) {
	query := NewQueryBuilder().
		Select("expires_at").
		From(dbmodels.TABLE_POLICY_GRANTS).
		Where(squirrel.Eq{"id": grantId})

	sql, args, err := query.ToSql()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "can't build sql query")
	}

	var expiresAt time.Time
	err = exec.QueryRow(ctx, sql, args...).Scan(&expiresAt)
	if err != nil {
		return time.Time{}, adaptPgError(err)
	}
	return expiresAt, nil
}
