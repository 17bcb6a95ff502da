package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories/dbmodels"
)

func (repo ParkhausDbRepository) GetActiveSession(ctx context.Context, exec Executor, plate, lotId string) (models.Session, error) {
	query := NewQueryBuilder().
		Select(dbmodels.SelectSessionColumns...).
		From(dbmodels.TABLE_SESSIONS).
		Where(squirrel.Eq{
			"plate":  plate,
			"lot_id": lotId,
			"status": string(models.SessionActive),
		}).
		OrderBy("entry_time desc").
		Limit(1)

	return SqlToModel(ctx, exec, query, dbmodels.AdaptSession)
}

// GetActiveSessionByPlate is the operator-facing lookup: the newest active
// session for a plate across all lots.
func (repo ParkhausDbRepository) GetActiveSessionByPlate(ctx context.Context, exec Executor, plate string) (models.Session, error) {
	query := NewQueryBuilder().
		Select(dbmodels.SelectSessionColumns...).
		From(dbmodels.TABLE_SESSIONS).
		Where(squirrel.Eq{
			"plate":  plate,
			"status": string(models.SessionActive),
		}).
		OrderBy("entry_time desc").
		Limit(1)

	return SqlToModel(ctx, exec, query, dbmodels.AdaptSession)
}

func (repo ParkhausDbRepository) GetSessionById(ctx context.Context, exec Executor, sessionId string) (models.Session, error) {
	query := NewQueryBuilder().
		Select(dbmodels.SelectSessionColumns...).
		From(dbmodels.TABLE_SESSIONS).
		Where(squirrel.Eq{"id": sessionId})

	return SqlToModel(ctx, exec, query, dbmodels.AdaptSession)
}

func (repo ParkhausDbRepository) CountActiveSessions(ctx context.Context, exec Executor, lotId string) (int, error) {
	query := NewQueryBuilder().
		Select("count(*)").
		From(dbmodels.TABLE_SESSIONS).
		Where(squirrel.Eq{"lot_id": lotId, "status": string(models.SessionActive)})

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "can't build sql query")
	}

	var count int
	if err := exec.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, adaptPgError(err)
	}
	return count, nil
}

func (repo ParkhausDbRepository) CreateSession(ctx context.Context, exec Executor, session models.Session) error {
	query := NewQueryBuilder().
		Insert(dbmodels.TABLE_SESSIONS).
		Columns("id", "plate", "lot_id", "status", "entry_time", "policy_grant_id", "policy_hash").
		Values(
			session.Id,
			session.Plate,
			session.LotId,
			string(session.Status),
			session.EntryTime,
			session.PolicyGrantId,
			session.PolicyHash,
		)

	_, err := ExecuteQuery(ctx, exec, query)
	return err
}

// EndSession closes a session with a conditional update on status: only one
// caller can observe 'active' and win the transition, which is what makes
// closure race-safe and exactly-once.
func (repo ParkhausDbRepository) EndSession(ctx context.Context, exec Executor, sessionId string, close models.SessionClose) error {
	query := NewQueryBuilder().
		Update(dbmodels.TABLE_SESSIONS).
		Set("status", string(models.SessionCompleted)).
		Set("exit_time", close.ExitTime).
		Set("fee_amount_minor", close.FeeAmountMinor).
		Set("fee_currency", close.FeeCurrency).
		Where(squirrel.Eq{
			"id":     sessionId,
			"status": string(models.SessionActive),
		})

	affected, err := ExecuteQuery(ctx, exec, query)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.WithStack(models.ErrSessionAlreadyClosed)
	}
	return nil
}
