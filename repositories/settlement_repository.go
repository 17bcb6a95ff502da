package repositories

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories/dbmodels"
)

// HasSettlementForTxHash is the replay check: a payment reference that
// already produced a verified settlement may never enforce again.
func (repo ParkhausDbRepository) HasSettlementForTxHash(ctx context.Context, exec Executor, rail models.Rail, txHash string) (bool, error) {
	query := NewQueryBuilder().
		Select("count(*)").
		From(dbmodels.TABLE_SETTLEMENTS).
		Where(squirrel.Eq{"rail": string(rail), "tx_hash": txHash})

	sql, args, err := query.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "can't build sql query")
	}

	var count int
	if err := exec.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return false, adaptPgError(err)
	}
	return count > 0, nil
}

func (repo ParkhausDbRepository) InsertSettlement(
	ctx context.Context,
	exec Executor,
	sessionId string,
	decisionId string,
	settlement models.SettlementResult,
	now time.Time,
) error {
	query := NewQueryBuilder().
		Insert(dbmodels.TABLE_SETTLEMENTS).
		Columns("id", "session_id", "decision_id", "rail", "tx_hash", "amount_atomic", "destination", "created_at").
		Values(
			uuid.NewString(),
			sessionId,
			decisionId,
			string(settlement.Rail),
			settlement.TxHash,
			settlement.AmountAtomic,
			settlement.Destination,
			now,
		)

	_, err := ExecuteQuery(ctx, exec, query)
	return err
}

// SumSettledFiatMinor totals verified spend for cumulative cap checks. The
// window start bounds the per-day sum; a zero time bounds nothing (per
// session).
func (repo ParkhausDbRepository) SumSettledFiatMinor(ctx context.Context, exec Executor, plate string, since time.Time) (string, error) {
	builder := NewQueryBuilder().
		Select("coalesce(sum(s.fee_amount_minor::numeric), 0)::text").
		From(dbmodels.TABLE_SESSIONS + " s").
		Where(squirrel.Eq{"s.plate": plate, "s.status": string(models.SessionCompleted)})
	if !since.IsZero() {
		builder = builder.Where("s.exit_time >= ?", since)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return "", errors.Wrap(err, "can't build sql query")
	}

	var total string
	if err := exec.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return "", adaptPgError(err)
	}
	return total, nil
}
