package repositories

import (
	"context"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories/dbmodels"
)

func (repo ParkhausDbRepository) InsertDecision(ctx context.Context, exec Executor, sessionId string, decision models.PaymentPolicyDecision) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return errors.Wrap(err, "can't encode payment decision")
	}

	var grantId *string
	if decision.SessionGrantId != "" {
		grantId = &decision.SessionGrantId
	}

	query := NewQueryBuilder().
		Insert(dbmodels.TABLE_DECISIONS).
		Columns("id", "session_id", "action", "grant_id", "payload", "expires_at", "created_at").
		Values(decision.Id, sessionId, string(decision.Action), grantId, payload,
			decision.ExpiresAt, decision.CreatedAt)

	_, err = ExecuteQuery(ctx, exec, query)
	return err
}

// GetDecision returns the stored decision payload. Enforcement always
// consumes this, never a decision supplied by a caller.
func (repo ParkhausDbRepository) GetDecision(ctx context.Context, exec Executor, decisionId string) (models.PaymentPolicyDecision, error) {
	query := NewQueryBuilder().
		Select(dbmodels.SelectDecisionColumns...).
		From(dbmodels.TABLE_DECISIONS).
		Where(squirrel.Eq{"id": decisionId})

	return SqlToModel(ctx, exec, query, dbmodels.AdaptDecision)
}

func (repo ParkhausDbRepository) GetLatestDecisionForSession(ctx context.Context, exec Executor, sessionId string) (models.PaymentPolicyDecision, error) {
	query := NewQueryBuilder().
		Select(dbmodels.SelectDecisionColumns...).
		From(dbmodels.TABLE_DECISIONS).
		Where(squirrel.Eq{"session_id": sessionId}).
		OrderBy("created_at desc").
		Limit(1)

	return SqlToModel(ctx, exec, query, dbmodels.AdaptDecision)
}
