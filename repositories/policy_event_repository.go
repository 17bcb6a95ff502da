package repositories

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories/dbmodels"
)

// InsertPolicyEvent appends one immutable audit record. There is no update
// or delete counterpart on purpose.
func (repo ParkhausDbRepository) InsertPolicyEvent(ctx context.Context, exec Executor, event models.PolicyEvent) error {
	if event.Id == "" {
		event.Id = uuid.NewString()
	}

	query := NewQueryBuilder().
		Insert(dbmodels.TABLE_POLICY_EVENTS).
		Columns("id", "event_type", "session_id", "decision_id", "tx_hash", "payload", "created_at").
		Values(
			event.Id,
			string(event.EventType),
			event.SessionId,
			event.DecisionId,
			event.TxHash,
			[]byte(event.Payload),
			event.CreatedAt,
		)

	_, err := ExecuteQuery(ctx, exec, query)
	return err
}

func (repo ParkhausDbRepository) ListPolicyEventsForSession(ctx context.Context, exec Executor, sessionId string) ([]models.PolicyEvent, error) {
	query := NewQueryBuilder().
		Select(dbmodels.SelectPolicyEventColumns...).
		From(dbmodels.TABLE_POLICY_EVENTS).
		Where(squirrel.Eq{"session_id": sessionId}).
		OrderBy("created_at asc")

	return SqlToListOfModels(ctx, exec, query, dbmodels.AdaptPolicyEvent)
}
