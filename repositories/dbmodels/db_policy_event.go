package dbmodels

import (
	"time"

	"github.com/guregu/null/v5"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/utils"
)

const TABLE_POLICY_EVENTS = "policy_events"

type DbPolicyEvent struct {
	Id         string      `db:"id"`
	EventType  string      `db:"event_type"`
	SessionId  string      `db:"session_id"`
	DecisionId null.String `db:"decision_id"`
	TxHash     null.String `db:"tx_hash"`
	Payload    []byte      `db:"payload"`
	CreatedAt  time.Time   `db:"created_at"`
}

var SelectPolicyEventColumns = utils.ColumnList[DbPolicyEvent]()

func AdaptPolicyEvent(db DbPolicyEvent) (models.PolicyEvent, error) {
	return models.PolicyEvent{
		Id:         db.Id,
		EventType:  models.PolicyEventType(db.EventType),
		SessionId:  db.SessionId,
		DecisionId: db.DecisionId.Ptr(),
		TxHash:     db.TxHash.Ptr(),
		Payload:    db.Payload,
		CreatedAt:  db.CreatedAt,
	}, nil
}
