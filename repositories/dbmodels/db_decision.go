package dbmodels

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/utils"
)

const TABLE_DECISIONS = "payment_decisions"

type DbDecision struct {
	Id        string      `db:"id"`
	SessionId string      `db:"session_id"`
	Action    string      `db:"action"`
	GrantId   null.String `db:"grant_id"`
	Payload   []byte      `db:"payload"`
	ExpiresAt time.Time   `db:"expires_at"`
	CreatedAt time.Time   `db:"created_at"`
}

var SelectDecisionColumns = utils.ColumnList[DbDecision]()

func AdaptDecision(db DbDecision) (models.PaymentPolicyDecision, error) {
	var decision models.PaymentPolicyDecision
	if err := json.Unmarshal(db.Payload, &decision); err != nil {
		return models.PaymentPolicyDecision{}, errors.Wrapf(err, "can't decode payment decision %s", db.Id)
	}
	return decision, nil
}
