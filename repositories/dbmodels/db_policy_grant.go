package dbmodels

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/utils"
)

const TABLE_POLICY_GRANTS = "policy_grants"

// The grant's allowed sets and caps are stored as one JSON payload: the
// grant is read-only after creation and always consumed whole.
type DbPolicyGrant struct {
	Id        string    `db:"id"`
	SessionId string    `db:"session_id"`
	Payload   []byte    `db:"payload"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

var SelectPolicyGrantColumns = utils.ColumnList[DbPolicyGrant]()

func AdaptPolicyGrant(db DbPolicyGrant) (models.SessionPolicyGrant, error) {
	var grant models.SessionPolicyGrant
	if err := json.Unmarshal(db.Payload, &grant); err != nil {
		return models.SessionPolicyGrant{}, errors.Wrapf(err, "can't decode policy grant %s", db.Id)
	}
	return grant, nil
}
