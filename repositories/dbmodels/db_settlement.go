package dbmodels

import (
	"time"

	"github.com/parkhaus/parkhaus-backend/utils"
)

const TABLE_SETTLEMENTS = "settlements"

// One row per verified settlement. The (rail, tx_hash) pair carries a unique
// index: it is the replay-protection ground truth.
type DbSettlement struct {
	Id           string    `db:"id"`
	SessionId    string    `db:"session_id"`
	DecisionId   string    `db:"decision_id"`
	Rail         string    `db:"rail"`
	TxHash       string    `db:"tx_hash"`
	AmountAtomic string    `db:"amount_atomic"`
	Destination  string    `db:"destination"`
	CreatedAt    time.Time `db:"created_at"`
}

var SelectSettlementColumns = utils.ColumnList[DbSettlement]()
