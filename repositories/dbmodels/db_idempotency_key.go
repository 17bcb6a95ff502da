package dbmodels

import (
	"time"

	"github.com/guregu/null/v5"

	"github.com/parkhaus/parkhaus-backend/utils"
)

const TABLE_IDEMPOTENCY_KEYS = "idempotency_keys"

type DbIdempotencyKey struct {
	Endpoint    string      `db:"endpoint"`
	Key         string      `db:"key"`
	RequestHash string      `db:"request_hash"`
	Completed   bool        `db:"completed"`
	Status      null.Int    `db:"status"`
	Response    []byte      `db:"response"`
	CreatedAt   time.Time   `db:"created_at"`
	CompletedAt null.Time   `db:"completed_at"`
}

var SelectIdempotencyKeyColumns = utils.ColumnList[DbIdempotencyKey]()
