package dbmodels

import (
	"time"

	"github.com/guregu/null/v5"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/utils"
)

const TABLE_SESSIONS = "sessions"

type DbSession struct {
	Id             string      `db:"id"`
	Plate          string      `db:"plate"`
	LotId          string      `db:"lot_id"`
	Status         string      `db:"status"`
	EntryTime      time.Time   `db:"entry_time"`
	ExitTime       null.Time   `db:"exit_time"`
	FeeAmountMinor null.String `db:"fee_amount_minor"`
	FeeCurrency    null.String `db:"fee_currency"`
	PolicyGrantId  null.String `db:"policy_grant_id"`
	PolicyHash     null.String `db:"policy_hash"`
}

var SelectSessionColumns = utils.ColumnList[DbSession]()

func AdaptSession(db DbSession) (models.Session, error) {
	return models.Session{
		Id:             db.Id,
		Plate:          db.Plate,
		LotId:          db.LotId,
		Status:         models.SessionStatus(db.Status),
		EntryTime:      db.EntryTime,
		ExitTime:       db.ExitTime.Ptr(),
		FeeAmountMinor: db.FeeAmountMinor.Ptr(),
		FeeCurrency:    db.FeeCurrency.Ptr(),
		PolicyGrantId:  db.PolicyGrantId.Ptr(),
		PolicyHash:     db.PolicyHash.Ptr(),
	}, nil
}
