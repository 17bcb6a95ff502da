package dto

import (
	"time"

	"github.com/parkhaus/parkhaus-backend/models"
)

type Session struct {
	SessionId      string     `json:"session_id"`
	Plate          string     `json:"plate"`
	LotId          string     `json:"lot_id"`
	Status         string     `json:"status"`
	EntryTime      time.Time  `json:"entry_time"`
	ExitTime       *time.Time `json:"exit_time,omitempty"`
	FeeAmountMinor *string    `json:"fee_amount_minor,omitempty"`
	FeeCurrency    *string    `json:"fee_currency,omitempty"`
}

func AdaptSession(session models.Session) Session {
	return Session{
		SessionId:      session.Id,
		Plate:          session.Plate,
		LotId:          session.LotId,
		Status:         string(session.Status),
		EntryTime:      session.EntryTime,
		ExitTime:       session.ExitTime,
		FeeAmountMinor: session.FeeAmountMinor,
		FeeCurrency:    session.FeeCurrency,
	}
}

type PendingSettlement struct {
	SessionId            string    `json:"session_id"`
	Plate                string    `json:"plate"`
	LotId                string    `json:"lot_id"`
	DecisionId           string    `json:"decision_id"`
	Rail                 string    `json:"rail"`
	Asset                *Asset    `json:"asset,omitempty"`
	ExpectedAmountAtomic string    `json:"expected_amount_atomic"`
	ReceiverWallet       string    `json:"receiver_wallet"`
	CreatedAt            time.Time `json:"created_at"`
}

func AdaptPendingSettlement(pending models.PendingSettlement) PendingSettlement {
	return PendingSettlement{
		SessionId:            pending.SessionId,
		Plate:                pending.Plate,
		LotId:                pending.LotId,
		DecisionId:           pending.DecisionId,
		Rail:                 string(pending.Rail),
		Asset:                AdaptOptionalAsset(pending.Asset),
		ExpectedAmountAtomic: pending.ExpectedAmountAtomic,
		ReceiverWallet:       pending.ReceiverWallet,
		CreatedAt:            pending.CreatedAt,
	}
}
