package repositories

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
)

// SettlementVerifier resolves a caller-supplied payment reference into the
// facts observed on one rail: delivered amount, destination, payer. It
// reports facts only; matching them against a decision is enforcement's job.
type SettlementVerifier interface {
	Rail() models.Rail
	VerifySettlement(ctx context.Context, reference string) (models.SettlementResult, error)
}

// RailVerifiers dispatches settlement proofs to the verifier of their rail.
type RailVerifiers struct {
	byRail map[models.Rail]SettlementVerifier
}

func NewRailVerifiers(verifiers ...SettlementVerifier) RailVerifiers {
	byRail := make(map[models.Rail]SettlementVerifier, len(verifiers))
	for _, v := range verifiers {
		byRail[v.Rail()] = v
	}
	return RailVerifiers{byRail: byRail}
}

func (r RailVerifiers) For(rail models.Rail) (SettlementVerifier, error) {
	verifier, ok := r.byRail[rail]
	if !ok {
		return nil, errors.Wrapf(models.ErrNoVerifierForRail, "rail %s", rail)
	}
	return verifier, nil
}
