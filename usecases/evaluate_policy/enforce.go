package evaluate_policy

import (
	"strings"
	"time"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

// EnforceSettlement is the single choke point between an observed payment
// and a session closure. The decision must be the stored one, looked up by
// id by the caller — never a payload supplied from outside. The function is
// pure; callers own replay protection and audit persistence.
//
// Every failure path denies. A missing or unusable decision fails closed to
// NEEDS_APPROVAL: the session-must-never-close-incorrectly invariant
// outranks availability.
func EnforceSettlement(
	decision *models.PaymentPolicyDecision,
	settlement models.SettlementResult,
	now time.Time,
) models.EnforcementResult {
	if decision == nil {
		return models.Deny(models.ReasonNeedsApproval)
	}
	if decision.Action != models.DecisionAllow {
		return models.Deny(decision.FirstReason(models.ReasonNeedsApproval))
	}
	if decision.Expired(now) {
		return models.Deny(models.ReasonNeedsApproval)
	}

	// Stale or replayed decision confusion: when the settlement states which
	// grant or policy it expects to satisfy, the decision must agree.
	if settlement.ExpectedGrantId != "" && settlement.ExpectedGrantId != decision.SessionGrantId {
		return models.Deny(models.ReasonNeedsApproval)
	}
	if settlement.ExpectedPolicyHash != "" && settlement.ExpectedPolicyHash != decision.PolicyHash {
		return models.Deny(models.ReasonNeedsApproval)
	}

	if settlement.Rail != decision.Rail {
		return models.Deny(models.ReasonRailNotAllowed)
	}

	if len(decision.Quotes) > 0 {
		return enforceAgainstQuote(decision, settlement)
	}
	return enforceAgainstCaps(decision, settlement)
}

// enforceAgainstQuote requires the settlement to hit one quote exactly: a
// quote already reflects a fixed FX-converted price, so the amount is an
// exact-amount invariant, not an upper bound.
func enforceAgainstQuote(decision *models.PaymentPolicyDecision, settlement models.SettlementResult) models.EnforcementResult {
	var quote *models.SettlementQuote
	if settlement.QuoteId != "" {
		quote = decision.QuoteById(settlement.QuoteId)
	}
	if quote == nil {
		quote = decision.QuoteFor(settlement.Rail, settlement.Asset)
	}
	if quote == nil {
		if settlement.Rail.RequiresAsset() {
			return models.Deny(models.ReasonAssetNotAllowed)
		}
		return models.Deny(models.ReasonRailNotAllowed)
	}

	cmp, err := pure_utils.CmpAmounts(settlement.AmountAtomic, quote.AmountAtomic)
	if err != nil || cmp != 0 {
		return models.Deny(models.ReasonCapExceededTx)
	}
	if settlement.Destination != "" && !strings.EqualFold(settlement.Destination, quote.Destination) {
		return models.Deny(models.ReasonReceiverMismatch)
	}
	return models.Allow()
}

// enforceAgainstCaps is the quote-less path: asset must match the decision's
// (skipped for fiat rails) and the amount may not exceed the per-transaction
// cap.
func enforceAgainstCaps(decision *models.PaymentPolicyDecision, settlement models.SettlementResult) models.EnforcementResult {
	if decision.Rail.RequiresAsset() {
		if settlement.Asset == nil || decision.Asset == nil || !settlement.Asset.Equal(*decision.Asset) {
			return models.Deny(models.ReasonAssetNotAllowed)
		}
	}
	if decision.Caps.PerTx != "" {
		cmp, err := pure_utils.CmpAmounts(settlement.AmountAtomic, decision.Caps.PerTx)
		if err != nil || cmp > 0 {
			return models.Deny(models.ReasonCapExceededTx)
		}
	}
	return models.Allow()
}
