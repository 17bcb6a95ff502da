package evaluate_policy

import (
	"math/big"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

// PaymentContext is the pricing situation at exit.
type PaymentContext struct {
	LotId      string
	OperatorId string
	// PriceFiatMinor is the computed fee, in minor units of FiatCurrency.
	PriceFiatMinor string
	FiatCurrency   string
	// Cumulative spend before this payment, fiat minor units.
	SpentSessionMinor string
	SpentDayMinor     string
	// Rails and assets actually offered for settlement right now.
	OfferedRails  []models.Rail
	OfferedAssets []models.Asset
	RiskScore     int
	// SessionGrantId binds the decision to the session's grant, when one is
	// still valid.
	SessionGrantId string
}

// EvaluatePayment computes a bounded payment decision for one settlement
// attempt. Each check is an immediate terminal outcome; all monetary
// comparisons run on arbitrary-precision integers so cap boundaries cannot
// be gamed by rounding.
func EvaluatePayment(policy models.EffectivePolicy, p PaymentContext, now time.Time) (models.PaymentPolicyDecision, error) {
	policyHash := pure_utils.ContentHash(struct {
		Policy models.EffectivePolicy
		Lot    string
		Price  string
	}{policy, p.LotId, p.PriceFiatMinor})

	price, err := pure_utils.ParseAmount(p.PriceFiatMinor)
	if err != nil {
		return models.PaymentPolicyDecision{}, errors.Wrap(err, "invalid price")
	}
	spentSession, err := parseAmountOrZero(p.SpentSessionMinor)
	if err != nil {
		return models.PaymentPolicyDecision{}, errors.Wrap(err, "invalid session spend")
	}
	spentDay, err := parseAmountOrZero(p.SpentDayMinor)
	if err != nil {
		return models.PaymentPolicyDecision{}, errors.Wrap(err, "invalid day spend")
	}

	terminal := func(action models.DecisionAction, reasons ...models.PolicyReason) models.PaymentPolicyDecision {
		return models.PaymentPolicyDecision{
			Id:             uuid.NewString(),
			Action:         action,
			PriceFiatMinor: p.PriceFiatMinor,
			FiatCurrency:   p.FiatCurrency,
			Caps:           policy.Caps,
			SessionGrantId: p.SessionGrantId,
			PolicyHash:     policyHash,
			Reasons:        reasons,
			CreatedAt:      now,
			ExpiresAt:      now.Add(models.DecisionValidity),
		}
	}

	if policy.AllowedOperators != nil && !slices.Contains(policy.AllowedOperators, p.OperatorId) {
		return terminal(models.DecisionDeny, models.ReasonOperatorNotAllowed), nil
	}
	if policy.AllowedLots != nil && !slices.Contains(policy.AllowedLots, p.LotId) {
		return terminal(models.DecisionDeny, models.ReasonLotNotAllowed), nil
	}

	if exceeded, err := capExceeded(policy.Caps.PerTx, price); err != nil {
		return models.PaymentPolicyDecision{}, err
	} else if exceeded {
		return terminal(models.DecisionDeny, models.ReasonCapExceededTx), nil
	}
	if exceeded, err := capExceeded(policy.Caps.PerSession, new(big.Int).Add(spentSession, price)); err != nil {
		return models.PaymentPolicyDecision{}, err
	} else if exceeded {
		return terminal(models.DecisionDeny, models.ReasonCapExceededSession), nil
	}
	if exceeded, err := capExceeded(policy.Caps.PerDay, new(big.Int).Add(spentDay, price)); err != nil {
		return models.PaymentPolicyDecision{}, err
	} else if exceeded {
		return terminal(models.DecisionDeny, models.ReasonCapExceededDay), nil
	}

	if overThreshold, err := capExceeded(policy.RequireApprovalAboveMinor, price); err != nil {
		return models.PaymentPolicyDecision{}, err
	} else if overThreshold {
		return terminal(models.DecisionRequireApproval, models.ReasonPriceSpike, models.ReasonNeedsApproval), nil
	}
	if p.RiskScore >= HighRiskScore {
		return terminal(models.DecisionRequireApproval, models.ReasonRiskHigh, models.ReasonNeedsApproval), nil
	}

	rail, found := firstAllowedRail(policy.AllowedRails, p.OfferedRails)
	if !found {
		return terminal(models.DecisionDeny, models.ReasonRailNotAllowed), nil
	}

	var asset *models.Asset
	if rail.RequiresAsset() {
		chosen, found := firstAllowedAsset(policy.AllowedAssets, p.OfferedAssets)
		if !found {
			return terminal(models.DecisionDeny, models.ReasonAssetNotAllowed), nil
		}
		asset = &chosen
	}

	decision := terminal(models.DecisionAllow)
	decision.Rail = rail
	decision.Asset = asset
	decision.PolicyHash = pure_utils.ContentHash(struct {
		Policy models.EffectivePolicy
		Lot    string
		Price  string
		Rail   models.Rail
		Asset  *models.Asset
	}{policy, p.LotId, p.PriceFiatMinor, rail, asset})
	return decision, nil
}

func parseAmountOrZero(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	return pure_utils.ParseAmount(s)
}

// capExceeded reports whether value is over the cap. An unset cap never
// triggers; a value exactly at the cap is allowed.
func capExceeded(limit string, value *big.Int) (bool, error) {
	if limit == "" {
		return false, nil
	}
	capValue, err := pure_utils.ParseAmount(limit)
	if err != nil {
		return false, errors.Wrap(err, "invalid cap in policy")
	}
	return value.Cmp(capValue) > 0, nil
}

// firstAllowedRail picks the first offered rail that policy allows. A nil
// policy list allows every offered rail.
func firstAllowedRail(allowed, offered []models.Rail) (models.Rail, bool) {
	for _, rail := range offered {
		if allowed == nil || slices.Contains(allowed, rail) {
			return rail, true
		}
	}
	return "", false
}

func firstAllowedAsset(allowed, offered []models.Asset) (models.Asset, bool) {
	for _, asset := range offered {
		if allowed == nil || models.AssetIn(asset, allowed) {
			return asset, true
		}
	}
	return models.Asset{}, false
}
