package evaluate_policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaus/parkhaus-backend/models"
)

func paymentCtx(priceMinor string) PaymentContext {
	return PaymentContext{
		LotId:          "lot-1",
		OperatorId:     "op-1",
		PriceFiatMinor: priceMinor,
		FiatCurrency:   "USD",
		OfferedRails:   []models.Rail{models.RailXrplXrp, models.RailCard},
		OfferedAssets:  []models.Asset{testXrp},
		SessionGrantId: "grant-1",
	}
}

func TestEvaluatePayment_Allow(t *testing.T) {
	now := time.Now()
	policy := models.EffectivePolicy{Caps: models.FiatCaps{PerTx: "5000"}}

	decision, err := EvaluatePayment(policy, paymentCtx("1000"), now)

	require.NoError(t, err)
	assert.Equal(t, models.DecisionAllow, decision.Action)
	assert.Equal(t, models.RailXrplXrp, decision.Rail)
	require.NotNil(t, decision.Asset)
	assert.True(t, decision.Asset.Equal(testXrp))
	assert.Equal(t, "grant-1", decision.SessionGrantId)
	assert.Equal(t, now.Add(models.DecisionValidity), decision.ExpiresAt)
	assert.NotEmpty(t, decision.Id)
	assert.NotEmpty(t, decision.PolicyHash)
}

func TestEvaluatePayment_CapChecksAreExactAtBoundary(t *testing.T) {
	policy := models.EffectivePolicy{Caps: models.FiatCaps{PerTx: "1000"}}

	atCap, err := EvaluatePayment(policy, paymentCtx("1000"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAllow, atCap.Action)

	overCap, err := EvaluatePayment(policy, paymentCtx("1001"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.DecisionDeny, overCap.Action)
	assert.Equal(t, []models.PolicyReason{models.ReasonCapExceededTx}, overCap.Reasons)
}

func TestEvaluatePayment_TerminalOutcomesInOrder(t *testing.T) {
	overSession := paymentCtx("600")
	overSession.SpentSessionMinor = "500"

	overDay := paymentCtx("600")
	overDay.SpentDayMinor = "9500"

	risky := paymentCtx("100")
	risky.RiskScore = 90

	noAsset := paymentCtx("100")
	noAsset.OfferedRails = []models.Rail{models.RailEvmToken}
	noAsset.OfferedAssets = []models.Asset{testXrp}

	tests := []struct {
		name    string
		policy  models.EffectivePolicy
		ctx     PaymentContext
		action  models.DecisionAction
		reasons []models.PolicyReason
	}{
		{
			name:    "lot not allowed",
			policy:  models.EffectivePolicy{AllowedLots: []string{"lot-9"}},
			ctx:     paymentCtx("100"),
			action:  models.DecisionDeny,
			reasons: []models.PolicyReason{models.ReasonLotNotAllowed},
		},
		{
			name:    "session cap cumulative",
			policy:  models.EffectivePolicy{Caps: models.FiatCaps{PerSession: "1000"}},
			ctx:     overSession,
			action:  models.DecisionDeny,
			reasons: []models.PolicyReason{models.ReasonCapExceededSession},
		},
		{
			name:    "day cap cumulative",
			policy:  models.EffectivePolicy{Caps: models.FiatCaps{PerDay: "10000"}},
			ctx:     overDay,
			action:  models.DecisionDeny,
			reasons: []models.PolicyReason{models.ReasonCapExceededDay},
		},
		{
			name:    "price spike needs approval",
			policy:  models.EffectivePolicy{RequireApprovalAboveMinor: "50"},
			ctx:     paymentCtx("100"),
			action:  models.DecisionRequireApproval,
			reasons: []models.PolicyReason{models.ReasonPriceSpike, models.ReasonNeedsApproval},
		},
		{
			name:    "high risk needs approval",
			policy:  models.EffectivePolicy{},
			ctx:     risky,
			action:  models.DecisionRequireApproval,
			reasons: []models.PolicyReason{models.ReasonRiskHigh, models.ReasonNeedsApproval},
		},
		{
			name:    "no offered rail allowed",
			policy:  models.EffectivePolicy{AllowedRails: []models.Rail{models.RailXrplIou}},
			ctx:     paymentCtx("100"),
			action:  models.DecisionDeny,
			reasons: []models.PolicyReason{models.ReasonRailNotAllowed},
		},
		{
			name:    "crypto rail without usable asset",
			policy:  models.EffectivePolicy{AllowedAssets: []models.Asset{testUsdc}},
			ctx:     noAsset,
			action:  models.DecisionDeny,
			reasons: []models.PolicyReason{models.ReasonAssetNotAllowed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := EvaluatePayment(tt.policy, tt.ctx, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.action, decision.Action)
			assert.Equal(t, tt.reasons, decision.Reasons)
		})
	}
}

func TestEvaluatePayment_CardRailNeedsNoAsset(t *testing.T) {
	ctx := paymentCtx("100")
	ctx.OfferedRails = []models.Rail{models.RailCard}
	ctx.OfferedAssets = nil

	decision, err := EvaluatePayment(models.EffectivePolicy{}, ctx, time.Now())

	require.NoError(t, err)
	assert.Equal(t, models.DecisionAllow, decision.Action)
	assert.Equal(t, models.RailCard, decision.Rail)
	assert.Nil(t, decision.Asset)
}

func TestEvaluatePayment_PicksFirstOfferedAllowedRail(t *testing.T) {
	ctx := paymentCtx("100")
	ctx.OfferedRails = []models.Rail{models.RailCard, models.RailXrplXrp}

	decision, err := EvaluatePayment(models.EffectivePolicy{}, ctx, time.Now())

	require.NoError(t, err)
	assert.Equal(t, models.RailCard, decision.Rail)
}

func TestEvaluatePayment_RejectsMalformedPrice(t *testing.T) {
	_, err := EvaluatePayment(models.EffectivePolicy{}, paymentCtx("12.50"), time.Now())
	assert.Error(t, err)
}

func TestEvaluatePayment_NoFloatDriftOnLargeAmounts(t *testing.T) {
	// amounts beyond float64's 53-bit integer range still compare exactly
	policy := models.EffectivePolicy{Caps: models.FiatCaps{PerTx: "9007199254740993"}}

	atCap, err := EvaluatePayment(policy, paymentCtx("9007199254740993"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.DecisionAllow, atCap.Action)

	overCap, err := EvaluatePayment(policy, paymentCtx("9007199254740994"), time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.DecisionDeny, overCap.Action)
}
