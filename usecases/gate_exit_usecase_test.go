package usecases

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkhaus/parkhaus-backend/dto"
	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
	"github.com/parkhaus/parkhaus-backend/repositories"
	"github.com/parkhaus/parkhaus-backend/usecases/pricing"
	"github.com/parkhaus/parkhaus-backend/usecases/settlement_watcher"
)

var testXrpAsset = models.Asset{Kind: models.AssetKindXrp, Code: "XRP", Decimals: 6}

func testLot() models.Lot {
	return models.Lot{
		Id:         "lot-1",
		Name:       "Hauptbahnhof P1",
		OperatorId: "op-1",
		Capacity:   50,
		Pricing: models.LotPricing{
			Currency:         "USD",
			HourlyRateMinor:  800,
			IncrementMinutes: 15,
		},
		OfferedRails:  []models.Rail{models.RailXrplXrp, models.RailCard},
		OfferedAssets: []models.Asset{testXrpAsset},
		Destinations: map[models.Rail]string{
			models.RailXrplXrp: "rLotDestination123",
			models.RailCard:    "acct_lot1",
		},
	}
}

func testGrant(expiresAt time.Time) models.SessionPolicyGrant {
	return models.SessionPolicyGrant{
		Id:            uuid.NewString(),
		PolicyHash:    "policy-hash-1",
		AllowedRails:  []models.Rail{models.RailXrplXrp, models.RailCard},
		AllowedAssets: []models.Asset{testXrpAsset},
		CreatedAt:     expiresAt.Add(-models.GrantValidity),
		ExpiresAt:     expiresAt,
	}
}

func seedActiveSession(store *fakeStore, lot models.Lot, entryTime time.Time, grant models.SessionPolicyGrant) models.Session {
	session := models.Session{
		Id:            uuid.NewString(),
		Plate:         "AB-123-CD",
		LotId:         lot.Id,
		Status:        models.SessionActive,
		EntryTime:     entryTime,
		PolicyGrantId: &grant.Id,
		PolicyHash:    &grant.PolicyHash,
	}
	store.sessions[session.Id] = session
	store.grants[grant.Id] = grant
	return session
}

func newTestExitUsecase(store *fakeStore, lot models.Lot) (GateExitUsecase, *settlement_watcher.PendingRegistry) {
	registry := settlement_watcher.NewPendingRegistry(time.Hour)
	metrics := NewMetrics(nil)
	settlements := SettlementUsecase{
		executorFactory:    fakeExecutorFactory{},
		transactionFactory: fakeExecutorFactory{},
		store:              store,
		pending:            registry,
		metrics:            metrics,
	}
	uc := GateExitUsecase{
		executorFactory:    fakeExecutorFactory{},
		transactionFactory: fakeExecutorFactory{},
		store:              store,
		lots:               fakeLotCatalog{lots: map[string]models.Lot{lot.Id: lot}},
		converter: pricing.NewStaticConverter([]pricing.AssetRate{
			{AssetCode: "XRP", FiatCurrency: "USD", UnitPriceMinor: 200},
		}),
		entryLedger: fakeEntryLedger{},
		pending:     registry,
		settlements: &settlements,
		metrics:     metrics,
	}
	return uc, registry
}

func TestCloseOrPrice_PricesTheStay(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-61*time.Minute), testGrant(time.Now().Add(30*time.Minute)))
	uc, registry := newTestExitUsecase(store, lot)

	result, err := uc.CloseOrPrice(context.Background(), GateExitInput{
		Plate: session.Plate, LotId: lot.Id,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)

	var priced dto.GateExitPricedResponse
	require.NoError(t, json.Unmarshal(result.Body, &priced))
	assert.Equal(t, "payment_required", priced.Status)
	assert.Equal(t, session.Id, priced.SessionId)
	assert.Equal(t, string(models.DecisionAllow), priced.Action)
	// 61 minutes at 15-minute increments of 200 minor: 5 increments
	assert.Equal(t, "1000", priced.FeeAmountMinor)
	assert.Equal(t, "USD", priced.FeeCurrency)

	require.Len(t, priced.PaymentOptions, 2)
	xrpOption := priced.PaymentOptions[0]
	assert.Equal(t, string(models.RailXrplXrp), xrpOption.Rail)
	// 1000 minor at 200 minor per XRP, scaled to 6 decimals
	assert.Equal(t, "5000000", xrpOption.AmountAtomic)
	assert.Equal(t, "rLotDestination123", xrpOption.Destination)
	cardOption := priced.PaymentOptions[1]
	assert.Equal(t, string(models.RailCard), cardOption.Rail)
	assert.Equal(t, "1000", cardOption.AmountAtomic)

	// the chosen crypto quote is watched for on-chain settlement
	pending := registry.List()
	require.Len(t, pending, 1)
	assert.Equal(t, session.Id, pending[0].SessionId)
	assert.Equal(t, "5000000", pending[0].ExpectedAmountAtomic)

	assert.Len(t, store.eventsOfType(models.PolicyEventPaymentDecisionCreated), 1)
}

func TestCloseOrPrice_IdempotentReplayIsByteIdentical(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-30*time.Minute), testGrant(time.Now().Add(30*time.Minute)))
	uc, _ := newTestExitUsecase(store, lot)

	input := GateExitInput{Plate: session.Plate, LotId: lot.Id, IdempotencyKey: "key-1"}

	first, err := uc.CloseOrPrice(context.Background(), input)
	require.NoError(t, err)
	second, err := uc.CloseOrPrice(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, []byte(first.Body), []byte(second.Body))
	// only one decision was created
	assert.Len(t, store.eventsOfType(models.PolicyEventPaymentDecisionCreated), 1)
}

func TestCloseOrPrice_IdempotencyKeyReuseWithDifferentBodyConflicts(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-30*time.Minute), testGrant(time.Now().Add(30*time.Minute)))
	uc, _ := newTestExitUsecase(store, lot)

	_, err := uc.CloseOrPrice(context.Background(), GateExitInput{
		Plate: session.Plate, LotId: lot.Id, IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	_, err = uc.CloseOrPrice(context.Background(), GateExitInput{
		Plate: session.Plate, LotId: lot.Id, IdempotencyKey: "key-1",
		Proof: &models.SettlementProof{Rail: models.RailXrplXrp, Reference: "TX1"},
	})
	assert.ErrorIs(t, err, models.ErrIdempotencyMismatch)
}

func TestCloseOrPrice_InFlightKeyConflicts(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-30*time.Minute), testGrant(time.Now().Add(30*time.Minute)))
	uc, _ := newTestExitUsecase(store, lot)

	input := GateExitInput{Plate: session.Plate, LotId: lot.Id, IdempotencyKey: "key-1"}
	requestHash := exitRequestHash(input)
	store.idempotency["gate_exit/key-1"] = idempotencyRow{requestHash: requestHash}

	_, err := uc.CloseOrPrice(context.Background(), input)
	assert.ErrorIs(t, err, models.ErrIdempotencyInProgress)
}

func TestCloseOrPrice_ExactSettlementClosesTheSession(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-30*time.Minute), testGrant(time.Now().Add(30*time.Minute)))
	uc, registry := newTestExitUsecase(store, lot)

	priced, err := uc.CloseOrPrice(context.Background(), GateExitInput{Plate: session.Plate, LotId: lot.Id})
	require.NoError(t, err)
	quote := xrpQuoteOf(t, priced)

	uc.verifiers = repositories.NewRailVerifiers(fakeVerifier{
		rail: models.RailXrplXrp,
		result: models.SettlementResult{
			Rail:         models.RailXrplXrp,
			Asset:        &testXrpAsset,
			AmountAtomic: quote.AmountAtomic,
			Destination:  quote.Destination,
			TxHash:       "TX1",
			Payer:        "rPayer",
		},
	})

	result, err := uc.CloseOrPrice(context.Background(), GateExitInput{
		Plate: session.Plate, LotId: lot.Id,
		Proof: &models.SettlementProof{Rail: models.RailXrplXrp, Reference: "TX1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)

	var closed dto.GateExitClosedResponse
	require.NoError(t, json.Unmarshal(result.Body, &closed))
	assert.Equal(t, "closed", closed.Status)
	assert.Equal(t, "TX1", closed.TxHash)

	assert.Equal(t, models.SessionCompleted, store.sessions[session.Id].Status)
	assert.Len(t, store.eventsOfType(models.PolicyEventSettlementVerified), 1)
	assert.Empty(t, registry.List())
}

func TestCloseOrPrice_ReplayedTxHashNeverSettlesTwice(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-30*time.Minute), testGrant(time.Now().Add(30*time.Minute)))
	uc, _ := newTestExitUsecase(store, lot)

	priced, err := uc.CloseOrPrice(context.Background(), GateExitInput{Plate: session.Plate, LotId: lot.Id})
	require.NoError(t, err)
	quote := xrpQuoteOf(t, priced)

	store.settledTx["xrpl_xrp/TX1"] = true
	uc.verifiers = repositories.NewRailVerifiers(fakeVerifier{
		rail: models.RailXrplXrp,
		result: models.SettlementResult{
			Rail:         models.RailXrplXrp,
			Asset:        &testXrpAsset,
			AmountAtomic: quote.AmountAtomic,
			Destination:  quote.Destination,
			TxHash:       "TX1",
		},
	})

	_, err = uc.CloseOrPrice(context.Background(), GateExitInput{
		Plate: session.Plate, LotId: lot.Id,
		Proof: &models.SettlementProof{Rail: models.RailXrplXrp, Reference: "TX1"},
	})

	var enforcement models.EnforcementError
	require.ErrorAs(t, err, &enforcement)
	assert.Equal(t, models.ReasonSettlementNotMatch, enforcement.Reason)
	assert.Equal(t, models.SessionActive, store.sessions[session.Id].Status)
	assert.Len(t, store.eventsOfType(models.PolicyEventRiskSignal), 1)
}

func TestCloseOrPrice_WrongAmountIsRejectedBeforeEnforcement(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-30*time.Minute), testGrant(time.Now().Add(30*time.Minute)))
	uc, _ := newTestExitUsecase(store, lot)

	priced, err := uc.CloseOrPrice(context.Background(), GateExitInput{Plate: session.Plate, LotId: lot.Id})
	require.NoError(t, err)
	quote := xrpQuoteOf(t, priced)

	uc.verifiers = repositories.NewRailVerifiers(fakeVerifier{
		rail: models.RailXrplXrp,
		result: models.SettlementResult{
			Rail:         models.RailXrplXrp,
			Asset:        &testXrpAsset,
			AmountAtomic: "1",
			Destination:  quote.Destination,
			TxHash:       "TX2",
		},
	})

	_, err = uc.CloseOrPrice(context.Background(), GateExitInput{
		Plate: session.Plate, LotId: lot.Id,
		Proof: &models.SettlementProof{Rail: models.RailXrplXrp, Reference: "TX2"},
	})
	assert.ErrorIs(t, err, models.ErrAmountMismatch)
	assert.Equal(t, models.SessionActive, store.sessions[session.Id].Status)
}

func TestCloseOrPrice_UnknownAssetIsDeniedByEnforcement(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-30*time.Minute), testGrant(time.Now().Add(30*time.Minute)))
	uc, _ := newTestExitUsecase(store, lot)

	priced, err := uc.CloseOrPrice(context.Background(), GateExitInput{Plate: session.Plate, LotId: lot.Id})
	require.NoError(t, err)
	quote := xrpQuoteOf(t, priced)

	iou := models.Asset{Kind: models.AssetKindIou, Code: "RLUSD", Currency: "RLUSD", Issuer: "rIssuer", Decimals: 6}
	uc.verifiers = repositories.NewRailVerifiers(fakeVerifier{
		rail: models.RailXrplXrp,
		result: models.SettlementResult{
			Rail:         models.RailXrplXrp,
			Asset:        &iou,
			AmountAtomic: quote.AmountAtomic,
			Destination:  quote.Destination,
			TxHash:       "TX3",
		},
	})

	_, err = uc.CloseOrPrice(context.Background(), GateExitInput{
		Plate: session.Plate, LotId: lot.Id,
		Proof: &models.SettlementProof{Rail: models.RailXrplXrp, Reference: "TX3"},
	})

	var enforcement models.EnforcementError
	require.ErrorAs(t, err, &enforcement)
	assert.Equal(t, models.ReasonAssetNotAllowed, enforcement.Reason)
	assert.Equal(t, models.SessionActive, store.sessions[session.Id].Status)
	assert.Len(t, store.eventsOfType(models.PolicyEventEnforcementFailed), 1)
}

func TestCloseOrPrice_ExpiredGrantForcesApproval(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	session := seedActiveSession(store, lot, time.Now().Add(-2*time.Hour), testGrant(time.Now().Add(-time.Hour)))
	uc, _ := newTestExitUsecase(store, lot)

	_, err := uc.CloseOrPrice(context.Background(), GateExitInput{Plate: session.Plate, LotId: lot.Id})

	var denied models.PolicyDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, models.DecisionRequireApproval, denied.Action)
	assert.Equal(t, models.ReasonGrantExpired, denied.Reason)

	// the decision exists for audit and is no longer bound to the grant
	decision, err := store.GetLatestDecisionForSession(context.Background(), nil, session.Id)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRequireApproval, decision.Action)
	assert.Empty(t, decision.SessionGrantId)
}

func TestCloseOrPrice_NoActiveSession(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	uc, _ := newTestExitUsecase(store, lot)

	_, err := uc.CloseOrPrice(context.Background(), GateExitInput{Plate: "ZZ-999-ZZ", LotId: lot.Id})
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}

func TestCloseOrPrice_StoreOutageFallsBackToEntryLedger(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	store.sessionLookupErr = errors.WithStack(models.ServiceUnavailableError)
	uc, _ := newTestExitUsecase(store, lot)
	uc.entryLedger = fakeEntryLedger{entryTime: time.Now().Add(-31 * time.Minute)}

	result, err := uc.CloseOrPrice(context.Background(), GateExitInput{Plate: "AB-123-CD", LotId: lot.Id})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)

	var priced dto.GateExitPricedResponse
	require.NoError(t, json.Unmarshal(result.Body, &priced))
	assert.True(t, priced.Degraded)
	assert.Equal(t, string(models.DecisionRequireApproval), priced.Action)
	// 31 minutes: 3 started increments of 200 minor
	assert.Equal(t, "600", priced.FeeAmountMinor)

	// payment is still requested: the card rail settles through the processor
	// without a stored quote, so it survives the outage. Crypto rails do not.
	require.Len(t, priced.PaymentOptions, 1)
	assert.Equal(t, string(models.RailCard), priced.PaymentOptions[0].Rail)
	assert.Equal(t, "600", priced.PaymentOptions[0].AmountAtomic)
	assert.Equal(t, "acct_lot1", priced.PaymentOptions[0].Destination)
}

func TestCloseOrPrice_ProofDuringStoreOutageFailsClosed(t *testing.T) {
	lot := testLot()
	store := newFakeStore()
	store.sessionLookupErr = errors.WithStack(models.ServiceUnavailableError)
	uc, _ := newTestExitUsecase(store, lot)

	_, err := uc.CloseOrPrice(context.Background(), GateExitInput{
		Plate: "AB-123-CD", LotId: lot.Id,
		Proof: &models.SettlementProof{Rail: models.RailXrplXrp, Reference: "TX1"},
	})
	assert.ErrorIs(t, err, models.ServiceUnavailableError)
}

func xrpQuoteOf(t *testing.T, result ExitResult) dto.PaymentOption {
	t.Helper()
	var priced dto.GateExitPricedResponse
	require.NoError(t, json.Unmarshal(result.Body, &priced))
	for _, option := range priced.PaymentOptions {
		if option.Rail == string(models.RailXrplXrp) {
			return option
		}
	}
	t.Fatal("no xrpl_xrp payment option")
	return dto.PaymentOption{}
}

func exitRequestHash(input GateExitInput) string {
	return pure_utils.ContentHash(struct {
		Plate string
		LotId string
		Proof *models.SettlementProof
	}{input.Plate, input.LotId, input.Proof})
}
