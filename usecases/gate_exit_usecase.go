package usecases

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/parkhaus/parkhaus-backend/dto"
	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
	"github.com/parkhaus/parkhaus-backend/repositories"
	"github.com/parkhaus/parkhaus-backend/usecases/evaluate_policy"
	"github.com/parkhaus/parkhaus-backend/usecases/executor_factory"
	"github.com/parkhaus/parkhaus-backend/usecases/pricing"
	"github.com/parkhaus/parkhaus-backend/utils"
)

const gateExitEndpoint = "gate_exit"

type gateExitStore interface {
	GetActiveSession(ctx context.Context, exec repositories.Executor, plate, lotId string) (models.Session, error)
	GetPolicyGrant(ctx context.Context, exec repositories.Executor, grantId string) (models.SessionPolicyGrant, error)
	GetLatestDecisionForSession(ctx context.Context, exec repositories.Executor, sessionId string) (models.PaymentPolicyDecision, error)
	InsertDecision(ctx context.Context, exec repositories.Executor, sessionId string, decision models.PaymentPolicyDecision) error
	InsertPolicyEvent(ctx context.Context, exec repositories.Executor, event models.PolicyEvent) error
	SumSettledFiatMinor(ctx context.Context, exec repositories.Executor, plate string, since time.Time) (string, error)
	BeginIdempotentRequest(ctx context.Context, exec repositories.Executor, endpoint, key, requestHash string,
		now time.Time) (models.IdempotencyCheck, error)
	CompleteIdempotentRequest(ctx context.Context, exec repositories.Executor, endpoint, key string,
		status int, response json.RawMessage, now time.Time) error
	ReleaseIdempotentRequest(ctx context.Context, exec repositories.Executor, endpoint, key string) error
}

type entryTimeLedger interface {
	GetEntryTime(ctx context.Context, lotId, plate string) (time.Time, error)
}

type pendingRegistrar interface {
	Register(pending models.PendingSettlement)
	Cancel(sessionId string) bool
}

// GateExitInput is one exit attempt: who is leaving, and optionally the
// settlement proof of a payment already made.
type GateExitInput struct {
	Plate          string
	LotId          string
	IdempotencyKey string
	Proof          *models.SettlementProof
	RiskScore      *int
}

// ExitResult is the final HTTP outcome, pre-serialized. Storing the exact
// bytes is what makes idempotent replays byte-identical.
type ExitResult struct {
	Status int
	Body   json.RawMessage
}

// GateExitUsecase orchestrates a vehicle's exit end to end: idempotency,
// session lookup with the entry-ledger fallback, pricing, the payment
// decision, and the synchronous settlement path.
type GateExitUsecase struct {
	executorFactory    executor_factory.ExecutorFactory
	transactionFactory executor_factory.TransactionFactory
	store              gateExitStore
	lots               LotCatalog
	converter          pricing.Converter
	verifiers          repositories.RailVerifiers
	entryLedger        entryTimeLedger
	pending            pendingRegistrar
	settlements        *SettlementUsecase
	metrics            *Metrics
	riskScorer         RiskScorer
}

// CloseOrPrice handles one POST /gate/exit. With no proof it prices the stay
// and answers with payment options; with a proof it verifies and enforces the
// settlement and, when everything matches, closes the session.
func (uc GateExitUsecase) CloseOrPrice(ctx context.Context, input GateExitInput) (ExitResult, error) {
	now := time.Now()
	exec := uc.executorFactory.NewExecutor()

	if input.IdempotencyKey != "" {
		requestHash := pure_utils.ContentHash(struct {
			Plate string
			LotId string
			Proof *models.SettlementProof
		}{input.Plate, input.LotId, input.Proof})

		check, err := uc.store.BeginIdempotentRequest(ctx, exec, gateExitEndpoint,
			input.IdempotencyKey, requestHash, now)
		if errors.Is(err, models.ServiceUnavailableError) {
			// the store is down; skip idempotency so the ledger-fallback
			// pricing path can still answer
			utils.LoggerFromContext(ctx).WarnContext(ctx, "idempotency unavailable, store unreachable",
				"error", err)
			return uc.execute(ctx, input, now)
		}
		if err != nil {
			return ExitResult{}, err
		}
		switch check.State {
		case models.IdempotencyReplay:
			uc.metrics.ObserveIdempotentReplay()
			return ExitResult{Status: check.StoredStatus, Body: check.StoredResponse}, nil
		case models.IdempotencyInProgress:
			return ExitResult{}, errors.WithStack(models.ErrIdempotencyInProgress)
		case models.IdempotencyConflict:
			return ExitResult{}, errors.WithStack(models.ErrIdempotencyMismatch)
		}

		result, err := uc.execute(ctx, input, now)
		if err != nil {
			// free the key so a retry can run; errors are re-derived, only
			// successful outcomes replay from storage
			if releaseErr := uc.store.ReleaseIdempotentRequest(ctx, exec, gateExitEndpoint, input.IdempotencyKey); releaseErr != nil {
				utils.LoggerFromContext(ctx).ErrorContext(ctx, "can't release idempotency key",
					"key", input.IdempotencyKey, "error", releaseErr)
			}
			return ExitResult{}, err
		}
		if err := uc.store.CompleteIdempotentRequest(ctx, exec, gateExitEndpoint,
			input.IdempotencyKey, result.Status, result.Body, time.Now()); err != nil {
			return ExitResult{}, err
		}
		return result, nil
	}

	return uc.execute(ctx, input, now)
}

func (uc GateExitUsecase) execute(ctx context.Context, input GateExitInput, now time.Time) (ExitResult, error) {
	exec := uc.executorFactory.NewExecutor()

	lot, err := uc.lots.GetLot(input.LotId)
	if err != nil {
		return ExitResult{}, err
	}

	session, err := uc.store.GetActiveSession(ctx, exec, input.Plate, input.LotId)
	if errors.Is(err, models.NotFoundError) {
		return ExitResult{}, errors.WithStack(models.ErrNoActiveSession)
	}
	if err != nil {
		// store outage: fall back to the operator's own entry ledger so the
		// gate can still price the stay
		return uc.priceDegraded(ctx, input, lot, err, now)
	}

	decision, err := uc.currentDecision(ctx, exec, lot, session, now)
	if err != nil {
		return ExitResult{}, err
	}

	if input.Proof == nil {
		if decision.Action != models.DecisionAllow {
			return ExitResult{}, errors.WithStack(models.PolicyDeniedError{
				Action: decision.Action,
				Reason: decision.FirstReason(models.ReasonNeedsApproval),
			})
		}
		body, err := json.Marshal(dto.AdaptGateExitPricedResponse(session.Id, decision, false))
		if err != nil {
			return ExitResult{}, errors.Wrap(err, "can't encode priced response")
		}
		return ExitResult{Status: http.StatusOK, Body: body}, nil
	}

	return uc.settleWithProof(ctx, session, decision, *input.Proof)
}

// currentDecision reuses the latest stored decision when it is still usable,
// otherwise prices the stay and creates a fresh one. A proof presented on a
// second call therefore enforces against the same quotes the driver saw.
func (uc GateExitUsecase) currentDecision(
	ctx context.Context,
	exec repositories.Executor,
	lot models.Lot,
	session models.Session,
	now time.Time,
) (models.PaymentPolicyDecision, error) {
	stored, err := uc.store.GetLatestDecisionForSession(ctx, exec, session.Id)
	if err == nil && !stored.Expired(now) {
		return stored, nil
	}
	if err != nil && !errors.Is(err, models.NotFoundError) {
		return models.PaymentPolicyDecision{}, err
	}
	return uc.createDecision(ctx, exec, lot, session, now)
}

func (uc GateExitUsecase) createDecision(
	ctx context.Context,
	exec repositories.Executor,
	lot models.Lot,
	session models.Session,
	now time.Time,
) (models.PaymentPolicyDecision, error) {
	fee := pricing.ComputeFee(session.EntryTime, now, lot.Pricing)

	var grant *models.SessionPolicyGrant
	if session.PolicyGrantId != nil {
		g, err := uc.store.GetPolicyGrant(ctx, exec, *session.PolicyGrantId)
		if err != nil && !errors.Is(err, models.NotFoundError) {
			return models.PaymentPolicyDecision{}, err
		}
		if err == nil {
			grant = &g
		}
	}

	decision, err := uc.evaluate(ctx, exec, lot, session, grant, fee.String(), now)
	if err != nil {
		return models.PaymentPolicyDecision{}, err
	}

	if decision.Action == models.DecisionAllow {
		quotes, err := uc.buildQuotes(lot, grant, decision, now)
		if err != nil {
			return models.PaymentPolicyDecision{}, err
		}
		decision.Quotes = quotes
		if chosen := decision.QuoteFor(decision.Rail, decision.Asset); chosen != nil {
			decision.ChosenQuoteId = chosen.Id
		}
	}

	err = uc.transactionFactory.Transaction(ctx, func(tx repositories.Executor) error {
		if err := uc.store.InsertDecision(ctx, tx, session.Id, decision); err != nil {
			return err
		}
		payload, err := json.Marshal(decision)
		if err != nil {
			return errors.Wrap(err, "can't encode decision event payload")
		}
		return uc.store.InsertPolicyEvent(ctx, tx, models.PolicyEvent{
			EventType:  models.PolicyEventPaymentDecisionCreated,
			SessionId:  session.Id,
			DecisionId: &decision.Id,
			Payload:    payload,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return models.PaymentPolicyDecision{}, err
	}
	uc.metrics.ObserveDecision(string(decision.Action))

	// the chosen crypto quote is registered for asynchronous on-chain
	// observation; card and hosted settlements only ever arrive synchronously
	if chosen := decision.ChosenQuote(); chosen != nil && chosen.Rail.RequiresAsset() {
		uc.pending.Register(models.PendingSettlement{
			SessionId:            session.Id,
			Plate:                session.Plate,
			LotId:                session.LotId,
			DecisionId:           decision.Id,
			Rail:                 chosen.Rail,
			Asset:                chosen.Asset,
			ExpectedAmountAtomic: chosen.AmountAtomic,
			ReceiverWallet:       chosen.Destination,
			CreatedAt:            now,
		})
	}
	return decision, nil
}

// evaluate runs the payment policy for this exit, honoring the entry grant:
// the grant's allowed sets are the offer, an expired grant forces approval
// and unbinds the decision, and the validator proves the result is a subset
// of what entry permitted.
func (uc GateExitUsecase) evaluate(
	ctx context.Context,
	exec repositories.Executor,
	lot models.Lot,
	session models.Session,
	grant *models.SessionPolicyGrant,
	feeMinor string,
	now time.Time,
) (models.PaymentPolicyDecision, error) {
	if grant != nil && grant.Expired(now) {
		// the capability lapsed mid-stay; nothing is re-derived from entry
		// conditions that no longer hold
		return models.PaymentPolicyDecision{
			Id:             uuid.NewString(),
			Action:         models.DecisionRequireApproval,
			PriceFiatMinor: feeMinor,
			FiatCurrency:   lot.Pricing.Currency,
			PolicyHash:     grant.PolicyHash,
			Reasons:        []models.PolicyReason{models.ReasonGrantExpired, models.ReasonNeedsApproval},
			CreatedAt:      now,
			ExpiresAt:      now.Add(models.DecisionValidity),
		}, nil
	}

	offeredRails := lot.OfferedRails
	offeredAssets := lot.OfferedAssets
	grantId := ""
	if grant != nil {
		offeredRails = grant.AllowedRails
		offeredAssets = grant.AllowedAssets
		grantId = grant.Id
	}

	spentDay, err := uc.store.SumSettledFiatMinor(ctx, exec, session.Plate, startOfDay(now))
	if err != nil {
		return models.PaymentPolicyDecision{}, err
	}

	riskScore := 0
	if uc.riskScorer != nil {
		riskScore = uc.riskScorer.Score(session.Plate)
	}

	effective := evaluate_policy.ResolvePolicy(uc.lots.PolicyStackFor(lot, session.Plate))
	decision, err := evaluate_policy.EvaluatePayment(effective, evaluate_policy.PaymentContext{
		LotId:             lot.Id,
		OperatorId:        lot.OperatorId,
		PriceFiatMinor:    feeMinor,
		FiatCurrency:      lot.Pricing.Currency,
		SpentSessionMinor: "0",
		SpentDayMinor:     spentDay,
		OfferedRails:      offeredRails,
		OfferedAssets:     offeredAssets,
		RiskScore:         riskScore,
		SessionGrantId:    grantId,
	}, now)
	if err != nil {
		return models.PaymentPolicyDecision{}, err
	}

	if decision.Action == models.DecisionAllow && grant != nil {
		if grant.RequireApproval {
			decision.Action = models.DecisionRequireApproval
			decision.Reasons = append(decision.Reasons, grant.Reasons...)
		} else if reason, ok := evaluate_policy.ValidateDecisionAgainstGrant(*grant, decision); !ok {
			decision.Action = models.DecisionDeny
			decision.Reasons = []models.PolicyReason{reason}
		}
	}
	return decision, nil
}

// buildQuotes prices one payment option per eligible rail. Crypto rails get
// the grant-allowed asset of their kind converted at the current rate; fiat
// rails settle the fee minor units directly.
func (uc GateExitUsecase) buildQuotes(
	lot models.Lot,
	grant *models.SessionPolicyGrant,
	decision models.PaymentPolicyDecision,
	now time.Time,
) ([]models.SettlementQuote, error) {
	rails := lot.OfferedRails
	assets := lot.OfferedAssets
	if grant != nil {
		rails = grant.AllowedRails
		assets = grant.AllowedAssets
	}

	price, err := pure_utils.ParseAmount(decision.PriceFiatMinor)
	if err != nil {
		return nil, errors.Wrap(err, "invalid decision price")
	}

	var quotes []models.SettlementQuote
	for _, rail := range rails {
		destination := lot.DestinationFor(rail)
		if destination == "" {
			continue
		}

		if !rail.RequiresAsset() {
			quotes = append(quotes, models.SettlementQuote{
				Id:           uuid.NewString(),
				Rail:         rail,
				AmountAtomic: decision.PriceFiatMinor,
				Destination:  destination,
				ExpiresAt:    decision.ExpiresAt,
			})
			continue
		}

		asset, found := assetForRail(rail, assets)
		if !found {
			continue
		}
		atomic, err := uc.converter.FiatToAsset(price, decision.FiatCurrency, asset)
		if err != nil {
			// no rate configured for this asset: the rail is simply not
			// offered on this decision
			continue
		}
		assetCopy := asset
		quotes = append(quotes, models.SettlementQuote{
			Id:           uuid.NewString(),
			Rail:         rail,
			Asset:        &assetCopy,
			AmountAtomic: atomic.String(),
			Decimals:     asset.Decimals,
			Destination:  destination,
			ExpiresAt:    decision.ExpiresAt,
		})
	}
	return quotes, nil
}

// settleWithProof runs the synchronous settlement path: verify the proof on
// its rail, reject obvious mismatches cheaply, then hand the observed
// settlement to enforcement and closure.
func (uc GateExitUsecase) settleWithProof(
	ctx context.Context,
	session models.Session,
	decision models.PaymentPolicyDecision,
	proof models.SettlementProof,
) (ExitResult, error) {
	verifier, err := uc.verifiers.For(proof.Rail)
	if err != nil {
		return ExitResult{}, err
	}
	settlement, err := verifier.VerifySettlement(ctx, proof.Reference)
	if err != nil {
		return ExitResult{}, err
	}

	// cheap preconditions before the enforcement choke point, so a typo'd
	// proof gets a 400 instead of a policy denial
	if quote := decision.QuoteFor(settlement.Rail, settlement.Asset); quote != nil {
		if settlement.Destination != "" && !strings.EqualFold(settlement.Destination, quote.Destination) {
			return ExitResult{}, errors.WithStack(models.ErrReceiverMismatch)
		}
		if cmp, err := pure_utils.CmpAmounts(settlement.AmountAtomic, quote.AmountAtomic); err != nil || cmp != 0 {
			return ExitResult{}, errors.WithStack(models.ErrAmountMismatch)
		}
	}

	close, err := uc.settlements.FinalizeSettlement(ctx, session, decision, settlement)
	if err != nil {
		return ExitResult{}, err
	}

	body, err := json.Marshal(dto.AdaptGateExitClosedResponse(session.Id, close))
	if err != nil {
		return ExitResult{}, errors.Wrap(err, "can't encode closed response")
	}
	return ExitResult{Status: http.StatusOK, Body: body}, nil
}

// priceDegraded answers a priced response from the operator's entry ledger
// when the session store is unreachable. Nothing is persisted and no proof
// can be accepted: closing a session needs the store back.
func (uc GateExitUsecase) priceDegraded(
	ctx context.Context,
	input GateExitInput,
	lot models.Lot,
	storeErr error,
	now time.Time,
) (ExitResult, error) {
	if input.Proof != nil {
		return ExitResult{}, storeErr
	}

	entryTime, err := uc.entryLedger.GetEntryTime(ctx, input.LotId, input.Plate)
	if err != nil {
		if errors.Is(err, models.NotFoundError) {
			// no entry record anywhere: charge nothing rather than guess
			entryTime = now
		} else {
			return ExitResult{}, storeErr
		}
	}

	utils.LoggerFromContext(ctx).WarnContext(ctx, "pricing exit from entry ledger, store unreachable",
		"plate", input.Plate, "lot_id", input.LotId, "error", storeErr)

	fee := pricing.ComputeFee(entryTime, now, lot.Pricing)
	decision := models.PaymentPolicyDecision{
		Id:             uuid.NewString(),
		Action:         models.DecisionRequireApproval,
		PriceFiatMinor: fee.String(),
		FiatCurrency:   lot.Pricing.Currency,
		Reasons:        []models.PolicyReason{models.ReasonNeedsApproval},
		CreatedAt:      now,
		ExpiresAt:      now.Add(models.DecisionValidity),
	}

	// the driver is still asked to pay: fiat rails settle synchronously through
	// the processor and need no stored quote to verify against. Crypto quotes
	// are withheld because nothing could register them for on-chain observation.
	for _, rail := range lot.OfferedRails {
		if rail.RequiresAsset() {
			continue
		}
		destination := lot.DestinationFor(rail)
		if destination == "" {
			continue
		}
		decision.Quotes = append(decision.Quotes, models.SettlementQuote{
			Id:           uuid.NewString(),
			Rail:         rail,
			AmountAtomic: decision.PriceFiatMinor,
			Destination:  destination,
			ExpiresAt:    decision.ExpiresAt,
		})
	}

	body, err := json.Marshal(dto.AdaptGateExitPricedResponse("", decision, true))
	if err != nil {
		return ExitResult{}, errors.Wrap(err, "can't encode degraded response")
	}
	return ExitResult{Status: http.StatusOK, Body: body}, nil
}

func assetForRail(rail models.Rail, assets []models.Asset) (models.Asset, bool) {
	var kind models.AssetKind
	switch rail {
	case models.RailXrplXrp:
		kind = models.AssetKindXrp
	case models.RailXrplIou:
		kind = models.AssetKindIou
	case models.RailEvmToken:
		kind = models.AssetKindToken
	default:
		return models.Asset{}, false
	}
	for _, asset := range assets {
		if asset.Kind == kind {
			return asset, true
		}
	}
	return models.Asset{}, false
}

func startOfDay(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
}
