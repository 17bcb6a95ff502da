package usecases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories"
	"github.com/parkhaus/parkhaus-backend/usecases/evaluate_policy"
	"github.com/parkhaus/parkhaus-backend/usecases/executor_factory"
	"github.com/parkhaus/parkhaus-backend/utils"
)

type settlementStore interface {
	GetSessionById(ctx context.Context, exec repositories.Executor, sessionId string) (models.Session, error)
	GetDecision(ctx context.Context, exec repositories.Executor, decisionId string) (models.PaymentPolicyDecision, error)
	HasSettlementForTxHash(ctx context.Context, exec repositories.Executor, rail models.Rail, txHash string) (bool, error)
	InsertSettlement(ctx context.Context, exec repositories.Executor, sessionId, decisionId string,
		settlement models.SettlementResult, now time.Time) error
	EndSession(ctx context.Context, exec repositories.Executor, sessionId string, close models.SessionClose) error
	InsertPolicyEvent(ctx context.Context, exec repositories.Executor, event models.PolicyEvent) error
}

type pendingCanceller interface {
	Cancel(sessionId string) bool
}

// SettlementUsecase finalizes one observed settlement against one stored
// decision. Both the synchronous proof path and the asynchronous watcher end
// here, so the enforcement and closure semantics cannot drift apart.
type SettlementUsecase struct {
	executorFactory    executor_factory.ExecutorFactory
	transactionFactory executor_factory.TransactionFactory
	store              settlementStore
	pending            pendingCanceller
	notifier           entryNotifier
	metrics            *Metrics
}

// FinalizeSettlement runs the replay check, enforcement and the conditional
// session closure. On an enforcement denial the session stays open, an
// enforcementFailed event is written, and the denial reason travels up as an
// EnforcementError.
func (uc SettlementUsecase) FinalizeSettlement(
	ctx context.Context,
	session models.Session,
	decision models.PaymentPolicyDecision,
	settlement models.SettlementResult,
) (models.SessionClose, error) {
	now := time.Now()
	exec := uc.executorFactory.NewExecutor()

	// Replay: a tx hash that already settled a session settles nothing else.
	// The response stays deliberately uninformative; the detail goes to the
	// audit trail as a risk signal.
	replayed, err := uc.store.HasSettlementForTxHash(ctx, exec, settlement.Rail, settlement.TxHash)
	if err != nil {
		return models.SessionClose{}, err
	}
	if replayed {
		uc.metrics.ObserveSettlementReplay()
		uc.insertEvent(ctx, exec, models.PolicyEventRiskSignal, session.Id, &decision.Id, &settlement.TxHash, map[string]any{
			"signal":  "settlement_replay",
			"rail":    settlement.Rail,
			"tx_hash": settlement.TxHash,
		}, now)
		return models.SessionClose{}, errors.WithStack(models.EnforcementError{
			Reason: models.ReasonSettlementNotMatch,
		})
	}

	// Grant linkage: the decision must be bound to the session's current
	// grant. Enforcement re-checks this through the expected-grant fields.
	if session.PolicyGrantId != nil {
		settlement.ExpectedGrantId = *session.PolicyGrantId
	}

	result := evaluate_policy.EnforceSettlement(&decision, settlement, now)
	uc.metrics.ObserveEnforcement(result.Allowed)

	if !result.Allowed {
		uc.insertEvent(ctx, exec, models.PolicyEventEnforcementFailed, session.Id, &decision.Id, &settlement.TxHash, map[string]any{
			"reason":        result.Reason,
			"rail":          settlement.Rail,
			"amount_atomic": settlement.AmountAtomic,
			"destination":   settlement.Destination,
		}, now)
		return models.SessionClose{}, errors.WithStack(models.EnforcementError{Reason: result.Reason})
	}

	close := models.SessionClose{
		ExitTime:       now,
		FeeAmountMinor: decision.PriceFiatMinor,
		FeeCurrency:    decision.FiatCurrency,
		DecisionId:     decision.Id,
		TxHash:         settlement.TxHash,
		Rail:           settlement.Rail,
	}

	err = uc.transactionFactory.Transaction(ctx, func(tx repositories.Executor) error {
		if err := uc.store.EndSession(ctx, tx, session.Id, close); err != nil {
			return err
		}
		if err := uc.store.InsertSettlement(ctx, tx, session.Id, decision.Id, settlement, now); err != nil {
			return err
		}
		eventFields := map[string]any{
			"rail":          settlement.Rail,
			"amount_atomic": settlement.AmountAtomic,
			"destination":   settlement.Destination,
			"payer":         settlement.Payer,
		}
		if settlement.ObservedAmountAtomic != "" && settlement.ObservedAmountAtomic != settlement.AmountAtomic {
			eventFields["observed_amount_atomic"] = settlement.ObservedAmountAtomic
		}
		payload, err := json.Marshal(eventFields)
		if err != nil {
			return errors.Wrap(err, "can't encode settlement event payload")
		}
		return uc.store.InsertPolicyEvent(ctx, tx, models.PolicyEvent{
			EventType:  models.PolicyEventSettlementVerified,
			SessionId:  session.Id,
			DecisionId: &decision.Id,
			TxHash:     &settlement.TxHash,
			Payload:    payload,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return models.SessionClose{}, err
	}

	uc.pending.Cancel(session.Id)

	if uc.notifier != nil {
		if err := uc.notifier.Notify(ctx, "session.closed", map[string]any{
			"session_id":       session.Id,
			"plate":            session.Plate,
			"lot_id":           session.LotId,
			"fee_amount_minor": close.FeeAmountMinor,
			"fee_currency":     close.FeeCurrency,
			"tx_hash":          close.TxHash,
		}); err != nil {
			utils.LoggerFromContext(ctx).WarnContext(ctx, "closure notification failed",
				"session_id", session.Id, "error", err)
		}
	}
	return close, nil
}

// SettleObserved is the watcher's entry point: the pending record was already
// consumed from the registry, so this either closes the session or leaves it
// open for the manual path. It never re-registers.
func (uc SettlementUsecase) SettleObserved(
	ctx context.Context,
	pending models.PendingSettlement,
	transfer models.TransferEvent,
) error {
	uc.metrics.ObserveWatcherMatch()
	exec := uc.executorFactory.NewExecutor()

	session, err := uc.store.GetSessionById(ctx, exec, pending.SessionId)
	if err != nil {
		return err
	}
	if session.Status != models.SessionActive {
		return nil
	}
	decision, err := uc.store.GetDecision(ctx, exec, pending.DecisionId)
	if err != nil {
		return err
	}

	// The registry already matched the transfer to this pending record within
	// the tolerance band, so enforcement runs against the registered amount;
	// the on-chain amount travels along for the audit trail. Re-deriving an
	// exact-amount check here would strand every transfer with FX drift.
	_, err = uc.FinalizeSettlement(ctx, session, decision, models.SettlementResult{
		Rail:                 transfer.Rail,
		Asset:                transfer.Asset,
		AmountAtomic:         pending.ExpectedAmountAtomic,
		ObservedAmountAtomic: transfer.AmountAtomic,
		Destination:          transfer.To,
		Payer:                transfer.From,
		TxHash:               transfer.TxHash,
	})
	var enforcement models.EnforcementError
	if errors.As(err, &enforcement) {
		// the failure is recorded; the session stays open for manual review
		utils.LoggerFromContext(ctx).WarnContext(ctx, "observed settlement denied",
			"session_id", session.Id,
			"tx_hash", transfer.TxHash,
			"reason", enforcement.Reason)
		return nil
	}
	return err
}

func (uc SettlementUsecase) insertEvent(
	ctx context.Context,
	exec repositories.Executor,
	eventType models.PolicyEventType,
	sessionId string,
	decisionId *string,
	txHash *string,
	payload map[string]any,
	now time.Time,
) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte("{}")
	}
	if err := uc.store.InsertPolicyEvent(ctx, exec, models.PolicyEvent{
		EventType:  eventType,
		SessionId:  sessionId,
		DecisionId: decisionId,
		TxHash:     txHash,
		Payload:    encoded,
		CreatedAt:  now,
	}); err != nil {
		utils.LoggerFromContext(ctx).ErrorContext(ctx, "can't write policy event",
			"event_type", eventType, "session_id", sessionId, "error", err)
	}
}
