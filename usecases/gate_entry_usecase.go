package usecases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
	"github.com/parkhaus/parkhaus-backend/repositories"
	"github.com/parkhaus/parkhaus-backend/usecases/evaluate_policy"
	"github.com/parkhaus/parkhaus-backend/usecases/executor_factory"
	"github.com/parkhaus/parkhaus-backend/utils"
)

type gateEntryStore interface {
	GetActiveSession(ctx context.Context, exec repositories.Executor, plate, lotId string) (models.Session, error)
	CountActiveSessions(ctx context.Context, exec repositories.Executor, lotId string) (int, error)
	CreateSession(ctx context.Context, exec repositories.Executor, session models.Session) error
	InsertPolicyGrant(ctx context.Context, exec repositories.Executor, sessionId string, grant models.SessionPolicyGrant) error
	InsertPolicyEvent(ctx context.Context, exec repositories.Executor, event models.PolicyEvent) error
}

type entryNotifier interface {
	Notify(ctx context.Context, eventType string, payload any) error
}

type GateEntryUsecase struct {
	transactionFactory executor_factory.TransactionFactory
	store              gateEntryStore
	lots               LotCatalog
	notifier           entryNotifier
	metrics            *Metrics
	riskScorer         RiskScorer
}

// GateEntryInput is everything the gate reports when a vehicle arrives.
type GateEntryInput struct {
	Plate     string
	LotId     string
	Geo       *pure_utils.GeoPoint
	RiskScore *int
}

// OpenEntry admits a vehicle: capacity and duplicate checks, policy
// resolution, the entry grant, and the session row — all inside one
// transaction so a racing entry for the same plate cannot slip through.
// A denied grant is persisted for audit but opens no session.
func (uc GateEntryUsecase) OpenEntry(ctx context.Context, input GateEntryInput) (models.Session, models.SessionPolicyGrant, error) {
	lot, err := uc.lots.GetLot(input.LotId)
	if err != nil {
		return models.Session{}, models.SessionPolicyGrant{}, err
	}

	riskScore := 0
	if input.RiskScore != nil {
		riskScore = *input.RiskScore
	} else if uc.riskScorer != nil {
		riskScore = uc.riskScorer.Score(input.Plate)
	}

	now := time.Now()
	stack := uc.lots.PolicyStackFor(lot, input.Plate)
	effective := evaluate_policy.ResolvePolicy(stack)
	grant := evaluate_policy.EvaluateEntry(effective, evaluate_policy.EntryContext{
		LotId:         lot.Id,
		OperatorId:    lot.OperatorId,
		VehicleGeo:    input.Geo,
		RiskScore:     riskScore,
		OfferedRails:  lot.OfferedRails,
		OfferedAssets: lot.OfferedAssets,
	}, now)

	session := models.Session{
		Id:            uuid.NewString(),
		Plate:         input.Plate,
		LotId:         lot.Id,
		Status:        models.SessionActive,
		EntryTime:     now,
		PolicyGrantId: &grant.Id,
		PolicyHash:    &grant.PolicyHash,
	}

	err = uc.transactionFactory.Transaction(ctx, func(tx repositories.Executor) error {
		if lot.Capacity > 0 {
			occupied, err := uc.store.CountActiveSessions(ctx, tx, lot.Id)
			if err != nil {
				return err
			}
			if occupied >= lot.Capacity {
				return errors.WithStack(models.ErrLotAtCapacity)
			}
		}

		_, err := uc.store.GetActiveSession(ctx, tx, input.Plate, lot.Id)
		if err == nil {
			return errors.WithStack(models.ErrDuplicateSession)
		}
		if !errors.Is(err, models.NotFoundError) {
			return err
		}

		if grant.Denied() {
			// persist the denial for audit, but no session opens. The
			// transaction must commit, so the denial error is raised only
			// after it returns: an error here would roll the audit rows back.
			if err := uc.store.InsertPolicyGrant(ctx, tx, "", grant); err != nil {
				return err
			}
			return uc.insertGrantEvent(ctx, tx, "", grant, now)
		}

		if err := uc.store.CreateSession(ctx, tx, session); err != nil {
			return err
		}
		if err := uc.store.InsertPolicyGrant(ctx, tx, session.Id, grant); err != nil {
			return err
		}
		return uc.insertGrantEvent(ctx, tx, session.Id, grant, now)
	})
	if err != nil {
		return models.Session{}, models.SessionPolicyGrant{}, err
	}
	if grant.Denied() {
		return models.Session{}, models.SessionPolicyGrant{}, errors.WithStack(models.PolicyDeniedError{
			Action: models.DecisionDeny,
			Reason: firstGrantReason(grant),
		})
	}

	if uc.notifier != nil {
		if err := uc.notifier.Notify(ctx, "session.opened", map[string]any{
			"session_id": session.Id,
			"plate":      session.Plate,
			"lot_id":     session.LotId,
		}); err != nil {
			utils.LoggerFromContext(ctx).WarnContext(ctx, "entry notification failed",
				"session_id", session.Id, "error", err)
		}
	}
	return session, grant, nil
}

func (uc GateEntryUsecase) insertGrantEvent(
	ctx context.Context,
	exec repositories.Executor,
	sessionId string,
	grant models.SessionPolicyGrant,
	now time.Time,
) error {
	payload, err := json.Marshal(grant)
	if err != nil {
		return errors.Wrap(err, "can't encode grant event payload")
	}
	return uc.store.InsertPolicyEvent(ctx, exec, models.PolicyEvent{
		EventType: models.PolicyEventEntryGrantCreated,
		SessionId: sessionId,
		Payload:   payload,
		CreatedAt: now,
	})
}

func firstGrantReason(grant models.SessionPolicyGrant) models.PolicyReason {
	if len(grant.Reasons) > 0 {
		return grant.Reasons[0]
	}
	return models.ReasonNeedsApproval
}
