package usecases

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories"
	"github.com/parkhaus/parkhaus-backend/usecases/executor_factory"
)

type cardWebhookStore interface {
	GetSessionById(ctx context.Context, exec repositories.Executor, sessionId string) (models.Session, error)
	GetLatestDecisionForSession(ctx context.Context, exec repositories.Executor, sessionId string) (models.PaymentPolicyDecision, error)
}

// CardWebhookUsecase processes asynchronous card-processor notifications. The
// webhook names a session and a payment; the payment facts are re-read from
// the processor rather than trusted from the webhook body, then fed through
// the same enforcement and closure path as every other settlement.
type CardWebhookUsecase struct {
	executorFactory executor_factory.ExecutorFactory
	store           cardWebhookStore
	verifiers       repositories.RailVerifiers
	settlements     *SettlementUsecase
}

func (uc CardWebhookUsecase) ProcessCardSettlement(ctx context.Context, sessionId, reference string) error {
	exec := uc.executorFactory.NewExecutor()

	session, err := uc.store.GetSessionById(ctx, exec, sessionId)
	if err != nil {
		return err
	}
	if session.Status != models.SessionActive {
		// already closed, the webhook is a duplicate delivery
		return nil
	}
	decision, err := uc.store.GetLatestDecisionForSession(ctx, exec, sessionId)
	if err != nil {
		return err
	}

	verifier, err := uc.verifiers.For(models.RailCard)
	if err != nil {
		return err
	}
	settlement, err := verifier.VerifySettlement(ctx, reference)
	if err != nil {
		return err
	}

	_, err = uc.settlements.FinalizeSettlement(ctx, session, decision, settlement)
	return errors.WithStack(err)
}
