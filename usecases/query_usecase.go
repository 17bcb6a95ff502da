package usecases

import (
	"context"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories"
	"github.com/parkhaus/parkhaus-backend/usecases/executor_factory"
	"github.com/parkhaus/parkhaus-backend/usecases/settlement_watcher"
)

type queryStore interface {
	GetActiveSessionByPlate(ctx context.Context, exec repositories.Executor, plate string) (models.Session, error)
	GetDecision(ctx context.Context, exec repositories.Executor, decisionId string) (models.PaymentPolicyDecision, error)
}

// QueryUsecase serves the operator-facing reads: thin lookups with no policy
// logic of their own.
type QueryUsecase struct {
	executorFactory executor_factory.ExecutorFactory
	store           queryStore
	pending         *settlement_watcher.PendingRegistry
}

func (uc QueryUsecase) GetActiveSession(ctx context.Context, plate string) (models.Session, error) {
	return uc.store.GetActiveSessionByPlate(ctx, uc.executorFactory.NewExecutor(), plate)
}

func (uc QueryUsecase) GetDecision(ctx context.Context, decisionId string) (models.PaymentPolicyDecision, error) {
	return uc.store.GetDecision(ctx, uc.executorFactory.NewExecutor(), decisionId)
}

func (uc QueryUsecase) ListPendingSettlements() []models.PendingSettlement {
	return uc.pending.List()
}

func (uc QueryUsecase) CancelPendingSettlement(sessionId string) bool {
	return uc.pending.Cancel(sessionId)
}
