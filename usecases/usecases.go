package usecases

import (
	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories"
	"github.com/parkhaus/parkhaus-backend/usecases/executor_factory"
	"github.com/parkhaus/parkhaus-backend/usecases/pricing"
	"github.com/parkhaus/parkhaus-backend/usecases/settlement_watcher"
)

// LotCatalog resolves lot configuration and the policy stack that applies to
// a plate at a lot. Backed by the policy document loaded at startup.
type LotCatalog interface {
	GetLot(lotId string) (models.Lot, error)
	PolicyStackFor(lot models.Lot, plate string) models.PolicyStack
}

// Usecases is the dependency container assembled once in cmd/server.go. Each
// NewXxxUsecase method wires one usecase with the narrow view it needs.
type Usecases struct {
	Repositories       repositories.ParkhausDbRepository
	ExecutorGetter     repositories.ExecutorGetter
	Lots               LotCatalog
	Verifiers          repositories.RailVerifiers
	Converter          pricing.Converter
	EntryLedger        repositories.EntryLedgerRepository
	Notifications      repositories.NotificationRepository
	PendingSettlements *settlement_watcher.PendingRegistry
	Metrics            *Metrics
	RiskScorer         RiskScorer
}

func (u Usecases) NewExecutorFactory() executor_factory.DbExecutorFactory {
	return executor_factory.NewDbExecutorFactory(u.ExecutorGetter)
}

func (u Usecases) NewGateEntryUsecase() GateEntryUsecase {
	return GateEntryUsecase{
		transactionFactory: u.NewExecutorFactory(),
		store:              u.Repositories,
		lots:               u.Lots,
		notifier:           u.Notifications,
		metrics:            u.Metrics,
		riskScorer:         u.RiskScorer,
	}
}

func (u Usecases) NewSettlementUsecase() SettlementUsecase {
	return SettlementUsecase{
		executorFactory:    u.NewExecutorFactory(),
		transactionFactory: u.NewExecutorFactory(),
		store:              u.Repositories,
		pending:            u.PendingSettlements,
		notifier:           u.Notifications,
		metrics:            u.Metrics,
	}
}

func (u Usecases) NewGateExitUsecase() GateExitUsecase {
	settlements := u.NewSettlementUsecase()
	return GateExitUsecase{
		executorFactory:    u.NewExecutorFactory(),
		transactionFactory: u.NewExecutorFactory(),
		store:              u.Repositories,
		lots:               u.Lots,
		converter:          u.Converter,
		verifiers:          u.Verifiers,
		entryLedger:        u.EntryLedger,
		pending:            u.PendingSettlements,
		settlements:        &settlements,
		metrics:            u.Metrics,
		riskScorer:         u.RiskScorer,
	}
}

func (u Usecases) NewCardWebhookUsecase() CardWebhookUsecase {
	settlements := u.NewSettlementUsecase()
	return CardWebhookUsecase{
		executorFactory: u.NewExecutorFactory(),
		store:           u.Repositories,
		verifiers:       u.Verifiers,
		settlements:     &settlements,
	}
}

func (u Usecases) NewQueryUsecase() QueryUsecase {
	return QueryUsecase{
		executorFactory: u.NewExecutorFactory(),
		store:           u.Repositories,
		pending:         u.PendingSettlements,
	}
}

// RiskScorer scores a plate's current risk, 0-100. The static implementation
// returns a fixed score; a real scorer would look at history and signals.
type RiskScorer interface {
	Score(plate string) int
}

type StaticRiskScorer struct {
	Value int
}

func (s StaticRiskScorer) Score(string) int {
	return s.Value
}
