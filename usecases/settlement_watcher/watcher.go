package settlement_watcher

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/utils"
)

// TransferStream delivers transfers observed on one rail's ledger or token
// contract. Implementations own reconnection; the channel closes only when
// the context ends.
type TransferStream interface {
	Rail() models.Rail
	Transfers(ctx context.Context) (<-chan models.TransferEvent, error)
}

// ObservedSettler runs the replay check, settlement enforcement and session
// closure for a matched transfer. Implemented by the settlement usecase; the
// watcher stays ignorant of storage and policy.
type ObservedSettler interface {
	SettleObserved(ctx context.Context, pending models.PendingSettlement, transfer models.TransferEvent) error
}

// Watcher matches on-chain transfers to pending settlements. It consumes
// each configured stream and prunes the registry on a timer so abandoned
// exits cannot grow memory without bound.
type Watcher struct {
	registry      *PendingRegistry
	streams       []TransferStream
	settler       ObservedSettler
	pruneInterval time.Duration
}

func NewWatcher(
	registry *PendingRegistry,
	streams []TransferStream,
	settler ObservedSettler,
	pruneInterval time.Duration,
) *Watcher {
	return &Watcher{
		registry:      registry,
		streams:       streams,
		settler:       settler,
		pruneInterval: pruneInterval,
	}
}

func (w *Watcher) Registry() *PendingRegistry {
	return w.registry
}

// Run blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, stream := range w.streams {
		group.Go(func() error {
			return w.consume(ctx, stream)
		})
	}
	group.Go(func() error {
		return w.prune(ctx)
	})

	return group.Wait()
}

func (w *Watcher) consume(ctx context.Context, stream TransferStream) error {
	logger := utils.LoggerFromContext(ctx)

	transfers, err := stream.Transfers(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case transfer, open := <-transfers:
			if !open {
				return nil
			}
			// the pending entry is consumed here, before any I/O for the
			// match, so a transfer can never settle two sessions
			pending, found := w.registry.Resolve(transfer)
			if !found {
				continue
			}
			if err := w.settler.SettleObserved(ctx, pending, transfer); err != nil {
				logger.ErrorContext(ctx, "observed settlement failed",
					"session_id", pending.SessionId,
					"tx_hash", transfer.TxHash,
					"error", err)
			}
		}
	}
}

func (w *Watcher) prune(ctx context.Context) error {
	logger := utils.LoggerFromContext(ctx)

	ticker := time.NewTicker(w.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if pruned := w.registry.Prune(now); pruned > 0 {
				logger.InfoContext(ctx, "pruned expired pending settlements", "count", pruned)
			}
		}
	}
}
