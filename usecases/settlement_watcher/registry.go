package settlement_watcher

import (
	"strings"
	"sync"
	"time"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/pure_utils"
)

// AmountTolerancePct is how far an observed transfer may drift from the
// registered amount and still match. FX-derived quotes can drift by rounding
// at the edge of their validity window; anything beyond 1% is an unrelated
// transfer, not a near-miss to accept.
const AmountTolerancePct = 1

// PendingRegistry owns the in-memory records of exits priced but not yet
// settled on-chain. One entry per session; an entry is consumed at most
// once. Process-local by design: entries are re-registered on the next
// synchronous exit call after a restart.
type PendingRegistry struct {
	mu      sync.Mutex
	entries map[string]models.PendingSettlement
	ttl     time.Duration
}

func NewPendingRegistry(ttl time.Duration) *PendingRegistry {
	return &PendingRegistry{
		entries: make(map[string]models.PendingSettlement),
		ttl:     ttl,
	}
}

// Register adds or refreshes the pending settlement for a session.
func (r *PendingRegistry) Register(pending models.PendingSettlement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[pending.SessionId] = pending
}

// Cancel removes a pending settlement, reporting whether one existed.
func (r *PendingRegistry) Cancel(sessionId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, found := r.entries[sessionId]
	delete(r.entries, sessionId)
	return found
}

func (r *PendingRegistry) List() []models.PendingSettlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PendingSettlement, 0, len(r.entries))
	for _, p := range r.entries {
		out = append(out, p)
	}
	return out
}

// Resolve finds the pending entry matching an observed transfer — receiver
// compared case-insensitively, amount within tolerance — and removes it
// before returning. Deleting under the lock, before the caller awaits any
// I/O, is what guarantees a single transfer can never match twice.
func (r *PendingRegistry) Resolve(transfer models.TransferEvent) (models.PendingSettlement, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sessionId, pending := range r.entries {
		if pending.Rail != transfer.Rail {
			continue
		}
		if !strings.EqualFold(pending.ReceiverWallet, transfer.To) {
			continue
		}
		if !amountMatches(pending.ExpectedAmountAtomic, transfer.AmountAtomic) {
			continue
		}
		delete(r.entries, sessionId)
		return pending, true
	}
	return models.PendingSettlement{}, false
}

// Prune drops entries older than the TTL, bounding memory. Returns how many
// were removed.
func (r *PendingRegistry) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for sessionId, pending := range r.entries {
		if now.Sub(pending.CreatedAt) > r.ttl {
			delete(r.entries, sessionId)
			pruned++
		}
	}
	return pruned
}

func amountMatches(expected, observed string) bool {
	expectedAmount, err := pure_utils.ParseAmount(expected)
	if err != nil {
		return false
	}
	observedAmount, err := pure_utils.ParseAmount(observed)
	if err != nil {
		return false
	}
	return pure_utils.WithinTolerancePct(expectedAmount, observedAmount, AmountTolerancePct)
}
