package usecases

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/parkhaus/parkhaus-backend/models"
	"github.com/parkhaus/parkhaus-backend/repositories"
)

// fakeExecutorFactory satisfies both factory interfaces without a database;
// the in-memory store ignores the executor entirely.
type fakeExecutorFactory struct{}

func (fakeExecutorFactory) NewExecutor() repositories.Executor {
	return nil
}

func (fakeExecutorFactory) Transaction(ctx context.Context, fn func(tx repositories.Executor) error) error {
	return fn(nil)
}

// rollbackFactory mirrors the real transaction semantics: writes made inside
// a callback that returns an error are discarded.
type rollbackFactory struct {
	store *fakeStore
}

func (f rollbackFactory) NewExecutor() repositories.Executor {
	return nil
}

func (f rollbackFactory) Transaction(ctx context.Context, fn func(tx repositories.Executor) error) error {
	snapshot := f.store.snapshot()
	if err := fn(nil); err != nil {
		f.store.restore(snapshot)
		return err
	}
	return nil
}

type idempotencyRow struct {
	requestHash string
	completed   bool
	status      int
	response    json.RawMessage
}

// fakeStore is the in-memory store shared by the usecase tests.
type fakeStore struct {
	mu sync.Mutex

	sessions  map[string]models.Session
	grants    map[string]models.SessionPolicyGrant
	decisions map[string]models.PaymentPolicyDecision
	// latest decision id per session
	latestDecision map[string]string
	settledTx      map[string]bool
	events         []models.PolicyEvent
	idempotency    map[string]idempotencyRow

	// sessionLookupErr simulates a store outage on the exit path.
	sessionLookupErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:       map[string]models.Session{},
		grants:         map[string]models.SessionPolicyGrant{},
		decisions:      map[string]models.PaymentPolicyDecision{},
		latestDecision: map[string]string{},
		settledTx:      map[string]bool{},
		idempotency:    map[string]idempotencyRow{},
	}
}

func (s *fakeStore) GetActiveSession(ctx context.Context, exec repositories.Executor, plate, lotId string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionLookupErr != nil {
		return models.Session{}, s.sessionLookupErr
	}
	for _, session := range s.sessions {
		if session.Plate == plate && session.LotId == lotId && session.Status == models.SessionActive {
			return session, nil
		}
	}
	return models.Session{}, errors.WithStack(models.NotFoundError)
}

func (s *fakeStore) GetActiveSessionByPlate(ctx context.Context, exec repositories.Executor, plate string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.Plate == plate && session.Status == models.SessionActive {
			return session, nil
		}
	}
	return models.Session{}, errors.WithStack(models.NotFoundError)
}

func (s *fakeStore) GetSessionById(ctx context.Context, exec repositories.Executor, sessionId string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionId]
	if !ok {
		return models.Session{}, errors.WithStack(models.NotFoundError)
	}
	return session, nil
}

func (s *fakeStore) CountActiveSessions(ctx context.Context, exec repositories.Executor, lotId string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, session := range s.sessions {
		if session.LotId == lotId && session.Status == models.SessionActive {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CreateSession(ctx context.Context, exec repositories.Executor, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Id] = session
	return nil
}

func (s *fakeStore) EndSession(ctx context.Context, exec repositories.Executor, sessionId string, close models.SessionClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionId]
	if !ok || session.Status != models.SessionActive {
		return errors.WithStack(models.ErrSessionAlreadyClosed)
	}
	session.Status = models.SessionCompleted
	session.ExitTime = &close.ExitTime
	session.FeeAmountMinor = &close.FeeAmountMinor
	session.FeeCurrency = &close.FeeCurrency
	s.sessions[sessionId] = session
	return nil
}

func (s *fakeStore) InsertPolicyGrant(ctx context.Context, exec repositories.Executor, sessionId string, grant models.SessionPolicyGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grant.Id] = grant
	return nil
}

func (s *fakeStore) GetPolicyGrant(ctx context.Context, exec repositories.Executor, grantId string) (models.SessionPolicyGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[grantId]
	if !ok {
		return models.SessionPolicyGrant{}, errors.WithStack(models.NotFoundError)
	}
	return grant, nil
}

func (s *fakeStore) InsertDecision(ctx context.Context, exec repositories.Executor, sessionId string, decision models.PaymentPolicyDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[decision.Id] = decision
	s.latestDecision[sessionId] = decision.Id
	return nil
}

func (s *fakeStore) GetDecision(ctx context.Context, exec repositories.Executor, decisionId string) (models.PaymentPolicyDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decision, ok := s.decisions[decisionId]
	if !ok {
		return models.PaymentPolicyDecision{}, errors.WithStack(models.NotFoundError)
	}
	return decision, nil
}

func (s *fakeStore) GetLatestDecisionForSession(ctx context.Context, exec repositories.Executor, sessionId string) (models.PaymentPolicyDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decisionId, ok := s.latestDecision[sessionId]
	if !ok {
		return models.PaymentPolicyDecision{}, errors.WithStack(models.NotFoundError)
	}
	return s.decisions[decisionId], nil
}

func (s *fakeStore) HasSettlementForTxHash(ctx context.Context, exec repositories.Executor, rail models.Rail, txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settledTx[string(rail)+"/"+txHash], nil
}

func (s *fakeStore) InsertSettlement(ctx context.Context, exec repositories.Executor, sessionId, decisionId string,
	settlement models.SettlementResult, now time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settledTx[string(settlement.Rail)+"/"+settlement.TxHash] = true
	return nil
}

func (s *fakeStore) InsertPolicyEvent(ctx context.Context, exec repositories.Executor, event models.PolicyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *fakeStore) SumSettledFiatMinor(ctx context.Context, exec repositories.Executor, plate string, since time.Time) (string, error) {
	return "0", nil
}

func (s *fakeStore) BeginIdempotentRequest(ctx context.Context, exec repositories.Executor,
	endpoint, key, requestHash string, now time.Time,
) (models.IdempotencyCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, exists := s.idempotency[endpoint+"/"+key]
	if !exists {
		s.idempotency[endpoint+"/"+key] = idempotencyRow{requestHash: requestHash}
		return models.IdempotencyCheck{State: models.IdempotencyStarted}, nil
	}
	if row.requestHash != requestHash {
		return models.IdempotencyCheck{State: models.IdempotencyConflict}, nil
	}
	if !row.completed {
		return models.IdempotencyCheck{State: models.IdempotencyInProgress}, nil
	}
	return models.IdempotencyCheck{
		State:          models.IdempotencyReplay,
		StoredStatus:   row.status,
		StoredResponse: row.response,
	}, nil
}

func (s *fakeStore) CompleteIdempotentRequest(ctx context.Context, exec repositories.Executor,
	endpoint, key string, status int, response json.RawMessage, now time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.idempotency[endpoint+"/"+key]
	row.completed = true
	row.status = status
	row.response = response
	s.idempotency[endpoint+"/"+key] = row
	return nil
}

func (s *fakeStore) ReleaseIdempotentRequest(ctx context.Context, exec repositories.Executor, endpoint, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.idempotency, endpoint+"/"+key)
	return nil
}

type storeSnapshot struct {
	sessions       map[string]models.Session
	grants         map[string]models.SessionPolicyGrant
	decisions      map[string]models.PaymentPolicyDecision
	latestDecision map[string]string
	settledTx      map[string]bool
	events         []models.PolicyEvent
	idempotency    map[string]idempotencyRow
}

func (s *fakeStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storeSnapshot{
		sessions:       copyMap(s.sessions),
		grants:         copyMap(s.grants),
		decisions:      copyMap(s.decisions),
		latestDecision: copyMap(s.latestDecision),
		settledTx:      copyMap(s.settledTx),
		events:         append([]models.PolicyEvent(nil), s.events...),
		idempotency:    copyMap(s.idempotency),
	}
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = snap.sessions
	s.grants = snap.grants
	s.decisions = snap.decisions
	s.latestDecision = snap.latestDecision
	s.settledTx = snap.settledTx
	s.events = snap.events
	s.idempotency = snap.idempotency
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *fakeStore) eventsOfType(eventType models.PolicyEventType) []models.PolicyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PolicyEvent
	for _, event := range s.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

// fakeLotCatalog serves a fixed lot list and a platform-only policy stack.
type fakeLotCatalog struct {
	lots     map[string]models.Lot
	platform models.Policy
}

func (c fakeLotCatalog) GetLot(lotId string) (models.Lot, error) {
	lot, ok := c.lots[lotId]
	if !ok {
		return models.Lot{}, errors.WithStack(models.ErrUnknownLot)
	}
	return lot, nil
}

func (c fakeLotCatalog) PolicyStackFor(lot models.Lot, plate string) models.PolicyStack {
	return models.PolicyStack{Platform: c.platform, Lot: lot.Policy}
}

// fakeVerifier answers every proof with a canned settlement.
type fakeVerifier struct {
	rail   models.Rail
	result models.SettlementResult
	err    error
}

func (v fakeVerifier) Rail() models.Rail {
	return v.rail
}

func (v fakeVerifier) VerifySettlement(ctx context.Context, reference string) (models.SettlementResult, error) {
	if v.err != nil {
		return models.SettlementResult{}, v.err
	}
	return v.result, nil
}

type fakeEntryLedger struct {
	entryTime time.Time
	err       error
}

func (l fakeEntryLedger) GetEntryTime(ctx context.Context, lotId, plate string) (time.Time, error) {
	if l.err != nil {
		return time.Time{}, l.err
	}
	return l.entryTime, nil
}
