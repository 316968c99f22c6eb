package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"library_lending/internal/app/service"
	"library_lending/internal/domain/model"
	"library_lending/internal/platform/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	events    chan model.LoanEvent
	mu        sync.Mutex
	requeued  []model.LoanEvent
	redeliver bool // push requeued events back onto events, as the Redis list does
}

func newFakeSource(events ...model.LoanEvent) *fakeSource {
	s := &fakeSource{events: make(chan model.LoanEvent, len(events)+8)}
	for _, e := range events {
		s.events <- e
	}
	return s
}

func (s *fakeSource) Pop(ctx context.Context, timeout time.Duration) (*model.LoanEvent, error) {
	select {
	case e := <-s.events:
		return &e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, queue.ErrEmpty
	}
}

func (s *fakeSource) Requeue(_ context.Context, e model.LoanEvent) error {
	s.mu.Lock()
	s.requeued = append(s.requeued, e)
	redeliver := s.redeliver
	s.mu.Unlock()
	if redeliver {
		s.events <- e
	}
	return nil
}

func (s *fakeSource) Requeued() []model.LoanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LoanEvent(nil), s.requeued...)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
	attempts int
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	if _, busy := l.held[key]; busy {
		return "", false, nil
	}
	l.held[key] = "token-" + key
	return l.held[key], true, nil
}

func (l *fakeLocker) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

func (l *fakeLocker) Release(_ context.Context, key, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return false, nil
	}
	delete(l.held, key)
	l.released = append(l.released, key)
	return true, nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	audited []string
	drift   *model.LedgerDrift
	err     error
	done    chan struct{}
}

func (a *fakeAuditor) AuditBook(_ context.Context, bookID string) (*model.LedgerDrift, error) {
	a.mu.Lock()
	a.audited = append(a.audited, bookID)
	a.mu.Unlock()
	if a.done != nil {
		a.done <- struct{}{}
	}
	return a.drift, a.err
}

func (a *fakeAuditor) Audited() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.audited...)
}

func borrowed(bookID string) model.LoanEvent {
	return model.LoanEvent{Type: model.LoanEventBorrowed, LoanID: "loan-1", UserID: "user-1", BookID: bookID, OccurredAt: time.Now().UTC()}
}

func TestProcessEventAuditsUnderLock(t *testing.T) {
	locker := newFakeLocker()
	auditor := &fakeAuditor{drift: &model.LedgerDrift{BookID: "b1", TotalCopies: 2, AvailableCopies: 2, ActiveLoans: 1, ExpectedAvailable: 1}}
	w := NewLedgerWorker(newFakeSource(), locker, auditor, time.Second, zaptest.NewLogger(t))

	w.ProcessEvent(context.Background(), borrowed("b1"))

	assert.Equal(t, []string{"b1"}, auditor.Audited())
	assert.Equal(t, []string{lockPrefix + "b1"}, locker.released)
	assert.Empty(t, locker.held)
}

func TestProcessEventRequeuesWhenLocked(t *testing.T) {
	source := newFakeSource()
	locker := newFakeLocker()
	locker.held[lockPrefix+"b1"] = "other-worker"
	auditor := &fakeAuditor{}
	w := NewLedgerWorker(source, locker, auditor, time.Second, zaptest.NewLogger(t))
	w.requeueDelay = 50 * time.Millisecond

	event := borrowed("b1")
	start := time.Now()
	w.ProcessEvent(context.Background(), event)
	assert.GreaterOrEqual(t, time.Since(start), w.requeueDelay)

	assert.Empty(t, auditor.Audited())
	assert.Equal(t, []model.LoanEvent{event}, source.Requeued())
	assert.Equal(t, "other-worker", locker.held[lockPrefix+"b1"], "foreign lock untouched")
}

func TestStartPacesEventsForLockedBook(t *testing.T) {
	source := newFakeSource(borrowed("b1"))
	source.redeliver = true
	locker := newFakeLocker()
	locker.held[lockPrefix+"b1"] = "other-worker"
	w := NewLedgerWorker(source, locker, &fakeAuditor{}, time.Second, zaptest.NewLogger(t))
	w.requeueDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	w.Start(ctx)

	attempts := locker.Attempts()
	assert.GreaterOrEqual(t, attempts, 2)
	assert.LessOrEqual(t, attempts, 8, "one attempt per requeue delay")
}

func TestRequeueDelayHonoursCancellation(t *testing.T) {
	locker := newFakeLocker()
	locker.held[lockPrefix+"b1"] = "other-worker"
	w := NewLedgerWorker(newFakeSource(), locker, &fakeAuditor{}, time.Second, zaptest.NewLogger(t))
	w.requeueDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	w.ProcessEvent(ctx, borrowed("b1"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestProcessEventToleratesAuditErrors(t *testing.T) {
	for _, auditErr := range []error{service.ErrBookNotFound, errors.New("db down")} {
		locker := newFakeLocker()
		w := NewLedgerWorker(newFakeSource(), locker, &fakeAuditor{err: auditErr}, time.Second, zaptest.NewLogger(t))
		w.ProcessEvent(context.Background(), borrowed("b1"))
		assert.Empty(t, locker.held, "lock released after %v", auditErr)
	}
}

func TestStartConsumesUntilCancelled(t *testing.T) {
	source := newFakeSource(borrowed("b1"), borrowed("b2"))
	auditor := &fakeAuditor{done: make(chan struct{}, 2)}
	w := NewLedgerWorker(source, newFakeLocker(), auditor, time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-auditor.done:
		case <-time.After(2 * time.Second):
			t.Fatal("event was not processed")
		}
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.Equal(t, []string{"b1", "b2"}, auditor.Audited())
}
