package worker

import (
	"context"
	"errors"
	"time"

	"library_lending/internal/app/service"
	"library_lending/internal/domain/model"
	"library_lending/internal/platform/queue"

	"go.uber.org/zap"
)

const (
	popTimeout   = 5 * time.Second
	errorBackoff = 5 * time.Second
	requeueDelay = 500 * time.Millisecond
	lockPrefix   = "ledger_lock:"
)

type EventSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*model.LoanEvent, error)
	Requeue(ctx context.Context, event model.LoanEvent) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) (bool, error)
}

type BookAuditor interface {
	AuditBook(ctx context.Context, bookID string) (*model.LedgerDrift, error)
}

// LedgerWorker consumes loan events and re-audits the book each one touched.
// Audits of the same book are serialized across workers by a Redis lock.
type LedgerWorker struct {
	source       EventSource
	locker       Locker
	auditor      BookAuditor
	lockTTL      time.Duration
	backoff      time.Duration
	requeueDelay time.Duration
	log          *zap.Logger
}

func NewLedgerWorker(source EventSource, locker Locker, auditor BookAuditor, lockTTL time.Duration, log *zap.Logger) *LedgerWorker {
	return &LedgerWorker{
		source:       source,
		locker:       locker,
		auditor:      auditor,
		lockTTL:      lockTTL,
		backoff:      errorBackoff,
		requeueDelay: requeueDelay,
		log:          log,
	}
}

// Start runs until ctx is cancelled.
func (w *LedgerWorker) Start(ctx context.Context) {
	w.log.Info("Ledger worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info("Ledger worker stopping")
			return
		}

		event, err := w.source.Pop(ctx, popTimeout)
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrEmpty):
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			default:
				w.log.Error("Failed to pop loan event", zap.Error(err))
				w.sleep(ctx, w.backoff)
			}
			continue
		}
		w.ProcessEvent(ctx, *event)
	}
}

// ProcessEvent audits the event's book while holding that book's lock. If the
// lock is busy the event goes back on the queue and ProcessEvent waits
// requeueDelay before returning.
func (w *LedgerWorker) ProcessEvent(ctx context.Context, event model.LoanEvent) {
	log := w.log.With(
		zap.String("event", event.Type),
		zap.String("loan_id", event.LoanID),
		zap.String("book_id", event.BookID))

	key := lockPrefix + event.BookID
	token, ok, err := w.locker.Acquire(ctx, key, w.lockTTL)
	if err != nil {
		log.Error("Failed to acquire ledger lock", zap.Error(err))
		w.requeue(ctx, event, log)
		return
	}
	if !ok {
		log.Debug("Ledger lock busy, re-queueing")
		w.requeue(ctx, event, log)
		return
	}
	defer func() {
		released, err := w.locker.Release(context.WithoutCancel(ctx), key, token)
		if err != nil {
			log.Error("Failed to release ledger lock", zap.Error(err))
		} else if !released {
			log.Warn("Ledger lock expired before release")
		}
	}()

	drift, err := w.auditor.AuditBook(ctx, event.BookID)
	switch {
	case errors.Is(err, service.ErrBookNotFound):
		log.Info("Audited book no longer exists")
	case err != nil:
		log.Error("Ledger audit failed", zap.Error(err))
	case drift != nil:
		log.Warn("Ledger drift detected",
			zap.Int("total_copies", drift.TotalCopies),
			zap.Int("available_copies", drift.AvailableCopies),
			zap.Int("active_loans", drift.ActiveLoans),
			zap.Int("expected_available", drift.ExpectedAvailable))
	default:
		log.Debug("Ledger consistent")
	}
}

func (w *LedgerWorker) requeue(ctx context.Context, event model.LoanEvent, log *zap.Logger) {
	if err := w.source.Requeue(ctx, event); err != nil {
		log.Error("Failed to re-queue loan event", zap.Error(err))
	}
	w.sleep(ctx, w.requeueDelay)
}

func (w *LedgerWorker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
