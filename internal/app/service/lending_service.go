package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library_lending/internal/common"
	"library_lending/internal/domain/model"
	"library_lending/internal/domain/repository"
	"library_lending/internal/platform/database"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrNoAvailableCopies  = common.NewError(common.ErrConflict, "no available copies")
	ErrActiveLoanNotFound = common.NewError(common.ErrNotFound, "active loan not found")
	// ErrLoanBookMissing is returned when an active loan references a book
	// that no longer exists.
	ErrLoanBookMissing = ErrBookNotFound.Also(common.ErrIntegrity)
)

// EventPublisher receives loan events after the transaction that produced
// them has committed.
type EventPublisher interface {
	Publish(ctx context.Context, event model.LoanEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.LoanEvent) error { return nil }

type LendingService struct {
	store     *database.Store
	bookRepo  repository.BookRepository
	loanRepo  repository.LoanRepository
	publisher EventPublisher
	log       *zap.Logger
	now       func() time.Time
}

func NewLendingService(
	store *database.Store,
	bookRepo repository.BookRepository,
	loanRepo repository.LoanRepository,
	publisher EventPublisher,
	log *zap.Logger,
) *LendingService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &LendingService{
		store:     store,
		bookRepo:  bookRepo,
		loanRepo:  loanRepo,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Borrow takes one copy of the book for the user. A user may hold several
// active loans on the same book.
func (s *LendingService) Borrow(ctx context.Context, userID, bookID string) (*model.BorrowReceipt, error) {
	loan := &model.Loan{
		ID:         uuid.Must(uuid.NewV7()).String(),
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: s.now(),
	}

	err := database.WithTx(ctx, s.store.DB, func(tx *sqlx.Tx) error {
		if _, err := s.bookRepo.FindByID(ctx, tx, bookID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return ErrBookNotFound
			}
			return err
		}

		took, err := s.bookRepo.TakeCopy(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if !took {
			return ErrNoAvailableCopies
		}
		return s.loanRepo.Create(ctx, tx, loan)
	})
	if err != nil {
		return nil, s.wrap("borrow", err)
	}

	s.log.Info("Book borrowed",
		zap.String("loan_id", loan.ID),
		zap.String("user_id", userID),
		zap.String("book_id", bookID))
	s.publish(ctx, model.LoanEventBorrowed, loan, loan.BorrowedAt)

	return &model.BorrowReceipt{LoanID: loan.ID, BookID: bookID, BorrowedAt: loan.BorrowedAt}, nil
}

// Return closes the user's most recently borrowed active loan on the book.
func (s *LendingService) Return(ctx context.Context, userID, bookID string) (*model.ReturnReceipt, error) {
	var (
		loan       *model.Loan
		returnedAt time.Time
	)

	err := database.WithTx(ctx, s.store.DB, func(tx *sqlx.Tx) error {
		for {
			var err error
			loan, err = s.loanRepo.FindLatestActive(ctx, tx, userID, bookID)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return ErrActiveLoanNotFound
				}
				return err
			}

			if _, err := s.bookRepo.FindByID(ctx, tx, bookID); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return ErrLoanBookMissing
				}
				return err
			}

			returnedAt = s.now().UTC().Truncate(time.Microsecond)
			if returnedAt.Before(loan.BorrowedAt) {
				returnedAt = loan.BorrowedAt
			}

			closed, err := s.loanRepo.Close(ctx, tx, loan.ID, returnedAt)
			if err != nil {
				return err
			}
			if closed {
				break
			}
			// A concurrent return closed this loan first. An older one may
			// still be active.
		}

		put, err := s.bookRepo.PutCopy(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if !put {
			s.log.Error("Copy counter already at total on return",
				zap.String("loan_id", loan.ID),
				zap.String("book_id", bookID),
				zap.Error(common.ErrIntegrity))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrIntegrity) {
			s.log.Error("Active loan references a missing book",
				zap.String("user_id", userID),
				zap.String("book_id", bookID),
				zap.Error(err))
		}
		return nil, s.wrap("return", err)
	}

	loan.ReturnedAt = &returnedAt
	s.log.Info("Book returned",
		zap.String("loan_id", loan.ID),
		zap.String("user_id", userID),
		zap.String("book_id", bookID))
	s.publish(ctx, model.LoanEventReturned, loan, returnedAt)

	return &model.ReturnReceipt{LoanID: loan.ID, BookID: bookID, ReturnedAt: returnedAt}, nil
}

// ListLoansForUser returns active and returned loans, newest first.
func (s *LendingService) ListLoansForUser(ctx context.Context, userID string) ([]model.Loan, error) {
	loans, err := s.loanRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

func (s *LendingService) publish(ctx context.Context, eventType string, loan *model.Loan, at time.Time) {
	event := model.LoanEvent{
		Type:       eventType,
		LoanID:     loan.ID,
		UserID:     loan.UserID,
		BookID:     loan.BookID,
		OccurredAt: at,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish loan event",
			zap.String("type", eventType),
			zap.String("loan_id", loan.ID),
			zap.Error(err))
	}
}

// wrap passes domain errors through and annotates infrastructure ones.
func (s *LendingService) wrap(op string, err error) error {
	var domainErr *common.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
