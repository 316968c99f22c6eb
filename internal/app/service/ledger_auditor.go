package service

import (
	"context"
	"errors"
	"fmt"

	"library_lending/internal/common"
	"library_lending/internal/domain/model"
	"library_lending/internal/domain/repository"
)

// LedgerAuditor recomputes each book's available copies from its active
// loans and reports books whose stored counter disagrees.
type LedgerAuditor struct {
	bookRepo repository.BookRepository
	loanRepo repository.LoanRepository
}

func NewLedgerAuditor(bookRepo repository.BookRepository, loanRepo repository.LoanRepository) *LedgerAuditor {
	return &LedgerAuditor{bookRepo: bookRepo, loanRepo: loanRepo}
}

// AuditBook returns the book's drift, or nil when the counter is consistent.
func (a *LedgerAuditor) AuditBook(ctx context.Context, bookID string) (*model.LedgerDrift, error) {
	book, err := a.bookRepo.FindByID(ctx, nil, bookID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("audit book: %w", err)
	}
	active, err := a.loanRepo.CountActiveByBook(ctx, nil, bookID)
	if err != nil {
		return nil, fmt.Errorf("audit book: %w", err)
	}
	return driftOf(book, active), nil
}

// AuditAll checks every book in the catalog.
func (a *LedgerAuditor) AuditAll(ctx context.Context) ([]model.LedgerDrift, error) {
	books, err := a.bookRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit all: %w", err)
	}
	counts, err := a.loanRepo.ActiveCountsByBook(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit all: %w", err)
	}

	drifts := []model.LedgerDrift{}
	for i := range books {
		if d := driftOf(&books[i], counts[books[i].ID]); d != nil {
			drifts = append(drifts, *d)
		}
	}
	return drifts, nil
}

func driftOf(book *model.Book, active int) *model.LedgerDrift {
	expected := book.TotalCopies - active
	if expected == book.AvailableCopies {
		return nil
	}
	return &model.LedgerDrift{
		BookID:            book.ID,
		TotalCopies:       book.TotalCopies,
		AvailableCopies:   book.AvailableCopies,
		ActiveLoans:       active,
		ExpectedAvailable: expected,
	}
}
