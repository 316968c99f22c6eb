package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"library_lending/internal/common"
	"library_lending/internal/domain/model"
	"library_lending/internal/platform/database"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

type LoanRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, loan *model.Loan) error
	// FindLatestActive returns the most recently borrowed open loan the user
	// holds on the book, or common.ErrNotFound.
	FindLatestActive(ctx context.Context, tx *sqlx.Tx, userID, bookID string) (*model.Loan, error)
	// Close stamps returned_at on an open loan and reports whether this call
	// was the one that closed it.
	Close(ctx context.Context, tx *sqlx.Tx, loanID string, returnedAt time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]model.Loan, error)
	CountActiveByBook(ctx context.Context, tx *sqlx.Tx, bookID string) (int, error)
	ActiveCountsByBook(ctx context.Context) (map[string]int, error)
}

type sqlLoanRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewLoanRepository(store *database.Store) LoanRepository {
	return &sqlLoanRepository{db: store.DB, dialect: store.Dialect}
}

var loanColumns = []interface{}{"id", "user_id", "book_id", "borrowed_at", "returned_at"}

func (r *sqlLoanRepository) Create(ctx context.Context, tx *sqlx.Tx, l *model.Loan) error {
	l.BorrowedAt = dbTime(l.BorrowedAt)
	rec := goqu.Record{
		"id":          l.ID,
		"user_id":     l.UserID,
		"book_id":     l.BookID,
		"borrowed_at": l.BorrowedAt,
		"returned_at": nil,
	}
	if l.ReturnedAt != nil {
		ts := dbTime(*l.ReturnedAt)
		l.ReturnedAt = &ts
		rec["returned_at"] = ts
	}
	ds := r.dialect.Insert(tableLoans).Rows(rec).Prepared(true)

	if _, err := execOne(ctx, conn(r.db, tx), ds); err != nil {
		return fmt.Errorf("sqlLoanRepository.Create: %w", err)
	}
	return nil
}

func (r *sqlLoanRepository) FindLatestActive(ctx context.Context, tx *sqlx.Tx, userID, bookID string) (*model.Loan, error) {
	ds := r.dialect.From(tableLoans).Select(loanColumns...).
		Where(
			goqu.C("user_id").Eq(userID),
			goqu.C("book_id").Eq(bookID),
			goqu.C("returned_at").IsNull(),
		).
		Order(goqu.C("borrowed_at").Desc(), goqu.C("id").Desc()).
		Limit(1).
		Prepared(true)

	loan := &model.Loan{}
	if err := getOne(ctx, conn(r.db, tx), loan, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("sqlLoanRepository.FindLatestActive: %w", err)
	}
	normalizeLoan(loan)
	return loan, nil
}

func (r *sqlLoanRepository) Close(ctx context.Context, tx *sqlx.Tx, loanID string, returnedAt time.Time) (bool, error) {
	ds := r.dialect.Update(tableLoans).
		Set(goqu.Record{"returned_at": dbTime(returnedAt)}).
		Where(goqu.C("id").Eq(loanID), goqu.C("returned_at").IsNull()).
		Prepared(true)

	n, err := execOne(ctx, conn(r.db, tx), ds)
	if err != nil {
		return false, fmt.Errorf("sqlLoanRepository.Close: %w", err)
	}
	return n == 1, nil
}

func (r *sqlLoanRepository) ListByUser(ctx context.Context, userID string) ([]model.Loan, error) {
	ds := r.dialect.From(tableLoans).Select(loanColumns...).
		Where(goqu.C("user_id").Eq(userID)).
		Order(goqu.C("borrowed_at").Desc(), goqu.C("id").Desc()).
		Prepared(true)

	loans := []model.Loan{}
	if err := getAll(ctx, r.db, &loans, ds); err != nil {
		return nil, fmt.Errorf("sqlLoanRepository.ListByUser: %w", err)
	}
	for i := range loans {
		normalizeLoan(&loans[i])
	}
	return loans, nil
}

func (r *sqlLoanRepository) CountActiveByBook(ctx context.Context, tx *sqlx.Tx, bookID string) (int, error) {
	ds := r.dialect.From(tableLoans).
		Select(goqu.COUNT("*")).
		Where(goqu.C("book_id").Eq(bookID), goqu.C("returned_at").IsNull()).
		Prepared(true)

	var n int
	if err := getOne(ctx, conn(r.db, tx), &n, ds); err != nil {
		return 0, fmt.Errorf("sqlLoanRepository.CountActiveByBook: %w", err)
	}
	return n, nil
}

type activeCount struct {
	BookID string `db:"book_id"`
	Count  int    `db:"active"`
}

func (r *sqlLoanRepository) ActiveCountsByBook(ctx context.Context) (map[string]int, error) {
	ds := r.dialect.From(tableLoans).
		Select(goqu.C("book_id"), goqu.COUNT("*").As("active")).
		Where(goqu.C("returned_at").IsNull()).
		GroupBy(goqu.C("book_id")).
		Prepared(true)

	rows := []activeCount{}
	if err := getAll(ctx, r.db, &rows, ds); err != nil {
		return nil, fmt.Errorf("sqlLoanRepository.ActiveCountsByBook: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.BookID] = row.Count
	}
	return counts, nil
}

func normalizeLoan(l *model.Loan) {
	l.BorrowedAt = l.BorrowedAt.UTC()
	if l.ReturnedAt != nil {
		ts := l.ReturnedAt.UTC()
		l.ReturnedAt = &ts
	}
}
