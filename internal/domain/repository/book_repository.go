package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"library_lending/internal/common"
	"library_lending/internal/domain/model"
	"library_lending/internal/platform/database"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

type BookRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, book *model.Book) error
	FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error

	// TakeCopy decrements available_copies if at least one copy is left and
	// reports whether it did. The guard runs inside the UPDATE, so concurrent
	// callers cannot drive the counter below zero.
	TakeCopy(ctx context.Context, tx *sqlx.Tx, id string) (bool, error)
	// PutCopy increments available_copies unless it already equals
	// total_copies and reports whether it did.
	PutCopy(ctx context.Context, tx *sqlx.Tx, id string) (bool, error)
}

type sqlBookRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewBookRepository(store *database.Store) BookRepository {
	return &sqlBookRepository{db: store.DB, dialect: store.Dialect}
}

var bookColumns = []interface{}{"id", "title", "author", "slug", "total_copies", "available_copies", "created_at"}

func (r *sqlBookRepository) Create(ctx context.Context, tx *sqlx.Tx, b *model.Book) error {
	b.CreatedAt = dbTime(b.CreatedAt)
	ds := r.dialect.Insert(tableBooks).Rows(goqu.Record{
		"id":               b.ID,
		"title":            b.Title,
		"author":           b.Author,
		"slug":             b.Slug,
		"total_copies":     b.TotalCopies,
		"available_copies": b.AvailableCopies,
		"created_at":       b.CreatedAt,
	}).Prepared(true)

	if _, err := execOne(ctx, conn(r.db, tx), ds); err != nil {
		return fmt.Errorf("sqlBookRepository.Create: %w", err)
	}
	return nil
}

func (r *sqlBookRepository) FindByID(ctx context.Context, tx *sqlx.Tx, id string) (*model.Book, error) {
	ds := r.dialect.From(tableBooks).Select(bookColumns...).Where(goqu.C("id").Eq(id)).Prepared(true)

	book := &model.Book{}
	if err := getOne(ctx, conn(r.db, tx), book, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("sqlBookRepository.FindByID: %w", err)
	}
	book.CreatedAt = book.CreatedAt.UTC()
	return book, nil
}

func (r *sqlBookRepository) List(ctx context.Context) ([]model.Book, error) {
	ds := r.dialect.From(tableBooks).Select(bookColumns...).Order(goqu.C("id").Asc()).Prepared(true)

	books := []model.Book{}
	if err := getAll(ctx, r.db, &books, ds); err != nil {
		return nil, fmt.Errorf("sqlBookRepository.List: %w", err)
	}
	for i := range books {
		books[i].CreatedAt = books[i].CreatedAt.UTC()
	}
	return books, nil
}

func (r *sqlBookRepository) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	ds := r.dialect.Delete(tableBooks).Where(goqu.C("id").Eq(id)).Prepared(true)

	n, err := execOne(ctx, conn(r.db, tx), ds)
	if err != nil {
		return fmt.Errorf("sqlBookRepository.Delete: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *sqlBookRepository) TakeCopy(ctx context.Context, tx *sqlx.Tx, id string) (bool, error) {
	ds := r.dialect.Update(tableBooks).
		Set(goqu.Record{"available_copies": goqu.L("available_copies - 1")}).
		Where(goqu.C("id").Eq(id), goqu.C("available_copies").Gt(0)).
		Prepared(true)

	n, err := execOne(ctx, conn(r.db, tx), ds)
	if err != nil {
		return false, fmt.Errorf("sqlBookRepository.TakeCopy: %w", err)
	}
	return n == 1, nil
}

func (r *sqlBookRepository) PutCopy(ctx context.Context, tx *sqlx.Tx, id string) (bool, error) {
	ds := r.dialect.Update(tableBooks).
		Set(goqu.Record{"available_copies": goqu.L("available_copies + 1")}).
		Where(goqu.C("id").Eq(id), goqu.C("available_copies").Lt(goqu.I("total_copies"))).
		Prepared(true)

	n, err := execOne(ctx, conn(r.db, tx), ds)
	if err != nil {
		return false, fmt.Errorf("sqlBookRepository.PutCopy: %w", err)
	}
	return n == 1, nil
}
