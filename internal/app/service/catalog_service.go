package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library_lending/internal/common"
	"library_lending/internal/domain/model"
	"library_lending/internal/domain/repository"
	"library_lending/internal/platform/config"
	"library_lending/internal/platform/database"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrBookNotFound       = common.NewError(common.ErrNotFound, "book not found")
	ErrBookHasActiveLoans = common.NewError(common.ErrConflict, "book has active loans")
)

type CatalogService struct {
	store        *database.Store
	bookRepo     repository.BookRepository
	loanRepo     repository.LoanRepository
	deletePolicy string
	log          *zap.Logger
	now          func() time.Time
}

func NewCatalogService(
	store *database.Store,
	bookRepo repository.BookRepository,
	loanRepo repository.LoanRepository,
	deletePolicy string,
	log *zap.Logger,
) *CatalogService {
	if deletePolicy == "" {
		deletePolicy = config.DeletePolicyUnconditional
	}
	return &CatalogService{
		store:        store,
		bookRepo:     bookRepo,
		loanRepo:     loanRepo,
		deletePolicy: deletePolicy,
		log:          log,
		now:          time.Now,
	}
}

type CreateBookRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Author      string `json:"author" validate:"required,min=1,max=200"`
	TotalCopies int    `json:"total_copies" validate:"gte=1,lte=100"`
}

func (s *CatalogService) CreateBook(ctx context.Context, req CreateBookRequest) (*model.Book, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	book := &model.Book{
		ID:              uuid.Must(uuid.NewV7()).String(),
		Title:           req.Title,
		Author:          req.Author,
		Slug:            slug.Make(req.Title),
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		CreatedAt:       s.now(),
	}
	if err := s.bookRepo.Create(ctx, nil, book); err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	s.log.Info("Book created",
		zap.String("book_id", book.ID),
		zap.String("slug", book.Slug),
		zap.Int("total_copies", book.TotalCopies))
	return book, nil
}

func (s *CatalogService) GetBook(ctx context.Context, id string) (*model.Book, error) {
	book, err := s.bookRepo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

func (s *CatalogService) ListBooks(ctx context.Context) ([]model.Book, error) {
	books, err := s.bookRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// DeleteBook removes a book. Under the unconditional policy loans that point
// at it are left in place and later surface as integrity faults on return.
func (s *CatalogService) DeleteBook(ctx context.Context, id string) error {
	err := database.WithTx(ctx, s.store.DB, func(tx *sqlx.Tx) error {
		if s.deletePolicy == config.DeletePolicyRejectActive {
			active, err := s.loanRepo.CountActiveByBook(ctx, tx, id)
			if err != nil {
				return err
			}
			if active > 0 {
				return ErrBookHasActiveLoans
			}
		}
		return s.bookRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return ErrBookNotFound
		}
		if errors.Is(err, common.ErrConflict) {
			return err
		}
		return fmt.Errorf("failed to delete book: %w", err)
	}

	s.log.Info("Book deleted", zap.String("book_id", id), zap.String("policy", s.deletePolicy))
	return nil
}
