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
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

var ErrUsernameTaken = common.NewError(common.ErrConflict, "username already exists")

type UserRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type sqlUserRepository struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewUserRepository(store *database.Store) UserRepository {
	return &sqlUserRepository{db: store.DB, dialect: store.Dialect}
}

var userColumns = []interface{}{"id", "username", "password_hash", "role", "created_at"}

func (r *sqlUserRepository) Create(ctx context.Context, tx *sqlx.Tx, user *model.User) error {
	user.CreatedAt = dbTime(user.CreatedAt)
	ds := r.dialect.Insert(tableUsers).Rows(goqu.Record{
		"id":            user.ID,
		"username":      user.Username,
		"password_hash": user.HashedPassword,
		"role":          user.Role,
		"created_at":    user.CreatedAt,
	}).Prepared(true)

	if _, err := execOne(ctx, conn(r.db, tx), ds); err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("sqlUserRepository.Create: %w", ErrUsernameTaken)
		}
		return fmt.Errorf("sqlUserRepository.Create: %w", err)
	}
	return nil
}

func (r *sqlUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "FindByUsername", goqu.C("username").Eq(username))
}

func (r *sqlUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "FindByID", goqu.C("id").Eq(id))
}

func (r *sqlUserRepository) findOne(ctx context.Context, op string, where exp.Expression) (*model.User, error) {
	ds := r.dialect.From(tableUsers).Select(userColumns...).Where(where).Limit(1).Prepared(true)

	user := &model.User{}
	if err := getOne(ctx, r.db, user, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("sqlUserRepository.%s: %w", op, err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
