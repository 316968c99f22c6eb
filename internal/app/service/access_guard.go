package service

import (
	"context"
	"errors"
	"fmt"

	"library_lending/internal/common"
	"library_lending/internal/common/security"
	"library_lending/internal/domain/model"
	"library_lending/internal/domain/repository"
)

var (
	ErrNotAuthenticated = common.NewError(common.ErrUnauthorized, "not authenticated")
	ErrInvalidToken     = common.NewError(common.ErrUnauthorized, "invalid token")
	ErrUserNotFound     = common.NewError(common.ErrUnauthorized, "user not found")
	ErrAdminOnly        = common.NewError(common.ErrForbidden, "admin only")
)

// AccessGuard resolves bearer tokens to users and checks roles.
type AccessGuard struct {
	tokens   *security.TokenService
	userRepo repository.UserRepository
}

func NewAccessGuard(tokens *security.TokenService, userRepo repository.UserRepository) *AccessGuard {
	return &AccessGuard{tokens: tokens, userRepo: userRepo}
}

// Authenticate verifies the token and loads its subject. The user must still
// exist; an empty token is ErrNotAuthenticated.
func (g *AccessGuard) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	claims, err := g.tokens.VerifyToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := g.userRepo.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load token subject: %w", err)
	}
	return user, nil
}

// RequireRole is an exact match; admin does not imply any other role.
func (g *AccessGuard) RequireRole(user *model.User, role string) error {
	if user == nil {
		return ErrNotAuthenticated
	}
	if user.Role != role {
		if role == model.RoleAdmin {
			return ErrAdminOnly
		}
		return common.NewError(common.ErrForbidden, role+" only")
	}
	return nil
}
