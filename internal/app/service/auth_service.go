package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library_lending/internal/common"
	"library_lending/internal/common/security"
	"library_lending/internal/domain/model"
	"library_lending/internal/domain/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrInvalidCredentials = common.NewError(common.ErrUnauthorized, "invalid username or password")

type AuthService struct {
	userRepo repository.UserRepository
	hasher   *security.PasswordHasher
	tokens   *security.TokenService
	log      *zap.Logger
	now      func() time.Time

	// dummyHash is compared against when the username is unknown so both
	// login failures cost one bcrypt verification.
	dummyHash string
}

func NewAuthService(
	userRepo repository.UserRepository,
	hasher *security.PasswordHasher,
	tokens *security.TokenService,
	log *zap.Logger,
) *AuthService {
	dummy, err := hasher.HashPassword(uuid.NewString())
	if err != nil {
		log.Warn("Could not prepare dummy password hash", zap.Error(err))
	}
	return &AuthService{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		now:       time.Now,
		dummyHash: dummy,
	}
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type AccountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Signup registers a regular user.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AccountResponse, error) {
	return s.register(ctx, req, model.RoleUser)
}

// BootstrapAdmin registers an administrator. The HTTP route is unauthenticated.
func (s *AuthService) BootstrapAdmin(ctx context.Context, req SignupRequest) (*AccountResponse, error) {
	return s.register(ctx, req, model.RoleAdmin)
}

func (s *AuthService) register(ctx context.Context, req SignupRequest, role string) (*AccountResponse, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	hashedPassword, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Username:       req.Username,
		HashedPassword: hashedPassword,
		Role:           role,
		CreatedAt:      s.now(),
	}
	if err := s.userRepo.Create(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("role", user.Role))
	return &AccountResponse{ID: user.ID, Username: user.Username, Role: user.Role}, nil
}

// Login exchanges credentials for an access token. Unknown users and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.CheckPasswordHash(req.Password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}
