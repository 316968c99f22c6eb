package main

import (
	"context"
	"fmt"
	"os"

	"library_lending/internal/app/service"
	"library_lending/internal/common/security"
	"library_lending/internal/domain/repository"
	"library_lending/internal/platform/config"
	"library_lending/internal/platform/database"
	"library_lending/internal/platform/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "library",
		Short:        "Library lending service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newCreateAdminCmd(),
		newAuditCmd(),
	)
	return rootCmd
}

// app holds what every subcommand is built from.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *database.Store

	users repository.UserRepository
	books repository.BookRepository
	loans repository.LoanRepository
}

func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if cfg.DBAutoMigrate {
		if err := database.Migrate(cfg.DBDriver, cfg.DBDSN, log); err != nil {
			return nil, err
		}
	}
	store, err := database.Connect(ctx, cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:   cfg,
		log:   log,
		store: store,
		users: repository.NewUserRepository(store),
		books: repository.NewBookRepository(store),
		loans: repository.NewLoanRepository(store),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

func (a *app) authService() *service.AuthService {
	return service.NewAuthService(
		a.users,
		security.NewPasswordHasher(a.cfg.BcryptCost),
		security.NewTokenService(a.cfg.JWTKey, a.cfg.JWTExp),
		a.log,
	)
}
