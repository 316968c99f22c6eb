package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"library_lending/internal/api"
	"library_lending/internal/app/service"
	"library_lending/internal/app/worker"
	"library_lending/internal/common/security"
	"library_lending/internal/platform/config"
	"library_lending/internal/platform/queue"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when Redis is configured, the ledger worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		publisher service.EventPublisher = service.NopPublisher{}
		wg        sync.WaitGroup
	)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if a.cfg.RedisAddr != "" {
		rdb, err := queue.Connect(ctx, a.cfg, a.log)
		if err != nil {
			return err
		}
		defer rdb.Close()

		events := queue.NewLoanEventQueue(rdb, a.cfg.LedgerQueueName)
		publisher = events

		ledgerWorker := worker.NewLedgerWorker(
			events,
			queue.NewLocker(rdb),
			service.NewLedgerAuditor(a.books, a.loans),
			a.cfg.LedgerLockTTL(),
			a.log.Named("ledger"),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledgerWorker.Start(workerCtx)
		}()
	} else {
		a.log.Info("REDIS_ADDR not set, loan events are not published")
	}

	tokens := security.NewTokenService(a.cfg.JWTKey, a.cfg.JWTExp)
	router := api.NewRouter(api.Services{
		Auth:    a.authService(),
		Guard:   service.NewAccessGuard(tokens, a.users),
		Catalog: service.NewCatalogService(a.store, a.books, a.loans, a.cfg.BookDeletePolicy, a.log),
		Lending: service.NewLendingService(a.store, a.books, a.loans, publisher, a.log),
	}, a.log)

	server := &http.Server{
		Addr:         ":" + a.cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
		}
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	workerCancel()
	wg.Wait()
	a.log.Info("Server and worker stopped")
	return nil
}
