package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	approvalStore "github.com/MrJamesThe3rd/outlay/internal/approval/store"
	"github.com/MrJamesThe3rd/outlay/internal/config"
	"github.com/MrJamesThe3rd/outlay/internal/currency"
	"github.com/MrJamesThe3rd/outlay/internal/database"
	directoryStore "github.com/MrJamesThe3rd/outlay/internal/directory/store"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	expenseStore "github.com/MrJamesThe3rd/outlay/internal/expense/store"
	"github.com/MrJamesThe3rd/outlay/internal/export"
	outlayHttp "github.com/MrJamesThe3rd/outlay/internal/http"
	approvalHandler "github.com/MrJamesThe3rd/outlay/internal/http/approval"
	expenseHandler "github.com/MrJamesThe3rd/outlay/internal/http/expense"
	exportHandler "github.com/MrJamesThe3rd/outlay/internal/http/export"
	importHandler "github.com/MrJamesThe3rd/outlay/internal/http/importcsv"
	matchingHandler "github.com/MrJamesThe3rd/outlay/internal/http/matching"
	ruleHandler "github.com/MrJamesThe3rd/outlay/internal/http/rule"
	"github.com/MrJamesThe3rd/outlay/internal/importer"
	"github.com/MrJamesThe3rd/outlay/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/outlay/internal/matching/store"
	"github.com/MrJamesThe3rd/outlay/internal/notify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.App.LogFormat, cfg.App.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	publisher, err := notify.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		return err
	}
	defer publisher.Close()

	if publisher == nil {
		slog.Info("NATS_URL not set, notifications disabled")
	}

	var (
		rates           = currency.NewClient(cfg.Currency.BaseURL, cfg.Currency.Timeout, cfg.Currency.CacheTTL)
		approvalService = approval.NewService(approvalStore.New(db))
		expenseService  = expense.NewService(expenseStore.New(db), approvalService, directoryStore.New(db), rates, publisher)
		matchingService = matching.NewService(matchingStore.New(db))
		importService   = importer.NewService(expenseService, matchingService)
		exportService   = export.NewService(expenseService, cfg.Server.Timeout,
			export.WithReceiptHosts(cfg.Export.ReceiptHosts...),
			export.WithMaxReceiptBytes(cfg.Export.ReceiptMaxBytes),
		)
	)

	router := outlayHttp.New(
		outlayHttp.Options{
			JWTSecret:      cfg.Auth.Secret,
			JWTIssuer:      cfg.Auth.Issuer,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
		outlayHttp.Handlers{
			Expenses:  expenseHandler.NewHandler(expenseService),
			Approvals: approvalHandler.NewHandler(expenseService),
			Rules:     ruleHandler.NewHandler(approvalService),
			Export:    exportHandler.NewHandler(exportService),
			Import:    importHandler.NewHandler(importService, cfg.Server.MaxUploadBytes),
			Merchants: matchingHandler.NewHandler(matchingService),
		},
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      2 * cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "addr", srv.Addr, "app", cfg.App.Name)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
