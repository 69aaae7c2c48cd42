package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/kjannette/aete-backend/internal/api"
	"github.com/kjannette/aete-backend/internal/config"
	"github.com/kjannette/aete-backend/internal/db"
	"github.com/kjannette/aete-backend/internal/docstore"
	"github.com/kjannette/aete-backend/internal/firebase"
	"github.com/kjannette/aete-backend/internal/gateway"
	"github.com/kjannette/aete-backend/internal/logging"
	"github.com/kjannette/aete-backend/internal/notifications"
	"github.com/kjannette/aete-backend/internal/performance"
	"github.com/kjannette/aete-backend/internal/repository"
	"github.com/kjannette/aete-backend/internal/risk"
)

const banner = `
╔══════════════════════════════════════╗
║   AETE Trading Ecosystem Backend     ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if _, err := logging.Setup(logging.Options{Level: cfg.Level, File: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "logging setup error: %v\n", err)
		os.Exit(1)
	}
	log := logging.For("main")

	if report := cfg.Validate(); !report.OK() {
		log.Errorf("Configuration invalid: %v", report)
		os.Exit(1)
	}

	cfg.Print()

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Risk + notifications feed the performance hook
	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName)
	guardian := risk.NewGuardian(risk.Limits{
		MaxPositionSize: cfg.MaxPositionSize,
		MaxDrawdown:     cfg.MaxDrawdown,
	})
	updater := performance.NewUpdater(guardian, notify)

	// Persistence
	gw, err := gateway.Connect(ctx, func(ctx context.Context) (docstore.Store, error) {
		return openStore(ctx, cfg)
	}, gateway.WithPerformanceHook(updater))
	if err != nil {
		log.WithError(err).Error("Persistence gateway failed to connect")
		os.Exit(1)
	}
	defer func() {
		if err := gw.Close(); err != nil {
			log.WithError(err).Error("Close error")
		}
	}()

	srv := api.NewServer(gw, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		log.Info("API server closed")
		return nil
	})

	log.Info("All services started successfully")

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("Server error")
		return
	}
	log.Info("Shutdown complete")
}

// openStore builds the document store named by DOCUMENT_STORE.
func openStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	log := logging.For("main")

	switch cfg.StoreBackend {
	case config.StoreFirestore:
		return firebase.Open(ctx, firebase.Options{
			CredentialsPath: cfg.FirebaseCredentialsPath,
			ProjectID:       cfg.FirebaseProjectID,
		})

	case config.StorePostgres:
		log.Infof("Connecting to %s:%d/%s ...", cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err := db.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		if err := db.TestConnection(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &pooledRepo{DocumentRepo: repository.NewDocumentRepo(pool), pool: pool}, nil

	case config.StoreBadger:
		log.Infof("Opening badger store at %s", cfg.BadgerPath)
		return docstore.OpenBadger(docstore.BadgerOptions{Path: cfg.BadgerPath})

	case config.StoreMemory:
		log.Warn("Using in-memory document store; nothing will persist")
		return docstore.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown document store %q", cfg.StoreBackend)
}

// pooledRepo owns its pool, so closing the store closes the pool.
type pooledRepo struct {
	*repository.DocumentRepo
	pool *pgxpool.Pool
}

func (p *pooledRepo) Close() error {
	_ = p.DocumentRepo.Close()
	p.pool.Close()
	logging.For("db").Info("Connection pool closed")
	return nil
}
