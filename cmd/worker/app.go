// cmd/worker/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"colorscheme-indexer/internal/api"
	"colorscheme-indexer/internal/classifier"
	"colorscheme-indexer/internal/config"
	"colorscheme-indexer/internal/curator"
	"colorscheme-indexer/internal/database"
	"colorscheme-indexer/internal/github"
	"colorscheme-indexer/internal/job"
	"colorscheme-indexer/internal/syncer"
	"colorscheme-indexer/internal/transport"
)

const shutdownTimeout = 10 * time.Second

// app wires configuration, storage and clients for the chosen command.
type app struct {
	logger *slog.Logger
	load   func() (*config.Config, error)

	cfg        *config.Config
	pool       *pgxpool.Pool
	cache      *transport.Cache
	store      *database.Store
	dispatcher *job.Dispatcher
}

func (a *app) open(ctx context.Context) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	// Database connection and migrations
	a.pool, err = pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.logger.Info("Database connection established")

	if err := database.RunMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	a.logger.Info("Database migrations applied successfully")
	a.store = database.New(a.pool)

	// Raw HTTP transport with optional response cache
	if cfg.UseCache {
		a.cache, err = transport.OpenCache(ctx, cfg.CachePath, cfg.CacheExpireAfter)
		if err != nil {
			return fmt.Errorf("failed to open response cache: %w", err)
		}
		purged, err := a.cache.Purge(ctx)
		if err != nil {
			a.logger.Warn("Failed to purge expired cache entries", "error", err)
		} else {
			a.logger.Info("Response cache ready", "path", cfg.CachePath, "purged", purged)
		}
	}
	web := transport.NewClient(cfg.RequestTimeout, cfg.RawRequestsPerSecond, a.cache, a.logger)

	// GitHub and the content pipeline
	ghClient := github.NewClient(cfg.GithubToken, cfg.RequestTimeout, cfg.RateLimitSafetyMargin, a.logger)
	s := syncer.New(syncer.Deps{
		Store:           a.store,
		GitHub:          ghClient,
		Files:           github.NewTreeWalker(ghClient, cfg.TreeRequestBudget, a.logger),
		Classifier:      classifier.New(web, cfg.CollectionThreshold, a.logger),
		Curator:         curator.New(web, cfg.MaxImageCount, a.logger),
		Web:             web,
		Queries:         cfg.DiscoveryQueries,
		RepositoryLimit: cfg.RepositoryLimit,
		Logger:          a.logger,
	})

	a.dispatcher = job.NewDispatcher(a.store, web, cfg.BuildWebhook, a.logger)
	a.dispatcher.Register(job.Import, syncer.NewIngester(s))
	a.dispatcher.Register(job.Update, syncer.NewMaintainer(s))
	a.dispatcher.Register(job.Clean, syncer.NewCleaner(s))
	return nil
}

// RunJob runs one job to completion.
func (a *app) RunJob(ctx context.Context, name job.Name, opts job.Options) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	report, err := a.dispatcher.Dispatch(ctx, name, opts)
	if err != nil {
		return err
	}
	a.logger.Info("Run recorded", "job", report.JobName, "report_id", report.ID)
	return nil
}

// Serve exposes the stored index until ctx is cancelled.
func (a *app) Serve(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           api.NewRouter(a.store, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutdown signal received. Stopping HTTP server.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the database pool and the response cache.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Failed to close response cache", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
