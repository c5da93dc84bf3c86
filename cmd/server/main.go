package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/blackmichael/scrutiny-graph/internal/config"
	"github.com/blackmichael/scrutiny-graph/internal/domain"
	"github.com/blackmichael/scrutiny-graph/internal/httpserver"
	"github.com/blackmichael/scrutiny-graph/internal/metrics"
	"github.com/blackmichael/scrutiny-graph/internal/relay"
	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
	"github.com/blackmichael/scrutiny-graph/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// Set up repository (implements both PostRepository and CursorRepository)
	repo, err := sqlite.NewRepository(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	logger.Info("opened database", "path", cfg.DatabasePath)

	collector := metrics.NewCollector()
	engine := scrutiny.New(
		scrutiny.WithMaxDepth(cfg.MaxDepth),
		scrutiny.WithObserver(scrutiny.Observers{scrutiny.NewLogObserver(logger), collector}),
	)

	graphService, err := domain.NewGraphService(engine, repo, repo, collector, logger)
	if err != nil {
		return fmt.Errorf("create graph service: %w", err)
	}

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logRelayInfo(ctx, cfg.Relays, logger)

	g, ctx := errgroup.WithContext(ctx)

	// One subscriber per relay; the store deduplicates posts seen on several.
	for _, url := range cfg.Relays {
		subscriber := relay.NewSubscriber(url, graphService, logger)
		g.Go(func() error {
			if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("relay %s: %w", url, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		graphService.StartRefreshJob(ctx, cfg.RefreshInterval)
		return nil
	})

	server := httpserver.NewServer(cfg, graphService, collector.Handler(), logger)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down http server", "error", err)
		}
		return nil
	})

	logger.Info("server started", "port", cfg.Port, "relays", cfg.Relays)

	return g.Wait()
}

// logRelayInfo logs each relay's advertised limits. Failures are not fatal.
func logRelayInfo(ctx context.Context, relays []string, logger *slog.Logger) {
	client := relay.NewInfoClient()
	for _, url := range relays {
		info, err := client.Fetch(ctx, url)
		if err != nil {
			logger.Warn("failed to fetch relay info", "relay", url, "error", err)
			continue
		}
		logger.Info("relay info",
			"relay", url,
			"name", info.Name,
			"software", info.Software,
			"min_pow_difficulty", info.MinPowDifficulty(),
		)
	}
}
