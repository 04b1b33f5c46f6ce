package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/osse101/riddlegroup/internal/bootstrap"
	"github.com/osse101/riddlegroup/internal/composition"
	"github.com/osse101/riddlegroup/internal/config"
	"github.com/osse101/riddlegroup/internal/group"
	"github.com/osse101/riddlegroup/internal/handler"
	"github.com/osse101/riddlegroup/internal/logger"
	"github.com/osse101/riddlegroup/internal/server"
)

// @title Riddle Group API
// @version 1.0
// @description Collaborative riddle-solving groups: formation, reputation pooling and payouts.
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "riddlegroup: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logFile, err := bootstrap.SetupLogger(cfg)
	if err != nil {
		return err
	}

	warnings, err := config.ValidateEnvWithWarnings()
	if err != nil {
		logger.Warn("Environment check failed", "error", err)
	}
	for _, w := range warnings {
		logger.Warn("Environment warning", "warning", w)
	}

	handler.InitValidator()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.InitializeStores(ctx, cfg)
	if err != nil {
		return err
	}

	eventBus, publisher, err := bootstrap.InitializeEventSystem(cfg)
	if err != nil {
		stores.Close()
		return err
	}
	if err := bootstrap.RegisterEventHandlers(eventBus); err != nil {
		stores.Close()
		return err
	}

	groupService := group.NewService(
		stores.Groups,
		composition.NewValidator(stores.Reputation),
		stores.Tokens,
		publisher,
		group.Config{
			ChallengeContract: cfg.ChallengeContract,
			JoinWindow:        cfg.JoinWindow,
			DisbandFee:        cfg.DisbandFee,
			CacheSize:         cfg.GroupCacheSize,
			CacheTTL:          cfg.GroupCacheTTL,
		},
	)

	srv := server.NewServer(server.Options{
		Port:              cfg.Port,
		APIKey:            cfg.APIKey,
		Version:           cfg.Version,
		TrustedProxies:    cfg.TrustedProxies,
		RequestsPerWindow: cfg.RateLimitRequests,
		ClientWindow:      cfg.RateLimitWindow,
		DBPool:            stores.ReadinessPool(),
	}, groupService)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		if runErr != nil {
			logger.Error("Server failed", "error", runErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), bootstrap.ShutdownTimeout)
	defer cancel()
	components := bootstrap.ShutdownComponents{
		Server:             srv,
		ResilientPublisher: publisher,
		Stores:             stores,
	}
	if logFile != nil {
		components.LogFile = logFile
	}
	bootstrap.GracefulShutdown(shutdownCtx, components)

	return runErr
}
