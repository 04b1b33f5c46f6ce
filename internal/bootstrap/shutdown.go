package bootstrap

import (
	"context"
	"io"

	"github.com/osse101/riddlegroup/internal/event"
	"github.com/osse101/riddlegroup/internal/logger"
	"github.com/osse101/riddlegroup/internal/server"
)

// ShutdownComponents holds all components that need graceful shutdown.
// Nil fields are skipped.
type ShutdownComponents struct {
	Server             *server.Server
	ResilientPublisher *event.ResilientPublisher
	Stores             *Stores
	LogFile            io.Closer
}

// GracefulShutdown stops the components in dependency order:
// 1. HTTP server (stop accepting new requests)
// 2. Event publisher (flush pending retries to the bus or the dead-letter file)
// 3. Database pool
// 4. Session log file
//
// Errors during shutdown are logged but do not stop the shutdown sequence.
func GracefulShutdown(ctx context.Context, components ShutdownComponents) {
	if components.Server != nil {
		logger.Info(LogMsgShuttingDownServer)
		if err := components.Server.Stop(ctx); err != nil {
			logger.Error(LogMsgServerForcedShutdown, "error", err)
		}
	}

	if components.ResilientPublisher != nil {
		logger.Info(LogMsgShuttingDownEventPublisher)
		if err := components.ResilientPublisher.Shutdown(ctx); err != nil {
			logger.Error(LogMsgResilientPublisherFailed, "error", err)
		}
	}

	if components.Stores != nil {
		components.Stores.Close()
	}

	logger.Info(LogMsgServerStopped)

	if components.LogFile != nil {
		if err := components.LogFile.Close(); err != nil {
			logger.Error(LogMsgLogFileCloseFailed, "error", err)
		}
	}
}
