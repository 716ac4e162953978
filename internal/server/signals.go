package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// SignalHandler manages graceful shutdown of the HTTP server
type SignalHandler struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// WaitForShutdown blocks until SIGINT or SIGTERM, or until ctx is done, then
// shuts the server down
func (sh *SignalHandler) WaitForShutdown(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	sh.logger.Info("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sh.shutdownTimeout)
	defer cancel()

	if err := sh.server.Shutdown(shutdownCtx); err != nil {
		sh.logger.Error("Server forced to shutdown due to timeout", "error", err)
		return err
	}
	sh.logger.Info("Server gracefully shut down")
	return nil
}

// HandleSignals starts the server and blocks until it has shut down. A
// listen failure is returned immediately.
func HandleSignals(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	listenErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewSignalHandler(server, shutdownTimeout, logger).WaitForShutdown(waitCtx)
	}()

	select {
	case err, ok := <-listenErr:
		if ok {
			cancel()
			<-done
			return err
		}
		return <-done
	case err := <-done:
		return err
	}
}
