package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Start serves handler on addr in the background. The returned context is
// cancelled when the server stops; cancelling ctx shuts the server down.
func Start(ctx context.Context, serviceName, addr string, handler http.Handler, logger *zap.Logger) context.Context {
	logger.Info("starting service", zap.String("service", serviceName), zap.String("addr", addr))
	return startService(ctx, serviceName, addr, handler, logger)
}

func startService(ctx context.Context, serviceName, addr string, handler http.Handler, logger *zap.Logger) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("service stopped", zap.String("service", serviceName), zap.Error(err))
		}
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.String("service", serviceName), zap.Error(err))
		}
		logger.Info("service stopped", zap.String("service", serviceName))
	}()

	return ctx
}
