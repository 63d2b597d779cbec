package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"easyrent/internal/core/logger"
)

type Timeouts struct {
	Read     time.Duration
	Write    time.Duration
	Idle     time.Duration
	Shutdown time.Duration
}

func BuildServer(addr string, handler http.Handler, t Timeouts, l *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       t.Read,
		ReadHeaderTimeout: t.Read,
		WriteTimeout:      t.Write,
		IdleTimeout:       t.Idle,
		MaxHeaderBytes:    1 << 20, // 1MB
		ErrorLog:          logger.ToStdLogger(l.Named("http"), zapcore.WarnLevel),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, shutdown time.Duration, l *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		l.Info("http starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	l.Info("http stopped gracefully")
	return nil
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }
