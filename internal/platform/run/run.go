package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultGrace bounds how long shutdown hooks may run.
const DefaultGrace = 10 * time.Second

type Runner struct {
	Logger *zap.Logger
	Grace  time.Duration
}

func New(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Logger: log, Grace: DefaultGrace}
}

// WithSignals runs start until it returns or SIGINT/SIGTERM arrives and maps
// the outcome to a process exit code.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.Until(ctx, start)
}

// Until is WithSignals with a caller supplied parent context. On
// cancellation it waits up to Grace for start to return.
func (r *Runner) Until(ctx context.Context, start func(ctx context.Context) error) int {
	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
		select {
		case err := <-errCh:
			return r.code(err)
		case <-time.After(r.grace()):
			r.Logger.Warn("shutdown grace period exceeded", zap.Duration("grace", r.grace()))
			return 1
		}
	case err := <-errCh:
		return r.code(err)
	}
}

// Graceful calls shutdown with a fresh context bounded by Grace. The caller's
// ctx is typically already cancelled at this point.
func (r *Runner) Graceful(shutdown func(context.Context) error) {
	c, cancel := context.WithTimeout(context.Background(), r.grace())
	defer cancel()
	if err := shutdown(c); err != nil {
		r.Logger.Warn("graceful shutdown", zap.Error(err))
	}
}

func (r *Runner) code(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func (r *Runner) grace() time.Duration {
	if r.Grace <= 0 {
		return DefaultGrace
	}
	return r.Grace
}

func Exit(code int) {
	os.Exit(code)
}
