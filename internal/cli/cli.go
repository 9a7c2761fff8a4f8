// Package cli holds the process setup shared by the frameconv commands.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/EbrithilNogare/frameconv/internal/infra/config"
	"github.com/EbrithilNogare/frameconv/internal/infra/fsenum"
	"github.com/EbrithilNogare/frameconv/internal/infra/metrics"
	"github.com/EbrithilNogare/frameconv/internal/infra/pnm"
	"github.com/EbrithilNogare/frameconv/internal/infra/ppm"
	"github.com/EbrithilNogare/frameconv/internal/infra/tracing"
	"github.com/EbrithilNogare/frameconv/pkg/logger"
	"go.uber.org/zap"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// Runtime is the logger plus the optional tracing and metrics servers of one
// command.
type Runtime struct {
	Logger  *zap.Logger
	closers []func(context.Context) error
}

// Bootstrap builds the logger and starts tracing and metrics when configured.
// Tracing failures are logged and ignored.
func Bootstrap(ctx context.Context, cfg *config.Config, service string) (*Runtime, error) {
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.With(zap.String("service", service))
	rt := &Runtime{Logger: log}

	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, service)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else if tp != nil {
		rt.closers = append(rt.closers, func(ctx context.Context) error { return tracing.Shutdown(ctx, tp) })
	}

	if srv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log); srv != nil {
		rt.closers = append(rt.closers, func(ctx context.Context) error { return metrics.Shutdown(ctx, srv) })
	}
	return rt, nil
}

// Close stops what Bootstrap started, in reverse order, and flushes the logger.
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.Logger.Warn("shutdown", zap.Error(err))
		}
	}
	_ = rt.Logger.Sync()
}

// NewFrameDecoder builds the P3 decoder from the value policy and size limit.
func NewFrameDecoder(cfg *config.Config) (*ppm.Decoder, error) {
	policy, err := ppm.ParseValuePolicy(cfg.ValuePolicy)
	if err != nil {
		return nil, err
	}
	return ppm.NewDecoder(ppm.WithValuePolicy(policy), ppm.WithMaxPixels(cfg.MaxFramePixels)), nil
}

// NewVideoFrameDecoder builds the gopnm backed decoder of the video pipeline
// with the same value policy and size limit.
func NewVideoFrameDecoder(cfg *config.Config) (*pnm.Decoder, error) {
	policy, err := ppm.ParseValuePolicy(cfg.ValuePolicy)
	if err != nil {
		return nil, err
	}
	return pnm.NewDecoder(pnm.WithValuePolicy(policy), pnm.WithMaxPixels(cfg.MaxFramePixels)), nil
}

func NewEnumerator(cfg *config.Config) (*fsenum.Enumerator, error) {
	order, err := fsenum.ParseOrder(cfg.FrameOrder)
	if err != nil {
		return nil, err
	}
	return fsenum.NewEnumerator(order), nil
}
