package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Periodic runs fn once at start and then every interval until ctx is done.
// A run that fails is logged; the next tick tries again.
type Periodic struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	logger   *zap.Logger
}

// NewPeriodic creates a periodic loop.
func NewPeriodic(name string, interval time.Duration, fn func(ctx context.Context) error, logger *zap.Logger) *Periodic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Periodic{name: name, interval: interval, fn: fn, logger: logger.With(zap.String("loop", name))}
}

// Run blocks until ctx is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	p.logger.Info("loop started", zap.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("loop stopping")
			return
		case <-ticker.C:
		}
	}
}

func (p *Periodic) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := p.fn(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("loop run failed", zap.Error(err))
		return
	}
	p.logger.Debug("loop run finished", zap.Duration("took", time.Since(start)))
}
