package sweeper

import (
	"context"
	"time"

	"github.com/aperturelab/proofing/common/logger"
)

const defaultSweepInterval = 5 * time.Minute

// Expirer closes overdue collections; the lifecycle service implements it
type Expirer interface {
	ExpireSweep(ctx context.Context) (int, error)
}

// ExpireSweeper periodically runs the expiration sweep
type ExpireSweeper struct {
	expirer  Expirer
	interval time.Duration
	log      *logger.Logger
}

// ExpireOption configures an ExpireSweeper
type ExpireOption func(*ExpireSweeper)

// WithSweepInterval overrides how often the sweep runs
func WithSweepInterval(d time.Duration) ExpireOption {
	return func(s *ExpireSweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func NewExpireSweeper(expirer Expirer, log *logger.Logger, opts ...ExpireOption) *ExpireSweeper {
	s := &ExpireSweeper{
		expirer:  expirer,
		interval: defaultSweepInterval,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps once immediately, then on every tick until ctx is cancelled
func (s *ExpireSweeper) Run(ctx context.Context) {
	s.log.Info("expire sweeper started", "interval", s.interval)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expire sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpireSweeper) sweep(ctx context.Context) {
	count, err := s.expirer.ExpireSweep(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "expiration sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.log.Info("expired collections", "count", count)
	}
}
