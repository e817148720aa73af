package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes refresh sessions that are expired or
// revoked. Housekeeping only: stale rows are already unusable, so a failed
// sweep is logged and retried at the next tick.
type Sweeper struct {
	store    Store
	logger   *zap.Logger
	interval time.Duration
}

// NewSweeper creates a sweeper with the given interval.
func NewSweeper(store Store, logger *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, logger: logger, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.Repos().Sessions.DeleteExpiredOrRevoked(ctx, time.Now())
	if err != nil {
		s.logger.Warn("session sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("swept stale refresh sessions", zap.Int64("deleted", n))
	}
}
