package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Refresher re-fetches the site list.
type Refresher interface {
	RefreshSites(ctx context.Context) error
}

// TokenChecker asks the backend whether its session is still valid.
type TokenChecker interface {
	CheckToken(ctx context.Context) (bool, error)
}

// Scheduler issues an explicit refresh on every tick. Each tick is an
// ordinary refresh request; stale replies are handled by the stores.
type Scheduler struct {
	sites    Refresher
	tokens   TokenChecker // nil skips the token check
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewScheduler(sites Refresher, tokens TokenChecker, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sites:    sites,
		tokens:   tokens,
		interval: interval,
		timeout:  2 * time.Minute,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start runs one refresh immediately and then one per interval until ctx is
// done. A non-positive interval disables the ticks and only waits for ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("periodic refresh disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	s.logger.Info("scheduler started", "interval", s.interval)

	s.runRefresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runRefresh(ctx)
		}
	}
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.tokens != nil {
		valid, err := s.tokens.CheckToken(tickCtx)
		if err != nil {
			s.logger.Error("token check failed", "error", err)
			return
		}
		if !valid {
			s.logger.Warn("backend session is not valid, skipping refresh")
			return
		}
	}

	if err := s.sites.RefreshSites(tickCtx); err != nil {
		s.logger.Error("refresh failed", "error", err)
	}
}
