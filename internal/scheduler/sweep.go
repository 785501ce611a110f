package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// SweepGracePeriods locks every subscription whose grace window has elapsed.
// Failures are isolated per record: one bad row never aborts the run. A
// payment-succeeded event racing the sweep is safe because LockExpired
// re-checks the window inside its own transaction.
func (s *Scheduler) SweepGracePeriods(ctx context.Context) error {
	s.metrics.SweeperRuns.Inc()

	now := s.clock.Now(ctx)
	expired, err := s.subscriptionRepo.ListExpiredGrace(ctx, s.db, now)
	if err != nil {
		return err
	}

	s.log.Info("grace period sweep started",
		zap.Time("now", now),
		zap.Int("candidates", len(expired)))

	locked := 0
	for _, sub := range expired {
		if err := s.subscriptionSvc.LockExpired(ctx, sub.ID); err != nil {
			s.metrics.SweeperErrors.Inc()
			s.log.Error("failed to lock expired subscription",
				zap.String("subscription_id", sub.ID.String()),
				zap.Int64("org_id", int64(sub.OrgID)),
				zap.Error(err))
			continue
		}
		locked++
		s.metrics.SweeperLocked.Inc()
	}

	s.log.Info("grace period sweep finished",
		zap.Int("candidates", len(expired)),
		zap.Int("locked", locked))
	return nil
}
