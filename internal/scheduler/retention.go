package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// PruneBillingEvents trims ledger rows older than the configured retention
// window. Disabled (retention 0) by default: the ledger is the audit trail.
func (s *Scheduler) PruneBillingEvents(ctx context.Context) error {
	retentionDays := s.cfg.Billing.EventRetentionDays
	if retentionDays <= 0 {
		return nil
	}

	cutoff := s.clock.Now(ctx).AddDate(0, 0, -retentionDays)
	deleted, err := s.ledgerRepo.DeleteOlderThan(ctx, s.db, cutoff)
	if err != nil {
		return err
	}

	s.log.Info("billing event prune finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))
	return nil
}
