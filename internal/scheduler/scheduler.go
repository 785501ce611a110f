package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/clock"
	"github.com/launchkitlabs/launchkit/internal/config"
	ledgerdomain "github.com/launchkitlabs/launchkit/internal/ledger/domain"
	"github.com/launchkitlabs/launchkit/internal/observability"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.Config
	clock clock.Clock

	subscriptionSvc  subscriptiondomain.Service
	subscriptionRepo subscriptiondomain.Repository
	ledgerRepo       ledgerdomain.Repository
	metrics          *observability.Metrics
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock

	SubscriptionSvc  subscriptiondomain.Service
	SubscriptionRepo subscriptiondomain.Repository
	LedgerRepo       ledgerdomain.Repository
	Metrics          *observability.Metrics
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:    p.DB,
		log:   p.Log.Named("scheduler"),
		cfg:   p.Cfg,
		clock: p.Clock,

		subscriptionSvc:  p.SubscriptionSvc,
		subscriptionRepo: p.SubscriptionRepo,
		ledgerRepo:       p.LedgerRepo,
		metrics:          p.Metrics,
	}
}

// RunForever runs the daily jobs at the configured UTC hour until the context
// is canceled.
func (s *Scheduler) RunForever(ctx context.Context) {
	for {
		next := s.nextRun(s.clock.Now(ctx))
		s.log.Info("scheduler sleeping", zap.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopped")
			return
		case <-timer.C:
		}

		s.RunOnce(ctx)
	}
}

// RunOnce executes all daily jobs. Safe to invoke repeatedly within one
// window: each job is idempotent.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if err := s.SweepGracePeriods(ctx); err != nil {
		s.log.Error("grace period sweep failed", zap.Error(err))
	}
	if err := s.PruneBillingEvents(ctx); err != nil {
		s.log.Error("billing event prune failed", zap.Error(err))
	}
}

func (s *Scheduler) nextRun(now time.Time) time.Time {
	hour := s.cfg.Scheduler.SweepHourUTC
	if hour < 0 || hour > 23 {
		hour = 3
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
