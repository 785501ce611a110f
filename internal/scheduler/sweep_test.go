package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/config"
	ledgerdomain "github.com/launchkitlabs/launchkit/internal/ledger/domain"
	ledgerrepository "github.com/launchkitlabs/launchkit/internal/ledger/repository"
	"github.com/launchkitlabs/launchkit/internal/observability"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
	subscriptionrepository "github.com/launchkitlabs/launchkit/internal/subscription/repository"
	subscriptionservice "github.com/launchkitlabs/launchkit/internal/subscription/service"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now(context.Context) time.Time { return c.now }

func newTestScheduler(t *testing.T) (*Scheduler, subscriptiondomain.Service, *stubClock, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&subscriptiondomain.Subscription{}, &ledgerdomain.BillingEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := &stubClock{now: time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)}
	log := zap.NewNop()
	cfg := config.Config{
		Billing:   config.BillingConfig{Currency: "USD", GracePeriodDays: 28, FreeSeatsIncluded: 3},
		Scheduler: config.SchedulerConfig{SweepHourUTC: 3},
	}
	subscriptionRepo := subscriptionrepository.Provide()
	ledgerRepo := ledgerrepository.Provide()

	subscriptionSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Cfg:        cfg,
		Repo:       subscriptionRepo,
		LedgerRepo: ledgerRepo,
	})

	sched := New(Params{
		DB:               db,
		Log:              log,
		Cfg:              cfg,
		Clock:            clk,
		SubscriptionSvc:  subscriptionSvc,
		SubscriptionRepo: subscriptionRepo,
		LedgerRepo:       ledgerRepo,
		Metrics:          observability.NewMetrics(observability.NewRegistry()),
	})
	return sched, subscriptionSvc, clk, db
}

func armGrace(t *testing.T, svc subscriptiondomain.Service, orgID snowflake.ID, ref string) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.CreateFromProvider(ctx, subscriptiondomain.CreateFromProviderRequest{
		OrgID:           orgID,
		SubscriptionRef: ref,
		Tier:            subscriptiondomain.TierStarter,
		ExternalEventID: "evt_create_" + ref,
	})
	require.NoError(t, err)
	require.NoError(t, svc.RecordPaymentFailed(ctx, subscriptiondomain.PaymentEventRequest{
		SubscriptionRef: ref,
		ExternalEventID: "evt_fail_" + ref,
	}))
}

func TestSweepGracePeriods_LocksOnlyElapsed(t *testing.T) {
	sched, svc, clk, _ := newTestScheduler(t)
	ctx := context.Background()

	armGrace(t, svc, snowflake.ID(4001), "sub_sweep_a")

	// Still inside the window: nothing locks.
	clk.now = clk.now.Add(27 * 24 * time.Hour)
	require.NoError(t, sched.SweepGracePeriods(ctx))

	sub, err := svc.GetByOrganization(ctx, snowflake.ID(4001))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.AccessStatusGracePeriod, sub.AccessStatus)

	// Elapsed: locked.
	clk.now = clk.now.Add(2 * 24 * time.Hour)
	require.NoError(t, sched.SweepGracePeriods(ctx))

	sub, err = svc.GetByOrganization(ctx, snowflake.ID(4001))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.AccessStatusLocked, sub.AccessStatus)
	assert.Nil(t, sub.GracePeriodEndsAt)
}

func TestSweepGracePeriods_RerunDedupes(t *testing.T) {
	sched, svc, clk, db := newTestScheduler(t)
	ctx := context.Background()

	armGrace(t, svc, snowflake.ID(4002), "sub_sweep_b")

	clk.now = clk.now.Add(29 * 24 * time.Hour)
	require.NoError(t, sched.SweepGracePeriods(ctx))
	require.NoError(t, sched.SweepGracePeriods(ctx))

	var lockEvents int64
	require.NoError(t, db.Model(&ledgerdomain.BillingEvent{}).
		Where("event_type = ?", ledgerdomain.EventTypeGracePeriodExpired).
		Count(&lockEvents).Error)
	assert.EqualValues(t, 1, lockEvents)
}

func TestSweepGracePeriods_PaymentRace(t *testing.T) {
	sched, svc, clk, _ := newTestScheduler(t)
	ctx := context.Background()

	armGrace(t, svc, snowflake.ID(4003), "sub_sweep_c")

	// Payment lands between listing and locking; since the state is re-checked
	// inside LockExpired, a recovered subscription stays active even after the
	// sweep fires.
	clk.now = clk.now.Add(29 * 24 * time.Hour)
	require.NoError(t, svc.RecordPaymentSucceeded(ctx, subscriptiondomain.PaymentEventRequest{
		SubscriptionRef: "sub_sweep_c",
		ExternalEventID: "evt_race_ok",
	}))
	require.NoError(t, sched.SweepGracePeriods(ctx))

	sub, err := svc.GetByOrganization(ctx, snowflake.ID(4003))
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.AccessStatusActive, sub.AccessStatus)
}

func TestPruneBillingEvents_DisabledByDefault(t *testing.T) {
	sched, svc, _, db := newTestScheduler(t)
	ctx := context.Background()

	armGrace(t, svc, snowflake.ID(4004), "sub_prune")

	var before int64
	require.NoError(t, db.Model(&ledgerdomain.BillingEvent{}).Count(&before).Error)

	require.NoError(t, sched.PruneBillingEvents(ctx))

	var after int64
	require.NoError(t, db.Model(&ledgerdomain.BillingEvent{}).Count(&after).Error)
	assert.Equal(t, before, after)
}

func TestNextRun(t *testing.T) {
	sched, _, _, _ := newTestScheduler(t)

	beforeHour := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC), sched.nextRun(beforeHour))

	afterHour := time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC), sched.nextRun(afterHour))
}
