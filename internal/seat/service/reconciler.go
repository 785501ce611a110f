package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/clock"
	memberdomain "github.com/launchkitlabs/launchkit/internal/member/domain"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

// Reconciler recomputes seats_active from the member directory. It always
// recounts from source truth instead of incrementing, so concurrent toggles
// converge on the next run.
type Reconciler struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  subscriptiondomain.Repository
}

type ReconcilerParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  subscriptiondomain.Repository
}

func NewReconciler(p ReconcilerParam) *Reconciler {
	return &Reconciler{
		db:    p.DB,
		log:   p.Log.Named("seat.reconciler"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (r *Reconciler) Recalculate(ctx context.Context, orgID snowflake.ID) (int, error) {
	if orgID == 0 {
		return 0, subscriptiondomain.ErrInvalidOrganization
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&memberdomain.Member{}).
		Where("org_id = ? AND is_active = ?", orgID, true).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	sub, err := r.repo.FindByOrgID(ctx, r.db, orgID)
	if err != nil {
		return 0, err
	}
	if sub == nil {
		return int(count), subscriptiondomain.ErrSubscriptionNotFound
	}
	if sub.SeatsActive == int(count) {
		return int(count), nil
	}

	err = r.db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"seats_active": int(count),
			"updated_at":   r.clock.Now(ctx),
		}).Error
	if err != nil {
		return 0, err
	}

	r.log.Debug("seats reconciled",
		zap.Int64("org_id", int64(orgID)),
		zap.Int("seats_active", int(count)))
	return int(count), nil
}
