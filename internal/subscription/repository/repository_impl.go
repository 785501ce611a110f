package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

type repositoryImpl struct{}

func Provide() domain.Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repositoryImpl) FindByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.Subscription, error) {
	return r.findOne(ctx, db, "org_id = ?", orgID)
}

func (r *repositoryImpl) FindBySubscriptionRef(ctx context.Context, db *gorm.DB, ref string) (*domain.Subscription, error) {
	return r.findOne(ctx, db, "external_subscription_ref = ?", ref)
}

func (r *repositoryImpl) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Where(query, arg).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repositoryImpl) Update(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

func (r *repositoryImpl) ListExpiredGrace(ctx context.Context, db *gorm.DB, now time.Time) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	err := db.WithContext(ctx).
		Where("access_status = ? AND grace_period_ends_at <= ?", domain.AccessStatusGracePeriod, now).
		Order("grace_period_ends_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
