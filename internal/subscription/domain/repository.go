package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Subscription, error)
	FindBySubscriptionRef(ctx context.Context, db *gorm.DB, ref string) (*Subscription, error)
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error
	ListExpiredGrace(ctx context.Context, db *gorm.DB, now time.Time) ([]*Subscription, error)
}
