package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/pkg/db/pagination"
)

type Repository interface {
	// Append writes the event unless its ExternalEventID is already present.
	// The bool reports whether a new row was written; on a duplicate the
	// returned id is the original row's.
	Append(ctx context.Context, db *gorm.DB, event *BillingEvent) (snowflake.ID, bool, error)
	Exists(ctx context.Context, db *gorm.DB, externalEventID string) (bool, error)
	ListByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*BillingEvent, error)
	DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
