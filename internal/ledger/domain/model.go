package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BillingEvent is an append-only ledger row. ExternalEventID is the
// idempotency key: a second append with the same id is a no-op.
type BillingEvent struct {
	ID              snowflake.ID      `json:"id" gorm:"primaryKey"`
	OrgID           snowflake.ID      `json:"org_id" gorm:"not null;index:idx_billing_events_org_created,priority:1"`
	SubscriptionRef string            `json:"subscription_ref" gorm:"type:text"`
	EventType       string            `json:"event_type" gorm:"type:text;not null;index"`
	ExternalEventID string            `json:"external_event_id" gorm:"type:text;not null;uniqueIndex:ux_billing_events_external_id"`
	Amount          *int64            `json:"amount,omitempty"`
	Currency        string            `json:"currency" gorm:"type:varchar(3)"`
	Status          EventStatus       `json:"status" gorm:"type:varchar(16);not null"`
	Description     string            `json:"description" gorm:"type:text"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time         `json:"created_at" gorm:"not null;index:idx_billing_events_org_created,priority:2"`
}

func (BillingEvent) TableName() string { return "billing_events" }

type EventStatus string

const (
	EventStatusSucceeded EventStatus = "succeeded"
	EventStatusFailed    EventStatus = "failed"
	EventStatusPending   EventStatus = "pending"
)

const (
	EventTypePaymentSucceeded     = "payment_succeeded"
	EventTypePaymentFailed        = "payment_failed"
	EventTypeSubscriptionCreated  = "subscription_created"
	EventTypeSubscriptionUpdated  = "subscription_updated"
	EventTypeSubscriptionCanceled = "subscription_canceled"
	EventTypeGracePeriodExpired   = "grace_period.expired"
	EventTypeDowngradeScheduled   = "downgrade_scheduled"
)

var (
	ErrInvalidEvent     = errors.New("ledger: invalid event")
	ErrMissingEventID   = errors.New("ledger: missing external event id")
	ErrInvalidPageToken = errors.New("ledger: invalid page token")
)

type ListFilter struct {
	EventType string
}
