package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
)

func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierStarter, TierProfessional:
		return true
	}
	return false
}

type BillingStatus string

const (
	BillingStatusActive            BillingStatus = "active"
	BillingStatusPastDue           BillingStatus = "past_due"
	BillingStatusCanceled          BillingStatus = "canceled"
	BillingStatusTrialing          BillingStatus = "trialing"
	BillingStatusPaused            BillingStatus = "paused"
	BillingStatusIncomplete        BillingStatus = "incomplete"
	BillingStatusIncompleteExpired BillingStatus = "incomplete_expired"
)

// AccessStatus is the value request gating consults. It is derived from, but
// not identical to, the provider billing status.
type AccessStatus string

const (
	AccessStatusActive      AccessStatus = "active"
	AccessStatusGracePeriod AccessStatus = "grace_period"
	AccessStatusLocked      AccessStatus = "locked"
	AccessStatusReadOnly    AccessStatus = "read_only"
)

type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

// Subscription is the single billing record for an organization. Exactly one
// row exists per org; free-tier orgs get an explicit record on first member.
type Subscription struct {
	ID                      snowflake.ID    `json:"id" gorm:"primaryKey"`
	OrgID                   snowflake.ID    `json:"org_id" gorm:"not null;uniqueIndex:ux_subscriptions_org"`
	ExternalCustomerRef     *string         `json:"external_customer_ref,omitempty" gorm:"type:text"`
	ExternalSubscriptionRef *string         `json:"external_subscription_ref,omitempty" gorm:"type:text"`
	Tier                    Tier            `json:"tier" gorm:"type:varchar(16);not null;default:'free'"`
	BillingStatus           BillingStatus   `json:"billing_status" gorm:"type:varchar(32);not null;default:'active'"`
	AccessStatus            AccessStatus    `json:"access_status" gorm:"type:varchar(32);not null;default:'active';index:idx_subscriptions_grace_ends,priority:1"`
	BillingInterval         BillingInterval `json:"billing_interval,omitempty" gorm:"type:varchar(16)"`
	SeatsIncluded           int             `json:"seats_included" gorm:"not null;default:0"`
	SeatsTotal              int             `json:"seats_total" gorm:"not null;default:0"`
	SeatsActive             int             `json:"seats_active" gorm:"not null;default:0"`
	CurrentPeriodStart      *time.Time      `json:"current_period_start,omitempty"`
	CurrentPeriodEnd        *time.Time      `json:"current_period_end,omitempty"`
	GracePeriodStartedAt    *time.Time      `json:"grace_period_started_at,omitempty"`
	GracePeriodEndsAt       *time.Time      `json:"grace_period_ends_at,omitempty" gorm:"index:idx_subscriptions_grace_ends,priority:2"`
	PendingDowngradeTier    *Tier           `json:"pending_downgrade_tier,omitempty" gorm:"type:varchar(16)"`
	PendingDowngradeAt      *time.Time      `json:"pending_downgrade_at,omitempty"`
	ConversionTracking      datatypes.JSON  `json:"conversion_tracking,omitempty" gorm:"type:jsonb"`
	CancelAtPeriodEnd       bool            `json:"cancel_at_period_end" gorm:"not null;default:false"`
	CreatedAt               time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt               time.Time       `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s *Subscription) IsOverLimit() bool { return s.SeatsActive > s.SeatsTotal }

func (s *Subscription) SeatsAvailable() int { return s.SeatsTotal - s.SeatsActive }

func (s *Subscription) InGracePeriod() bool { return s.AccessStatus == AccessStatusGracePeriod }

func (s *Subscription) ClearGracePeriod() {
	s.GracePeriodStartedAt = nil
	s.GracePeriodEndsAt = nil
}

// ConversionTracking is captured once at the free-to-paid upgrade and never
// rewritten.
type ConversionTracking struct {
	FreeTierStartedAt time.Time `json:"free_tier_started_at"`
	UpgradedAt        time.Time `json:"upgraded_at"`
	TriggeringFeature string    `json:"triggering_feature,omitempty"`
	DaysOnFreeTier    int       `json:"days_on_free_tier"`
}

type SubscriptionStats struct {
	Tier           Tier          `json:"tier"`
	BillingStatus  BillingStatus `json:"billing_status"`
	AccessStatus   AccessStatus  `json:"access_status"`
	SeatsIncluded  int           `json:"seats_included"`
	SeatsTotal     int           `json:"seats_total"`
	SeatsActive    int           `json:"seats_active"`
	SeatsAvailable int           `json:"seats_available"`
	IsOverLimit    bool          `json:"is_over_limit"`
}
