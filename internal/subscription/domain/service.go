package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	ledgerdomain "github.com/launchkitlabs/launchkit/internal/ledger/domain"
	"github.com/launchkitlabs/launchkit/pkg/db/pagination"
)

var (
	ErrInvalidOrganization  = errors.New("subscription: invalid organization")
	ErrSubscriptionNotFound = errors.New("subscription: not found")
	ErrInvalidTier          = errors.New("subscription: invalid tier")
	ErrInvalidStatus        = errors.New("subscription: invalid billing status")
	ErrInvalidSeats         = errors.New("subscription: invalid seat count")
	ErrInvalidEffectiveAt   = errors.New("subscription: invalid effective date")
	ErrMissingEventID       = errors.New("subscription: missing external event id")
	ErrMissingRef           = errors.New("subscription: missing external subscription ref")
)

type CreateFromProviderRequest struct {
	OrgID             snowflake.ID
	CustomerRef       string
	SubscriptionRef   string
	Tier              Tier
	Interval          BillingInterval
	SeatsIncluded     int
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	Amount            *int64
	Currency          string
	TriggeringFeature string
	ExternalEventID   string
}

type ApplyProviderStatusRequest struct {
	SubscriptionRef   string
	Status            BillingStatus
	Tier              *Tier
	Interval          *BillingInterval
	CancelAtPeriodEnd *bool
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	ExternalEventID   string
}

type PaymentEventRequest struct {
	SubscriptionRef string
	ExternalEventID string
	Amount          *int64
	Currency        string
	Description     string
}

type UpdateSeatsRequest struct {
	OrgID       snowflake.ID
	SeatsTotal  *int
	SeatsActive *int
}

type SetPendingDowngradeRequest struct {
	SubscriptionRef string
	TargetTier      Tier
	EffectiveAt     time.Time
	ExternalEventID string
}

type BillingHistoryRequest struct {
	OrgID     snowflake.ID
	EventType string
	PageToken string
	PageSize  int
}

type BillingHistoryResponse struct {
	Events   []*ledgerdomain.BillingEvent `json:"events"`
	PageInfo pagination.PageInfo          `json:"page_info"`
}

type Service interface {
	EnsureFreeTier(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	GetByOrganization(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	Stats(ctx context.Context, orgID snowflake.ID) (SubscriptionStats, error)
	BillingHistory(ctx context.Context, req BillingHistoryRequest) (BillingHistoryResponse, error)

	CreateFromProvider(ctx context.Context, req CreateFromProviderRequest) (*Subscription, error)
	ApplyProviderStatus(ctx context.Context, req ApplyProviderStatusRequest) error
	RecordPaymentSucceeded(ctx context.Context, req PaymentEventRequest) error
	RecordPaymentFailed(ctx context.Context, req PaymentEventRequest) error
	MarkDeleted(ctx context.Context, subscriptionRef, externalEventID string) error
	LockExpired(ctx context.Context, subscriptionID snowflake.ID) error

	UpdateSeats(ctx context.Context, req UpdateSeatsRequest) (*Subscription, error)
	AddSeats(ctx context.Context, orgID snowflake.ID, count int) (*Subscription, error)
	RemoveSeats(ctx context.Context, orgID snowflake.ID, count int) (*Subscription, error)

	SetPendingDowngrade(ctx context.Context, req SetPendingDowngradeRequest) error
	ClearPendingDowngrade(ctx context.Context, orgID snowflake.ID) error
}
