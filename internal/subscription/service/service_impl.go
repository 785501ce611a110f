package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/clock"
	"github.com/launchkitlabs/launchkit/internal/config"
	ledgerdomain "github.com/launchkitlabs/launchkit/internal/ledger/domain"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
	"github.com/launchkitlabs/launchkit/pkg/db/pagination"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	repo       subscriptiondomain.Repository
	ledgerRepo ledgerdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config

	Repo       subscriptiondomain.Repository
	LedgerRepo ledgerdomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Cfg,

		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
	}
}

// EnsureFreeTier materializes the tier=free record for an organization so the
// state machine is total: absence of a row never means "free" implicitly.
func (s *Service) EnsureFreeTier(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if orgID == 0 {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}

	existing, err := s.repo.FindByOrgID(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now(ctx)
	sub := &subscriptiondomain.Subscription{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		Tier:          subscriptiondomain.TierFree,
		BillingStatus: subscriptiondomain.BillingStatusActive,
		AccessStatus:  subscriptiondomain.AccessStatusActive,
		SeatsIncluded: s.cfg.Billing.FreeSeatsIncluded,
		SeatsTotal:    s.cfg.Billing.FreeSeatsIncluded,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		// A concurrent first-member race may have inserted the row already.
		raced, findErr := s.repo.FindByOrgID(ctx, s.db, orgID)
		if findErr == nil && raced != nil {
			return raced, nil
		}
		return nil, err
	}

	s.log.Info("free tier materialized", zap.Int64("org_id", int64(orgID)))
	return sub, nil
}

func (s *Service) GetByOrganization(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	if orgID == 0 {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}
	sub, err := s.repo.FindByOrgID(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) Stats(ctx context.Context, orgID snowflake.ID) (subscriptiondomain.SubscriptionStats, error) {
	sub, err := s.GetByOrganization(ctx, orgID)
	if err != nil {
		return subscriptiondomain.SubscriptionStats{}, err
	}
	return subscriptiondomain.SubscriptionStats{
		Tier:           sub.Tier,
		BillingStatus:  sub.BillingStatus,
		AccessStatus:   sub.AccessStatus,
		SeatsIncluded:  sub.SeatsIncluded,
		SeatsTotal:     sub.SeatsTotal,
		SeatsActive:    sub.SeatsActive,
		SeatsAvailable: sub.SeatsAvailable(),
		IsOverLimit:    sub.IsOverLimit(),
	}, nil
}

func (s *Service) BillingHistory(ctx context.Context, req subscriptiondomain.BillingHistoryRequest) (subscriptiondomain.BillingHistoryResponse, error) {
	if req.OrgID == 0 {
		return subscriptiondomain.BillingHistoryResponse{}, subscriptiondomain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	events, err := s.ledgerRepo.ListByOrganization(ctx, s.db, req.OrgID,
		ledgerdomain.ListFilter{EventType: req.EventType},
		pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize},
	)
	if err != nil {
		return subscriptiondomain.BillingHistoryResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(events, int32(pageSize), func(e *ledgerdomain.BillingEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(events) > pageSize {
		events = events[:pageSize]
	}

	return subscriptiondomain.BillingHistoryResponse{
		Events:   events,
		PageInfo: *pageInfo,
	}, nil
}

// CreateFromProvider handles checkout completion and subscription creation.
// The ledger append is the commit point: a redelivered event id short-circuits
// before any state change.
func (s *Service) CreateFromProvider(ctx context.Context, req subscriptiondomain.CreateFromProviderRequest) (*subscriptiondomain.Subscription, error) {
	if req.OrgID == 0 {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}
	if strings.TrimSpace(req.SubscriptionRef) == "" {
		return nil, subscriptiondomain.ErrMissingRef
	}
	if strings.TrimSpace(req.ExternalEventID) == "" {
		return nil, subscriptiondomain.ErrMissingEventID
	}
	if !req.Tier.Valid() {
		return nil, subscriptiondomain.ErrInvalidTier
	}

	var result *subscriptiondomain.Subscription
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now(ctx)

		_, created, err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.BillingEvent{
			ID:              s.genID.Generate(),
			OrgID:           req.OrgID,
			SubscriptionRef: req.SubscriptionRef,
			EventType:       ledgerdomain.EventTypeSubscriptionCreated,
			ExternalEventID: req.ExternalEventID,
			Amount:          req.Amount,
			Currency:        s.currency(req.Currency),
			Status:          ledgerdomain.EventStatusSucceeded,
			Description:     "subscription created",
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		if !created {
			existing, err := s.repo.FindBySubscriptionRef(ctx, tx, req.SubscriptionRef)
			if err != nil {
				return err
			}
			if existing == nil {
				existing, err = s.repo.FindByOrgID(ctx, tx, req.OrgID)
				if err != nil {
					return err
				}
			}
			result = existing
			return nil
		}

		// An out-of-order subscription.updated may already have materialized
		// the ref; otherwise the org's free-tier record is upgraded in place.
		sub, err := s.repo.FindBySubscriptionRef(ctx, tx, req.SubscriptionRef)
		if err != nil {
			return err
		}
		if sub == nil {
			sub, err = s.repo.FindByOrgID(ctx, tx, req.OrgID)
			if err != nil {
				return err
			}
		}

		if sub == nil {
			sub = &subscriptiondomain.Subscription{
				ID:        s.genID.Generate(),
				OrgID:     req.OrgID,
				CreatedAt: now,
			}
			s.applyProviderIdentity(sub, req)
			sub.UpdatedAt = now
			if err := s.repo.Insert(ctx, tx, sub); err != nil {
				return err
			}
			result = sub
			return nil
		}

		if sub.Tier == subscriptiondomain.TierFree && req.Tier != subscriptiondomain.TierFree && len(sub.ConversionTracking) == 0 {
			tracking := subscriptiondomain.ConversionTracking{
				FreeTierStartedAt: sub.CreatedAt,
				UpgradedAt:        now,
				TriggeringFeature: req.TriggeringFeature,
				DaysOnFreeTier:    int(now.Sub(sub.CreatedAt).Hours() / 24),
			}
			raw, err := json.Marshal(tracking)
			if err != nil {
				return err
			}
			sub.ConversionTracking = datatypes.JSON(raw)
		}

		s.applyProviderIdentity(sub, req)
		sub.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription created from provider event",
		zap.Int64("org_id", int64(req.OrgID)),
		zap.String("subscription_ref", req.SubscriptionRef),
		zap.String("external_event_id", req.ExternalEventID))
	return result, nil
}

func (s *Service) applyProviderIdentity(sub *subscriptiondomain.Subscription, req subscriptiondomain.CreateFromProviderRequest) {
	customerRef := strings.TrimSpace(req.CustomerRef)
	subscriptionRef := strings.TrimSpace(req.SubscriptionRef)
	if customerRef != "" {
		sub.ExternalCustomerRef = &customerRef
	}
	sub.ExternalSubscriptionRef = &subscriptionRef
	sub.Tier = req.Tier
	if req.Interval != "" {
		sub.BillingInterval = req.Interval
	}
	if req.SeatsIncluded > 0 {
		sub.SeatsIncluded = req.SeatsIncluded
		if req.SeatsIncluded > sub.SeatsTotal {
			sub.SeatsTotal = req.SeatsIncluded
		}
	}
	sub.CurrentPeriodStart = req.PeriodStart
	sub.CurrentPeriodEnd = req.PeriodEnd
	sub.BillingStatus = subscriptiondomain.BillingStatusActive
	sub.AccessStatus = subscriptiondomain.AccessStatusActive
	sub.ClearGracePeriod()
	sub.CancelAtPeriodEnd = false
}

// ApplyProviderStatus handles subscription.updated deliveries. Unknown refs
// are reported as ErrSubscriptionNotFound; the webhook layer treats that as a
// benign no-op since the created event may not have arrived yet.
func (s *Service) ApplyProviderStatus(ctx context.Context, req subscriptiondomain.ApplyProviderStatusRequest) error {
	if strings.TrimSpace(req.SubscriptionRef) == "" {
		return subscriptiondomain.ErrMissingRef
	}
	if strings.TrimSpace(req.ExternalEventID) == "" {
		return subscriptiondomain.ErrMissingEventID
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindBySubscriptionRef(ctx, tx, req.SubscriptionRef)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		now := s.clock.Now(ctx)
		_, created, err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.BillingEvent{
			ID:              s.genID.Generate(),
			OrgID:           sub.OrgID,
			SubscriptionRef: req.SubscriptionRef,
			EventType:       ledgerdomain.EventTypeSubscriptionUpdated,
			ExternalEventID: req.ExternalEventID,
			Currency:        s.currency(""),
			Status:          ledgerdomain.EventStatusSucceeded,
			Description:     fmt.Sprintf("subscription updated: %s", req.Status),
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}

		sub.BillingStatus = req.Status
		switch req.Status {
		case subscriptiondomain.BillingStatusActive, subscriptiondomain.BillingStatusTrialing:
			sub.AccessStatus = subscriptiondomain.AccessStatusActive
			sub.ClearGracePeriod()
		case subscriptiondomain.BillingStatusPastDue:
			if sub.AccessStatus != subscriptiondomain.AccessStatusLocked {
				s.armGracePeriod(sub, now)
			}
		case subscriptiondomain.BillingStatusCanceled, subscriptiondomain.BillingStatusIncompleteExpired:
			sub.AccessStatus = subscriptiondomain.AccessStatusReadOnly
			sub.ClearGracePeriod()
		}

		if req.Tier != nil && req.Tier.Valid() {
			sub.Tier = *req.Tier
		}
		if req.Interval != nil {
			sub.BillingInterval = *req.Interval
		}
		if req.CancelAtPeriodEnd != nil {
			sub.CancelAtPeriodEnd = *req.CancelAtPeriodEnd
		}
		if req.PeriodStart != nil {
			sub.CurrentPeriodStart = req.PeriodStart
		}
		if req.PeriodEnd != nil {
			sub.CurrentPeriodEnd = req.PeriodEnd
		}

		sub.UpdatedAt = now
		return s.repo.Update(ctx, tx, sub)
	})
}

func (s *Service) RecordPaymentSucceeded(ctx context.Context, req subscriptiondomain.PaymentEventRequest) error {
	return s.recordPayment(ctx, req, true)
}

func (s *Service) RecordPaymentFailed(ctx context.Context, req subscriptiondomain.PaymentEventRequest) error {
	return s.recordPayment(ctx, req, false)
}

func (s *Service) recordPayment(ctx context.Context, req subscriptiondomain.PaymentEventRequest, succeeded bool) error {
	if strings.TrimSpace(req.SubscriptionRef) == "" {
		return subscriptiondomain.ErrMissingRef
	}
	if strings.TrimSpace(req.ExternalEventID) == "" {
		return subscriptiondomain.ErrMissingEventID
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindBySubscriptionRef(ctx, tx, req.SubscriptionRef)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		now := s.clock.Now(ctx)
		eventType := ledgerdomain.EventTypePaymentSucceeded
		status := ledgerdomain.EventStatusSucceeded
		if !succeeded {
			eventType = ledgerdomain.EventTypePaymentFailed
			status = ledgerdomain.EventStatusFailed
		}

		_, created, err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.BillingEvent{
			ID:              s.genID.Generate(),
			OrgID:           sub.OrgID,
			SubscriptionRef: req.SubscriptionRef,
			EventType:       eventType,
			ExternalEventID: req.ExternalEventID,
			Amount:          req.Amount,
			Currency:        s.currency(req.Currency),
			Status:          status,
			Description:     req.Description,
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		if !created {
			// Redelivery: state (including any armed grace window) stays put.
			return nil
		}

		if succeeded {
			if sub.AccessStatus == subscriptiondomain.AccessStatusGracePeriod {
				sub.AccessStatus = subscriptiondomain.AccessStatusActive
				sub.BillingStatus = subscriptiondomain.BillingStatusActive
				sub.ClearGracePeriod()
			}
		} else {
			// Locked is terminal for the failure path: a new failure never
			// re-arms a grace window.
			if sub.AccessStatus != subscriptiondomain.AccessStatusLocked {
				sub.BillingStatus = subscriptiondomain.BillingStatusPastDue
				s.armGracePeriod(sub, now)
			}
		}

		sub.UpdatedAt = now
		return s.repo.Update(ctx, tx, sub)
	})
}

// armGracePeriod starts the window only if one is not already running, so
// redelivered or repeated failures never move the window forward.
func (s *Service) armGracePeriod(sub *subscriptiondomain.Subscription, now time.Time) {
	if sub.AccessStatus == subscriptiondomain.AccessStatusGracePeriod &&
		sub.GracePeriodStartedAt != nil && sub.GracePeriodEndsAt != nil {
		return
	}
	days := s.cfg.Billing.GracePeriodDays
	if days <= 0 {
		days = 28
	}
	endsAt := now.AddDate(0, 0, days)
	sub.AccessStatus = subscriptiondomain.AccessStatusGracePeriod
	sub.GracePeriodStartedAt = &now
	sub.GracePeriodEndsAt = &endsAt
}

func (s *Service) MarkDeleted(ctx context.Context, subscriptionRef, externalEventID string) error {
	if strings.TrimSpace(subscriptionRef) == "" {
		return subscriptiondomain.ErrMissingRef
	}
	if strings.TrimSpace(externalEventID) == "" {
		return subscriptiondomain.ErrMissingEventID
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindBySubscriptionRef(ctx, tx, subscriptionRef)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		now := s.clock.Now(ctx)
		_, created, err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.BillingEvent{
			ID:              s.genID.Generate(),
			OrgID:           sub.OrgID,
			SubscriptionRef: subscriptionRef,
			EventType:       ledgerdomain.EventTypeSubscriptionCanceled,
			ExternalEventID: externalEventID,
			Currency:        s.currency(""),
			Status:          ledgerdomain.EventStatusSucceeded,
			Description:     "subscription deleted",
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}

		sub.BillingStatus = subscriptiondomain.BillingStatusCanceled
		sub.AccessStatus = subscriptiondomain.AccessStatusReadOnly
		sub.CancelAtPeriodEnd = false
		// Cancellation clears grace fields unconditionally.
		sub.ClearGracePeriod()
		sub.UpdatedAt = now
		return s.repo.Update(ctx, tx, sub)
	})
}

// LockExpired moves an elapsed grace period to locked. The synthetic ledger
// key is derived from the subscription id and the grace window start, so
// overlapping sweeper runs dedupe against each other.
func (s *Service) LockExpired(ctx context.Context, subscriptionID snowflake.ID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		now := s.clock.Now(ctx)
		if sub.AccessStatus != subscriptiondomain.AccessStatusGracePeriod ||
			sub.GracePeriodStartedAt == nil || sub.GracePeriodEndsAt == nil ||
			now.Before(*sub.GracePeriodEndsAt) {
			return nil
		}

		syntheticID := fmt.Sprintf("grace_expired:%s:%d", sub.ID, sub.GracePeriodStartedAt.Unix())
		subscriptionRef := ""
		if sub.ExternalSubscriptionRef != nil {
			subscriptionRef = *sub.ExternalSubscriptionRef
		}

		_, created, err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.BillingEvent{
			ID:              s.genID.Generate(),
			OrgID:           sub.OrgID,
			SubscriptionRef: subscriptionRef,
			EventType:       ledgerdomain.EventTypeGracePeriodExpired,
			ExternalEventID: syntheticID,
			Currency:        s.currency(""),
			Status:          ledgerdomain.EventStatusSucceeded,
			Description:     "grace period expired, access locked",
			CreatedAt:       now,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}

		sub.AccessStatus = subscriptiondomain.AccessStatusLocked
		sub.ClearGracePeriod()
		sub.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}

		s.log.Info("subscription locked after grace period",
			zap.Int64("org_id", int64(sub.OrgID)),
			zap.String("subscription_id", sub.ID.String()))
		return nil
	})
}

// UpdateSeats applies a partial seat patch. Over-limit states are allowed and
// surfaced via Stats; a deactivation race self-corrects on the next
// reconciliation.
func (s *Service) UpdateSeats(ctx context.Context, req subscriptiondomain.UpdateSeatsRequest) (*subscriptiondomain.Subscription, error) {
	if req.OrgID == 0 {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}
	if req.SeatsTotal != nil && *req.SeatsTotal < 0 {
		return nil, subscriptiondomain.ErrInvalidSeats
	}
	if req.SeatsActive != nil && *req.SeatsActive < 0 {
		return nil, subscriptiondomain.ErrInvalidSeats
	}

	sub, err := s.GetByOrganization(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}

	changed := false
	if req.SeatsTotal != nil && sub.SeatsTotal != *req.SeatsTotal {
		sub.SeatsTotal = *req.SeatsTotal
		changed = true
	}
	if req.SeatsActive != nil && sub.SeatsActive != *req.SeatsActive {
		sub.SeatsActive = *req.SeatsActive
		changed = true
	}
	if !changed {
		return sub, nil
	}

	sub.UpdatedAt = s.clock.Now(ctx)
	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) AddSeats(ctx context.Context, orgID snowflake.ID, count int) (*subscriptiondomain.Subscription, error) {
	if count <= 0 {
		return nil, subscriptiondomain.ErrInvalidSeats
	}
	sub, err := s.GetByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	total := sub.SeatsTotal + count
	return s.UpdateSeats(ctx, subscriptiondomain.UpdateSeatsRequest{OrgID: orgID, SeatsTotal: &total})
}

func (s *Service) RemoveSeats(ctx context.Context, orgID snowflake.ID, count int) (*subscriptiondomain.Subscription, error) {
	if count <= 0 {
		return nil, subscriptiondomain.ErrInvalidSeats
	}
	sub, err := s.GetByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	total := sub.SeatsTotal - count
	if total < 0 {
		total = 0
	}
	return s.UpdateSeats(ctx, subscriptiondomain.UpdateSeatsRequest{OrgID: orgID, SeatsTotal: &total})
}

// SetPendingDowngrade records a scheduled tier change. Nothing applies it at
// the effective date; it is stored and clearable only.
func (s *Service) SetPendingDowngrade(ctx context.Context, req subscriptiondomain.SetPendingDowngradeRequest) error {
	if strings.TrimSpace(req.SubscriptionRef) == "" {
		return subscriptiondomain.ErrMissingRef
	}
	if !req.TargetTier.Valid() {
		return subscriptiondomain.ErrInvalidTier
	}
	if req.EffectiveAt.IsZero() {
		return subscriptiondomain.ErrInvalidEffectiveAt
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindBySubscriptionRef(ctx, tx, req.SubscriptionRef)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		now := s.clock.Now(ctx)
		if req.ExternalEventID != "" {
			_, created, err := s.ledgerRepo.Append(ctx, tx, &ledgerdomain.BillingEvent{
				ID:              s.genID.Generate(),
				OrgID:           sub.OrgID,
				SubscriptionRef: req.SubscriptionRef,
				EventType:       ledgerdomain.EventTypeDowngradeScheduled,
				ExternalEventID: req.ExternalEventID,
				Currency:        s.currency(""),
				Status:          ledgerdomain.EventStatusSucceeded,
				Description:     fmt.Sprintf("downgrade to %s scheduled", req.TargetTier),
				CreatedAt:       now,
			})
			if err != nil {
				return err
			}
			if !created {
				return nil
			}
		}

		tier := req.TargetTier
		effectiveAt := req.EffectiveAt
		sub.PendingDowngradeTier = &tier
		sub.PendingDowngradeAt = &effectiveAt
		sub.UpdatedAt = now
		return s.repo.Update(ctx, tx, sub)
	})
}

func (s *Service) ClearPendingDowngrade(ctx context.Context, orgID snowflake.ID) error {
	sub, err := s.GetByOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if sub.PendingDowngradeTier == nil && sub.PendingDowngradeAt == nil {
		return nil
	}
	sub.PendingDowngradeTier = nil
	sub.PendingDowngradeAt = nil
	sub.UpdatedAt = s.clock.Now(ctx)
	return s.repo.Update(ctx, s.db, sub)
}

func (s *Service) currency(requested string) string {
	if c := strings.ToUpper(strings.TrimSpace(requested)); c != "" {
		return c
	}
	if s.cfg.Billing.Currency != "" {
		return s.cfg.Billing.Currency
	}
	return "USD"
}
