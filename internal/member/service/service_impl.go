package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/clock"
	memberdomain "github.com/launchkitlabs/launchkit/internal/member/domain"
	seatservice "github.com/launchkitlabs/launchkit/internal/seat/service"
	subscriptiondomain "github.com/launchkitlabs/launchkit/internal/subscription/domain"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock

	subscriptionSvc subscriptiondomain.Service
	reconciler      *seatservice.Reconciler
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	SubscriptionSvc subscriptiondomain.Service
	Reconciler      *seatservice.Reconciler
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("member.service"),

		genID: p.GenID,
		clock: p.Clock,

		subscriptionSvc: p.SubscriptionSvc,
		reconciler:      p.Reconciler,
	}
}

type CreateMemberRequest struct {
	OrgID       snowflake.ID
	Email       string
	DisplayName string
}

// Create inserts an active member. The first member of an organization
// materializes its free-tier subscription record.
func (s *Service) Create(ctx context.Context, req CreateMemberRequest) (*memberdomain.Member, error) {
	if req.OrgID == 0 {
		return nil, memberdomain.ErrInvalidOrganization
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, memberdomain.ErrInvalidEmail
	}

	if _, err := s.subscriptionSvc.EnsureFreeTier(ctx, req.OrgID); err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	member := &memberdomain.Member{
		ID:          s.genID.Generate(),
		OrgID:       req.OrgID,
		Email:       email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		return nil, err
	}

	if _, err := s.reconciler.Recalculate(ctx, req.OrgID); err != nil {
		return nil, err
	}
	return member, nil
}

func (s *Service) Deactivate(ctx context.Context, memberID snowflake.ID) error {
	return s.setActive(ctx, memberID, false)
}

func (s *Service) Reactivate(ctx context.Context, memberID snowflake.ID) error {
	return s.setActive(ctx, memberID, true)
}

// setActive is a no-op when the member is already in the target state, so
// redundant toggles neither reconcile seats nor churn updated_at.
func (s *Service) setActive(ctx context.Context, memberID snowflake.ID, active bool) error {
	var member memberdomain.Member
	err := s.db.WithContext(ctx).Where("id = ?", memberID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return memberdomain.ErrMemberNotFound
		}
		return err
	}
	if member.IsActive == active {
		return nil
	}

	member.IsActive = active
	member.UpdatedAt = s.clock.Now(ctx)
	if err := s.db.WithContext(ctx).Save(&member).Error; err != nil {
		return err
	}

	_, err = s.reconciler.Recalculate(ctx, member.OrgID)
	return err
}

func (s *Service) ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]*memberdomain.Member, error) {
	if orgID == 0 {
		return nil, memberdomain.ErrInvalidOrganization
	}
	var members []*memberdomain.Member
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}
