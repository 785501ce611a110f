package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/launchkitlabs/launchkit/internal/ledger/domain"
	"github.com/launchkitlabs/launchkit/pkg/db/pagination"
)

type repositoryImpl struct{}

func Provide() domain.Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Append(ctx context.Context, db *gorm.DB, event *domain.BillingEvent) (snowflake.ID, bool, error) {
	if event == nil {
		return 0, false, domain.ErrInvalidEvent
	}
	if strings.TrimSpace(event.ExternalEventID) == "" {
		return 0, false, domain.ErrMissingEventID
	}

	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_event_id"}},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return 0, false, res.Error
	}
	if res.RowsAffected > 0 {
		return event.ID, true, nil
	}

	var existing domain.BillingEvent
	if err := db.WithContext(ctx).
		Select("id").
		Where("external_event_id = ?", event.ExternalEventID).
		First(&existing).Error; err != nil {
		return 0, false, err
	}
	return existing.ID, false, nil
}

func (r *repositoryImpl) Exists(ctx context.Context, db *gorm.DB, externalEventID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.BillingEvent{}).
		Where("external_event_id = ?", externalEventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) ListByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.BillingEvent, error) {
	query := db.WithContext(ctx).
		Model(&domain.BillingEvent{}).
		Where("org_id = ?", orgID)

	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	var events []*domain.BillingEvent
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).Delete(&domain.BillingEvent{}, "created_at < ?", cutoff)
	return res.RowsAffected, res.Error
}
