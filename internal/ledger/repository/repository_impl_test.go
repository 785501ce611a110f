package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/launchkitlabs/launchkit/internal/ledger/domain"
	"github.com/launchkitlabs/launchkit/pkg/db/pagination"
)

func newTestRepo(t *testing.T) (domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.BillingEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return Provide(), db, node
}

func TestAppend_Idempotent(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	event := &domain.BillingEvent{
		ID:              node.Generate(),
		OrgID:           snowflake.ID(42),
		EventType:       domain.EventTypePaymentSucceeded,
		ExternalEventID: "evt_1",
		Status:          domain.EventStatusSucceeded,
		Currency:        "USD",
		CreatedAt:       time.Now().UTC(),
	}

	id, created, err := repo.Append(ctx, db, event)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, event.ID, id)

	duplicate := &domain.BillingEvent{
		ID:              node.Generate(),
		OrgID:           snowflake.ID(42),
		EventType:       domain.EventTypePaymentSucceeded,
		ExternalEventID: "evt_1",
		Status:          domain.EventStatusSucceeded,
		Currency:        "USD",
		CreatedAt:       time.Now().UTC(),
	}
	dupID, created, err := repo.Append(ctx, db, duplicate)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, event.ID, dupID)

	var count int64
	require.NoError(t, db.Model(&domain.BillingEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAppend_MissingEventID(t *testing.T) {
	repo, db, node := newTestRepo(t)

	_, _, err := repo.Append(context.Background(), db, &domain.BillingEvent{
		ID:    node.Generate(),
		OrgID: snowflake.ID(42),
	})
	assert.ErrorIs(t, err, domain.ErrMissingEventID)
}

func TestExists(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	_, _, err := repo.Append(ctx, db, &domain.BillingEvent{
		ID:              node.Generate(),
		OrgID:           snowflake.ID(42),
		EventType:       domain.EventTypeSubscriptionCreated,
		ExternalEventID: "evt_exists",
		Status:          domain.EventStatusSucceeded,
		CreatedAt:       time.Now().UTC(),
	})
	require.NoError(t, err)

	ok, err := repo.Exists(ctx, db, "evt_exists")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, db, "evt_other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListByOrganization_OrderFilterPagination(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()
	orgID := snowflake.ID(77)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		eventType := domain.EventTypePaymentSucceeded
		if i%2 == 1 {
			eventType = domain.EventTypePaymentFailed
		}
		_, _, err := repo.Append(ctx, db, &domain.BillingEvent{
			ID:              node.Generate(),
			OrgID:           orgID,
			EventType:       eventType,
			ExternalEventID: fmt.Sprintf("evt_list_%d", i),
			Status:          domain.EventStatusSucceeded,
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	// Another org's event stays out of the listing.
	_, _, err := repo.Append(ctx, db, &domain.BillingEvent{
		ID:              node.Generate(),
		OrgID:           snowflake.ID(78),
		EventType:       domain.EventTypePaymentSucceeded,
		ExternalEventID: "evt_other_org",
		Status:          domain.EventStatusSucceeded,
		CreatedAt:       base,
	})
	require.NoError(t, err)

	events, err := repo.ListByOrganization(ctx, db, orgID, domain.ListFilter{}, pagination.Pagination{PageSize: 10})
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.True(t, !events[i].CreatedAt.After(events[i-1].CreatedAt))
	}

	failures, err := repo.ListByOrganization(ctx, db, orgID,
		domain.ListFilter{EventType: domain.EventTypePaymentFailed},
		pagination.Pagination{PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, failures, 2)

	// Cursor pagination walks the full set without overlap.
	firstPage, err := repo.ListByOrganization(ctx, db, orgID, domain.ListFilter{}, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, firstPage, 3) // pageSize+1 probe row

	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        firstPage[1].ID.String(),
		CreatedAt: firstPage[1].CreatedAt.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	secondPage, err := repo.ListByOrganization(ctx, db, orgID, domain.ListFilter{}, pagination.Pagination{
		PageSize:  2,
		PageToken: token,
	})
	require.NoError(t, err)
	require.NotEmpty(t, secondPage)
	assert.True(t, secondPage[0].CreatedAt.Before(firstPage[1].CreatedAt))
}

func TestListByOrganization_BadToken(t *testing.T) {
	repo, db, _ := newTestRepo(t)

	_, err := repo.ListByOrganization(context.Background(), db, snowflake.ID(1), domain.ListFilter{},
		pagination.Pagination{PageToken: "not-a-cursor"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestDeleteOlderThan(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, createdAt := range []time.Time{old, old.AddDate(0, 1, 0), recent} {
		_, _, err := repo.Append(ctx, db, &domain.BillingEvent{
			ID:              node.Generate(),
			OrgID:           snowflake.ID(9),
			EventType:       domain.EventTypePaymentSucceeded,
			ExternalEventID: fmt.Sprintf("evt_prune_%d", i),
			Status:          domain.EventStatusSucceeded,
			CreatedAt:       createdAt,
		})
		require.NoError(t, err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, db, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var count int64
	require.NoError(t, db.Model(&domain.BillingEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
