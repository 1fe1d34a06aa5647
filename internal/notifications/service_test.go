package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
	"github.com/greenbasket/greenbasket-backend/pkg/enums"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, defaultLimit int) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), defaultLimit)
	require.NoError(t, err)
	return svc
}

func seedNotification(t *testing.T, db *gorm.DB, customerID uuid.UUID, createdAt time.Time, read bool) *models.Notification {
	t.Helper()
	n := &models.Notification{
		ID:         uuid.New(),
		CustomerID: customerID,
		Type:       enums.NotificationOrderPlaced,
		Title:      "Order placed",
		Message:    "Your order has been placed.",
		CreatedAt:  createdAt,
	}
	if read {
		at := createdAt.Add(time.Minute)
		n.ReadAt = &at
	}
	require.NoError(t, db.Create(n).Error)
	return n
}

func TestListPaginatesNewestFirst(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 50)
	ctx := context.Background()
	customerID := uuid.New()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedNotification(t, db, customerID, base.Add(time.Duration(i)*time.Minute), false)
	}
	seedNotification(t, db, uuid.New(), base, false)

	first, err := svc.List(ctx, ListParams{CustomerID: customerID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	require.NotEmpty(t, first.Cursor)
	require.True(t, first.Items[0].CreatedAt.After(first.Items[2].CreatedAt))

	second, err := svc.List(ctx, ListParams{CustomerID: customerID, Limit: 3, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	require.Empty(t, second.Cursor)
}

func TestListPagesCoverEveryRowExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 50)
	ctx := context.Background()
	customerID := uuid.New()

	base := time.Now().UTC().Add(-time.Hour)
	seeded := make(map[uuid.UUID]bool, 7)
	for i := 0; i < 7; i++ {
		n := seedNotification(t, db, customerID, base.Add(time.Duration(i)*time.Minute), false)
		seeded[n.ID] = false
	}

	cursor := ""
	pages := 0
	for {
		result, err := svc.List(ctx, ListParams{CustomerID: customerID, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, item := range result.Items {
			require.False(t, seeded[item.ID], "notification %s returned twice", item.ID)
			seeded[item.ID] = true
		}
		pages++
		if result.Cursor == "" {
			break
		}
		cursor = result.Cursor
	}

	require.Equal(t, 4, pages)
	for id, seen := range seeded {
		require.True(t, seen, "notification %s never returned", id)
	}
}

func TestListUnreadOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 50)
	ctx := context.Background()
	customerID := uuid.New()

	now := time.Now().UTC()
	seedNotification(t, db, customerID, now.Add(-2*time.Minute), true)
	unread := seedNotification(t, db, customerID, now.Add(-time.Minute), false)

	result, err := svc.List(ctx, ListParams{CustomerID: customerID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, unread.ID, result.Items[0].ID)

	count, err := svc.UnreadCount(ctx, customerID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 50)
	ctx := context.Background()
	customerID := uuid.New()
	n := seedNotification(t, db, customerID, time.Now().UTC(), false)

	require.NoError(t, svc.MarkRead(ctx, customerID, n.ID))

	var afterFirst models.Notification
	require.NoError(t, db.First(&afterFirst, "id = ?", n.ID).Error)
	require.NotNil(t, afterFirst.ReadAt)

	// Second call succeeds without moving the timestamp.
	require.NoError(t, svc.MarkRead(ctx, customerID, n.ID))
	var afterSecond models.Notification
	require.NoError(t, db.First(&afterSecond, "id = ?", n.ID).Error)
	require.True(t, afterFirst.ReadAt.Equal(*afterSecond.ReadAt))
}

func TestMarkReadScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 50)
	ctx := context.Background()
	owner := uuid.New()
	n := seedNotification(t, db, owner, time.Now().UTC(), false)

	err := svc.MarkRead(ctx, uuid.New(), n.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestMarkAllRead(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, 50)
	ctx := context.Background()
	customerID := uuid.New()

	now := time.Now().UTC()
	seedNotification(t, db, customerID, now.Add(-3*time.Minute), false)
	seedNotification(t, db, customerID, now.Add(-2*time.Minute), false)
	seedNotification(t, db, customerID, now.Add(-time.Minute), true)

	updated, err := svc.MarkAllRead(ctx, customerID)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated)

	count, err := svc.UnreadCount(ctx, customerID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestStatusMessageMapping(t *testing.T) {
	n, ok := StatusMessage("ORD-20260830120000-AAAA", enums.OrderStatusShipped)
	require.True(t, ok)
	require.Equal(t, enums.NotificationOrderShipped, n.Type)
	require.Contains(t, n.Message, "ORD-20260830120000-AAAA")

	_, ok = StatusMessage("ORD-20260830120000-AAAA", enums.OrderStatusCancelled)
	require.False(t, ok)

	_, ok = StatusMessage("ORD-20260830120000-AAAA", enums.OrderStatusPending)
	require.False(t, ok)
}

func TestOrderPlacedMessage(t *testing.T) {
	title, message := OrderPlacedMessage("ORD-20260830120000-AAAA", decimal.RequireFromString("42.5"))
	require.Equal(t, "Order placed", title)
	require.Contains(t, message, "42.50")
}
