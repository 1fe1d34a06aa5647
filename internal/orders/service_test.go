package orders

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/internal/notifications"
	"github.com/greenbasket/greenbasket-backend/pkg/db"
	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
	"github.com/greenbasket/greenbasket-backend/pkg/enums"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
	"github.com/greenbasket/greenbasket-backend/pkg/logger"
	"github.com/greenbasket/greenbasket-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Customer{}, &models.Order{}, &models.OrderItem{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	svc, err := NewService(db.NewWithConn(conn), NewRepository(conn), notifications.NewRepository(conn), logg)
	require.NoError(t, err)
	return svc
}

func mustCreateCustomer(t *testing.T, conn *gorm.DB) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		Username:     "shopper_" + uuid.NewString()[:8],
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		PasswordHash: "hash",
		FullName:     "Test Shopper",
		IsActive:     true,
	}
	require.NoError(t, conn.Create(customer).Error)
	return customer
}

func mustCreateOrder(t *testing.T, conn *gorm.DB, customerID uuid.UUID, orderDate time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		CustomerID:      customerID,
		OrderNumber:     "ORD-" + orderDate.Format("20060102150405") + "-" + uuid.NewString()[:4],
		TotalAmount:     decimal.RequireFromString("20.00"),
		DiscountAmount:  decimal.Zero,
		FinalAmount:     decimal.RequireFromString("20.00"),
		PaymentMethod:   enums.PaymentMethodCash,
		PaymentStatus:   enums.PaymentStatusPending,
		OrderStatus:     enums.OrderStatusPending,
		DeliveryAddress: "12 Main St",
		DeliveryPhone:   "555-0100",
		OrderDate:       orderDate,
		Items: []models.OrderItem{{
			ProductID:   uuid.New(),
			ProductName: "Apples",
			Quantity:    4,
			UnitPrice:   decimal.RequireFromString("5.00"),
			Subtotal:    decimal.RequireFromString("20.00"),
		}},
	}
	require.NoError(t, conn.Create(order).Error)
	return order
}

func TestUpdateStatusNotifiesAndStamps(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customer := mustCreateCustomer(t, conn)
	order := mustCreateOrder(t, conn, customer.ID, time.Now().UTC())

	updated, err := svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, updated.OrderStatus)
	require.NotNil(t, updated.ConfirmedAt)
	require.Nil(t, updated.DeliveredAt)

	var notes []models.Notification
	require.NoError(t, conn.Where("customer_id = ?", customer.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	require.Equal(t, enums.NotificationOrderConfirmed, notes[0].Type)
	require.Equal(t, order.ID, *notes[0].OrderID)

	updated, err = svc.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered)
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveredAt)

	require.NoError(t, conn.Where("customer_id = ?", customer.ID).Find(&notes).Error)
	require.Len(t, notes, 2)
}

func TestUpdateStatusCancelledDoesNotNotify(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customer := mustCreateCustomer(t, conn)
	order := mustCreateOrder(t, conn, customer.ID, time.Now().UTC())

	updated, err := svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, updated.OrderStatus)

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatus("misplaced"))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestListCustomerOrdersPaginatesNewestFirst(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customer := mustCreateCustomer(t, conn)
	other := mustCreateCustomer(t, conn)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		mustCreateOrder(t, conn, customer.ID, base.Add(time.Duration(i)*time.Minute))
	}
	mustCreateOrder(t, conn, other.ID, base)

	first, err := svc.ListCustomerOrders(ctx, customer.ID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	require.NotEmpty(t, first.Cursor)
	require.True(t, first.Items[0].OrderDate.After(first.Items[2].OrderDate))
	require.Len(t, first.Items[0].Items, 1, "items should be preloaded")

	second, err := svc.ListCustomerOrders(ctx, customer.ID, pagination.Params{Limit: 3, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.Cursor)
}

func TestListCustomerOrdersPagesCoverEveryOrderExactlyOnce(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customer := mustCreateCustomer(t, conn)

	base := time.Now().UTC().Add(-time.Hour)
	seeded := make(map[uuid.UUID]bool, 5)
	for i := 0; i < 5; i++ {
		order := mustCreateOrder(t, conn, customer.ID, base.Add(time.Duration(i)*time.Minute))
		seeded[order.ID] = false
	}

	cursor := ""
	pages := 0
	for {
		result, err := svc.ListCustomerOrders(ctx, customer.ID, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, order := range result.Items {
			require.False(t, seeded[order.ID], "order %s returned twice", order.ID)
			seeded[order.ID] = true
		}
		pages++
		if result.Cursor == "" {
			break
		}
		cursor = result.Cursor
	}

	require.Equal(t, 3, pages)
	for id, seen := range seeded {
		require.True(t, seen, "order %s never returned", id)
	}
}

func TestListAllOrdersFiltersByStatus(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customer := mustCreateCustomer(t, conn)

	pendingOrder := mustCreateOrder(t, conn, customer.ID, time.Now().UTC())
	shipped := mustCreateOrder(t, conn, customer.ID, time.Now().UTC().Add(time.Minute))
	require.NoError(t, conn.Model(shipped).UpdateColumn("order_status", enums.OrderStatusShipped).Error)

	status := enums.OrderStatusShipped
	result, err := svc.ListAllOrders(ctx, &status, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, shipped.ID, result.Items[0].ID)

	all, err := svc.ListAllOrders(ctx, nil, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	_ = pendingOrder
}

func TestGetOrderForCustomerScoping(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	owner := mustCreateCustomer(t, conn)
	stranger := mustCreateCustomer(t, conn)
	order := mustCreateOrder(t, conn, owner.ID, time.Now().UTC())

	detail, err := svc.GetOrderForCustomer(ctx, owner.ID, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.OrderNumber, detail.Order.OrderNumber)
	require.NotNil(t, detail.Customer)
	require.Equal(t, owner.Username, detail.Customer.Username)

	_, err = svc.GetOrderForCustomer(ctx, stranger.ID, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdatePaymentStatus(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customer := mustCreateCustomer(t, conn)
	order := mustCreateOrder(t, conn, customer.ID, time.Now().UTC())

	updated, err := svc.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusPaid)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, updated.PaymentStatus)

	_, err = svc.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatus("iou"))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
