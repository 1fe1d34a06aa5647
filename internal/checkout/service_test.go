package checkout

import (
	"context"
	"io"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/internal/cart"
	"github.com/greenbasket/greenbasket-backend/internal/catalog"
	"github.com/greenbasket/greenbasket-backend/internal/notifications"
	"github.com/greenbasket/greenbasket-backend/internal/orders"
	"github.com/greenbasket/greenbasket-backend/pkg/db"
	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
	"github.com/greenbasket/greenbasket-backend/pkg/enums"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
	"github.com/greenbasket/greenbasket-backend/pkg/logger"
	"github.com/greenbasket/greenbasket-backend/pkg/metrics"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.Customer{},
		&models.CartLine{},
		&models.Order{},
		&models.OrderItem{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(
		db.NewWithConn(conn),
		cart.NewRepository(conn),
		catalog.NewRepository(conn),
		orders.NewRepository(conn),
		notifications.NewRepository(conn),
		metrics.NewCheckoutMetrics(nil),
		logg,
		"ORD",
	)
	require.NoError(t, err)
	return svc
}

func mustCreateProduct(t *testing.T, conn *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()
	category := &models.Category{Name: "Category " + uuid.NewString()}
	require.NoError(t, conn.Create(category).Error)
	product := &models.Product{
		CategoryID:    category.ID,
		Name:          name,
		UnitPrice:     decimal.RequireFromString(price),
		Unit:          "pcs",
		StockQuantity: stock,
		IsAvailable:   true,
	}
	require.NoError(t, conn.Create(product).Error)
	return product
}

func mustAddToCart(t *testing.T, conn *gorm.DB, customerID, productID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, conn.Create(&models.CartLine{
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   qty,
	}).Error)
}

func placeOrderInput(customerID uuid.UUID) PlaceOrderInput {
	return PlaceOrderInput{
		CustomerID:      customerID,
		DeliveryAddress: "12 Main St",
		DeliveryPhone:   "555-0100",
		PaymentMethod:   enums.PaymentMethodCash,
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customerID := uuid.New()

	apples := mustCreateProduct(t, conn, "Apples", "3.50", 10)
	bread := mustCreateProduct(t, conn, "Bread", "2.25", 4)
	mustAddToCart(t, conn, customerID, apples.ID, 2)
	mustAddToCart(t, conn, customerID, bread.ID, 1)

	order, err := svc.PlaceOrder(ctx, placeOrderInput(customerID))
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^ORD-\d{14}-[A-Z2-9]{4}$`), order.OrderNumber)
	require.Equal(t, enums.OrderStatusPending, order.OrderStatus)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.True(t, order.DiscountAmount.IsZero())
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("9.25")))
	require.True(t, order.FinalAmount.Equal(order.TotalAmount))

	// Sum of item subtotals equals the order total.
	require.Len(t, order.Items, 2)
	sum := decimal.Zero
	for _, item := range order.Items {
		require.True(t, item.Subtotal.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))))
		sum = sum.Add(item.Subtotal)
	}
	require.True(t, sum.Equal(order.TotalAmount))

	// Stock was taken and the cart is gone.
	var applesNow, breadNow models.Product
	require.NoError(t, conn.First(&applesNow, "id = ?", apples.ID).Error)
	require.NoError(t, conn.First(&breadNow, "id = ?", bread.ID).Error)
	require.Equal(t, 8, applesNow.StockQuantity)
	require.Equal(t, 3, breadNow.StockQuantity)

	var cartCount int64
	require.NoError(t, conn.Model(&models.CartLine{}).Where("customer_id = ?", customerID).Count(&cartCount).Error)
	require.Zero(t, cartCount)

	// Exactly one order_placed notification referencing the order.
	var notes []models.Notification
	require.NoError(t, conn.Where("customer_id = ?", customerID).Find(&notes).Error)
	require.Len(t, notes, 1)
	require.Equal(t, enums.NotificationOrderPlaced, notes[0].Type)
	require.Equal(t, order.ID, *notes[0].OrderID)
	require.Contains(t, notes[0].Message, order.OrderNumber)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.PlaceOrder(context.Background(), placeOrderInput(uuid.New()))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestPlaceOrderInsufficientStockWritesNothing(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customerID := uuid.New()

	apples := mustCreateProduct(t, conn, "Apples", "3.50", 10)
	bread := mustCreateProduct(t, conn, "Bread", "2.25", 1)
	mustAddToCart(t, conn, customerID, apples.ID, 2)
	mustAddToCart(t, conn, customerID, bread.ID, 3)

	_, err := svc.PlaceOrder(ctx, placeOrderInput(customerID))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	details, ok := typed.Details().([]cart.StockDetail)
	require.True(t, ok)
	require.Len(t, details, 1)
	require.Equal(t, bread.ID, details[0].ProductID)
	require.Equal(t, 3, details[0].Requested)
	require.Equal(t, 1, details[0].Available)

	// Nothing was written: no order, stock untouched, cart intact.
	var orderCount, cartCount, noteCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, conn.Model(&models.CartLine{}).Count(&cartCount).Error)
	require.NoError(t, conn.Model(&models.Notification{}).Count(&noteCount).Error)
	require.Zero(t, orderCount)
	require.Equal(t, int64(2), cartCount)
	require.Zero(t, noteCount)

	var applesNow models.Product
	require.NoError(t, conn.First(&applesNow, "id = ?", apples.ID).Error)
	require.Equal(t, 10, applesNow.StockQuantity)
}

func TestPlaceOrderUnavailableProduct(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customerID := uuid.New()

	pie := mustCreateProduct(t, conn, "Seasonal Pie", "9.99", 5)
	mustAddToCart(t, conn, customerID, pie.ID, 1)
	require.NoError(t, conn.Model(pie).UpdateColumn("is_available", false).Error)

	_, err := svc.PlaceOrder(ctx, placeOrderInput(customerID))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestPlaceOrderCompetingCustomers(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()

	milk := mustCreateProduct(t, conn, "Milk", "1.80", 5)
	mustAddToCart(t, conn, first, milk.ID, 3)
	mustAddToCart(t, conn, second, milk.ID, 3)

	_, err := svc.PlaceOrder(ctx, placeOrderInput(first))
	require.NoError(t, err)

	// Only 2 remain; the second customer's 3 cannot be fulfilled.
	_, err = svc.PlaceOrder(ctx, placeOrderInput(second))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	var milkNow models.Product
	require.NoError(t, conn.First(&milkNow, "id = ?", milk.ID).Error)
	require.Equal(t, 2, milkNow.StockQuantity)

	var cartCount int64
	require.NoError(t, conn.Model(&models.CartLine{}).Where("customer_id = ?", second).Count(&cartCount).Error)
	require.Equal(t, int64(1), cartCount, "losing cart is preserved")
}

func TestPlaceOrderRollsBackWhenStorageFails(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customerID := uuid.New()

	apples := mustCreateProduct(t, conn, "Apples", "3.50", 10)
	mustAddToCart(t, conn, customerID, apples.ID, 2)

	// Killing the notifications table makes the final write fail after stock
	// was already decremented inside the transaction.
	require.NoError(t, conn.Migrator().DropTable(&models.Notification{}))

	_, err := svc.PlaceOrder(ctx, placeOrderInput(customerID))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeDependency, typed.Code())

	var orderCount, cartCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, conn.Model(&models.CartLine{}).Count(&cartCount).Error)
	require.Zero(t, orderCount, "order insert must be rolled back")
	require.Equal(t, int64(1), cartCount, "cart must survive the failed checkout")

	var applesNow models.Product
	require.NoError(t, conn.First(&applesNow, "id = ?", apples.ID).Error)
	require.Equal(t, 10, applesNow.StockQuantity, "stock decrement must be rolled back")
}

func TestOrderItemSnapshotsSurviveCatalogEdits(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	customerID := uuid.New()

	apples := mustCreateProduct(t, conn, "Apples", "3.50", 10)
	mustAddToCart(t, conn, customerID, apples.ID, 2)

	order, err := svc.PlaceOrder(ctx, placeOrderInput(customerID))
	require.NoError(t, err)

	require.NoError(t, conn.Model(&models.Product{}).
		Where("id = ?", apples.ID).
		Updates(map[string]any{"name": "Renamed Apples", "unit_price": "99.99"}).Error)

	var items []models.OrderItem
	require.NoError(t, conn.Where("order_id = ?", order.ID).Find(&items).Error)
	require.Len(t, items, 1)
	require.Equal(t, "Apples", items[0].ProductName)
	require.True(t, items[0].UnitPrice.Equal(decimal.RequireFromString("3.50")))
}

func TestPlaceOrderValidatesInput(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	ctx := context.Background()

	cases := []PlaceOrderInput{
		{CustomerID: uuid.Nil, DeliveryAddress: "a", DeliveryPhone: "p", PaymentMethod: enums.PaymentMethodCash},
		{CustomerID: uuid.New(), DeliveryAddress: " ", DeliveryPhone: "p", PaymentMethod: enums.PaymentMethodCash},
		{CustomerID: uuid.New(), DeliveryAddress: "a", DeliveryPhone: "", PaymentMethod: enums.PaymentMethodCash},
		{CustomerID: uuid.New(), DeliveryAddress: "a", DeliveryPhone: "p", PaymentMethod: enums.PaymentMethod("barter")},
	}
	for _, input := range cases {
		_, err := svc.PlaceOrder(ctx, input)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}
