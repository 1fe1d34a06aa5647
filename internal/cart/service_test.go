package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/internal/catalog"
	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Category{}, &models.Product{}, &models.CartLine{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), catalog.NewRepository(db))
	require.NoError(t, err)
	return svc
}

func mustCreateProduct(t *testing.T, db *gorm.DB, name string, price string, stock int) *models.Product {
	t.Helper()
	category := &models.Category{Name: "Category " + uuid.NewString()}
	require.NoError(t, db.Create(category).Error)
	product := &models.Product{
		CategoryID:    category.ID,
		Name:          name,
		UnitPrice:     decimal.RequireFromString(price),
		Unit:          "pcs",
		StockQuantity: stock,
		IsAvailable:   true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestAddItemUpsertsSingleLine(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	product := mustCreateProduct(t, db, "Oat Milk", "2.50", 10)

	require.NoError(t, svc.AddItem(ctx, customerID, product.ID, 2))
	require.NoError(t, svc.AddItem(ctx, customerID, product.ID, 3))

	var lines []models.CartLine
	require.NoError(t, db.Where("customer_id = ?", customerID).Find(&lines).Error)
	require.Len(t, lines, 1)
	require.Equal(t, 5, lines[0].Quantity)
}

func TestAddItemRejectsBadQuantityAndStock(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	product := mustCreateProduct(t, db, "Eggs", "4.00", 3)

	err := svc.AddItem(ctx, customerID, product.ID, 0)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	require.NoError(t, svc.AddItem(ctx, customerID, product.ID, 2))

	// 2 in the cart + 2 more exceeds the 3 in stock.
	err = svc.AddItem(ctx, customerID, product.ID, 2)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
	details, ok := typed.Details().([]StockDetail)
	require.True(t, ok)
	require.Len(t, details, 1)
	require.Equal(t, product.ID, details[0].ProductID)
	require.Equal(t, 4, details[0].Requested)
	require.Equal(t, 3, details[0].Available)
}

func TestAddItemRejectsUnavailableProduct(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	product := mustCreateProduct(t, db, "Seasonal Pie", "9.99", 5)
	require.NoError(t, db.Model(product).UpdateColumn("is_available", false).Error)

	err := svc.AddItem(ctx, uuid.New(), product.ID, 1)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	product := mustCreateProduct(t, db, "Rice", "1.20", 50)

	require.NoError(t, svc.AddItem(ctx, customerID, product.ID, 4))
	require.NoError(t, svc.UpdateQuantity(ctx, customerID, product.ID, 0))

	var count int64
	require.NoError(t, db.Model(&models.CartLine{}).Where("customer_id = ?", customerID).Count(&count).Error)
	require.Zero(t, count)
}

func TestUpdateQuantityChecksStock(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	product := mustCreateProduct(t, db, "Honey", "6.00", 4)

	require.NoError(t, svc.AddItem(ctx, customerID, product.ID, 2))

	err := svc.UpdateQuantity(ctx, customerID, product.ID, 9)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	require.NoError(t, svc.UpdateQuantity(ctx, customerID, product.ID, 4))
	line, err := NewRepository(db).FindLine(ctx, customerID, product.ID)
	require.NoError(t, err)
	require.Equal(t, 4, line.Quantity)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()
	product := mustCreateProduct(t, db, "Butter", "3.30", 10)

	require.NoError(t, svc.RemoveItem(ctx, customerID, product.ID))
	require.NoError(t, svc.AddItem(ctx, customerID, product.ID, 1))
	require.NoError(t, svc.RemoveItem(ctx, customerID, product.ID))
	require.NoError(t, svc.RemoveItem(ctx, customerID, product.ID))
}

func TestViewTotals(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()

	empty, err := svc.View(ctx, customerID)
	require.NoError(t, err)
	require.Empty(t, empty.Items)
	require.True(t, empty.Total.IsZero())

	apples := mustCreateProduct(t, db, "Apples", "3.50", 20)
	bread := mustCreateProduct(t, db, "Bread", "2.25", 20)
	require.NoError(t, svc.AddItem(ctx, customerID, apples.ID, 2))
	require.NoError(t, svc.AddItem(ctx, customerID, bread.ID, 1))

	view, err := svc.View(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	require.True(t, view.Total.Equal(decimal.RequireFromString("9.25")),
		"expected 9.25, got %s", view.Total)
}
