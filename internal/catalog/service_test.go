package catalog

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
	"github.com/greenbasket/greenbasket-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Category{}, &models.Product{}, &models.OrderItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "catalog-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), logg)
	require.NoError(t, err)
	return svc
}

func mustCreateCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()
	category := &models.Category{Name: name}
	require.NoError(t, db.Create(category).Error)
	return category
}

func mustCreateProduct(t *testing.T, db *gorm.DB, categoryID uuid.UUID, mutate func(*models.Product)) *models.Product {
	t.Helper()
	product := &models.Product{
		CategoryID:    categoryID,
		Name:          "Fuji Apples",
		UnitPrice:     decimal.RequireFromString("3.50"),
		Unit:          "kg",
		StockQuantity: 10,
		MinStockLevel: 5,
		IsAvailable:   true,
	}
	if mutate != nil {
		mutate(product)
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func TestSearchProductsMatchesNameDescriptionKeywords(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	category := mustCreateCategory(t, db, "Fruit")

	mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.Name = "Fuji Apples"
	})
	mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.Name = "Bananas"
		desc := "Sweet apple-flavored snack"
		p.Description = &desc
	})
	mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.Name = "Mystery Box"
		p.Keywords = pq.StringArray{"apples", "seasonal"}
	})
	mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.Name = "Hidden Apples"
		p.IsAvailable = false
	})

	rows, err := svc.SearchProducts(ctx, "APPLE")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		require.NotEqual(t, "Hidden Apples", row.Name)
	}
}

func TestCreateProductPersistsUnavailableFlag(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	category := mustCreateCategory(t, db, "Fruit")

	created, err := svc.CreateProduct(ctx, ProductInput{
		CategoryID:    category.ID,
		Name:          "Preorder Mangoes",
		UnitPrice:     decimal.RequireFromString("6.00"),
		Unit:          "kg",
		StockQuantity: 12,
		MinStockLevel: 3,
		IsAvailable:   false,
	})
	require.NoError(t, err)
	require.False(t, created.IsAvailable)

	var stored models.Product
	require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
	require.False(t, stored.IsAvailable, "unavailable flag must survive the insert")

	rows, err := svc.ListProducts(ctx, &category.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestSearchProductsRequiresTerm(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	_, err := svc.SearchProducts(context.Background(), "   ")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestListCategoriesWithCountsOnlySellable(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	fruit := mustCreateCategory(t, db, "Fruit")
	dairy := mustCreateCategory(t, db, "Dairy")

	mustCreateProduct(t, db, fruit.ID, nil)
	mustCreateProduct(t, db, fruit.ID, func(p *models.Product) {
		p.Name = "Out of Stock Pears"
		p.StockQuantity = 0
	})
	mustCreateProduct(t, db, fruit.ID, func(p *models.Product) {
		p.Name = "Retired Plums"
		p.IsAvailable = false
	})

	rows, err := svc.ListCategoriesWithCounts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byName := map[string]int64{}
	for _, row := range rows {
		byName[row.Name] = row.ProductCount
	}
	require.Equal(t, int64(1), byName["Fruit"])
	require.Equal(t, int64(0), byName["Dairy"])
	_ = dairy
}

func TestAdjustStockNeverBelowZero(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	category := mustCreateCategory(t, db, "Fruit")
	product := mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.StockQuantity = 3
	})

	updated, err := svc.AdjustStock(ctx, product.ID, -2)
	require.NoError(t, err)
	require.Equal(t, 1, updated.StockQuantity)

	_, err = svc.AdjustStock(ctx, product.ID, -5)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	var current models.Product
	require.NoError(t, db.First(&current, "id = ?", product.ID).Error)
	require.Equal(t, 1, current.StockQuantity)
}

func TestDecrementStockIfAvailable(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	category := mustCreateCategory(t, db, "Fruit")
	product := mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.StockQuantity = 5
	})

	ok, err := repo.DecrementStockIfAvailable(ctx, product.ID, 4)
	require.NoError(t, err)
	require.True(t, ok)

	// Second taker wants more than the single remaining unit.
	ok, err = repo.DecrementStockIfAvailable(ctx, product.ID, 2)
	require.NoError(t, err)
	require.False(t, ok)

	var current models.Product
	require.NoError(t, db.First(&current, "id = ?", product.ID).Error)
	require.Equal(t, 1, current.StockQuantity)
}

func TestDiscountedUnitPrice(t *testing.T) {
	product := models.Product{
		UnitPrice:       decimal.RequireFromString("10.00"),
		DiscountPercent: 25,
	}
	require.True(t, DiscountedUnitPrice(product).Equal(decimal.RequireFromString("7.50")))

	product.DiscountPercent = 0
	require.True(t, DiscountedUnitPrice(product).Equal(product.UnitPrice))
}

func TestCreateProductValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	category := mustCreateCategory(t, db, "Fruit")

	_, err := svc.CreateProduct(ctx, ProductInput{
		CategoryID:      category.ID,
		Name:            "Bad Discount",
		UnitPrice:       decimal.RequireFromString("1.00"),
		DiscountPercent: 120,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = svc.CreateProduct(ctx, ProductInput{
		CategoryID: uuid.New(),
		Name:       "Orphan",
		UnitPrice:  decimal.RequireFromString("1.00"),
	})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestLowStockAndExpiryReports(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	category := mustCreateCategory(t, db, "Fruit")

	mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.Name = "Low Stock Limes"
		p.StockQuantity = 2
		p.MinStockLevel = 5
	})
	soon := time.Now().UTC().Add(48 * time.Hour)
	past := time.Now().UTC().Add(-24 * time.Hour)
	mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.Name = "Expiring Yogurt"
		p.ExpiryDate = &soon
	})
	mustCreateProduct(t, db, category.ID, func(p *models.Product) {
		p.Name = "Expired Milk"
		p.ExpiryDate = &past
	})

	low, err := svc.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "Low Stock Limes", low[0].Name)

	expiring, err := svc.ListExpiringSoon(ctx, 7)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	require.Equal(t, "Expiring Yogurt", expiring[0].Name)

	expired, err := svc.ListExpired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "Expired Milk", expired[0].Name)
}
