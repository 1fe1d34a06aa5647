package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
)

// Repository wires together category and product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CategoryWithCount pairs a category with its sellable product count.
type CategoryWithCount struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Icon         *string   `json:"icon,omitempty"`
	ProductCount int64     `json:"product_count"`
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// ListCategoriesWithCounts returns categories with the number of products a
// shopper could actually buy (available and in stock).
func (r *Repository) ListCategoriesWithCounts(ctx context.Context) ([]CategoryWithCount, error) {
	var rows []CategoryWithCount
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id, c.name, c.icon, COUNT(p.id) AS product_count
		FROM categories c
		LEFT JOIN products p
		  ON p.category_id = c.id AND p.is_available AND p.stock_quantity > 0
		GROUP BY c.id, c.name, c.icon
		ORDER BY c.name ASC`).Scan(&rows).Error
	return rows, err
}

// CreateCategory inserts a new category row.
func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

// FindCategoryByID loads a category.
func (r *Repository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateProduct persists the full product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// DeleteProduct removes a product by ID.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// FindProductByID loads the product without filters, for detail and admin reads.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListAvailableProducts lists sellable products, optionally within a category,
// ordered by name.
func (r *Repository) ListAvailableProducts(ctx context.Context, categoryID *uuid.UUID) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Where("is_available = ?", true)
	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}
	var rows []models.Product
	err := query.Order("name ASC").Find(&rows).Error
	return rows, err
}

// SearchProducts matches the term against name, description, and keywords of
// available products. The keywords array is compared through its text form so
// the query stays portable across dialects.
func (r *Repository) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("is_available = ?", true).
		Where(`LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ? OR LOWER(COALESCE(CAST(keywords AS TEXT), '')) LIKE ?`,
			pattern, pattern, pattern).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// ListLowStockProducts returns products at or below their minimum stock level.
func (r *Repository) ListLowStockProducts(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("stock_quantity <= min_stock_level").
		Order("stock_quantity ASC").
		Find(&rows).Error
	return rows, err
}

// ListExpiringProducts returns products expiring within the provided window.
func (r *Repository) ListExpiringProducts(ctx context.Context, now time.Time, window time.Duration) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date > ? AND expiry_date <= ?", now, now.Add(window)).
		Order("expiry_date ASC").
		Find(&rows).Error
	return rows, err
}

// ListExpiredProducts returns products whose expiry date has passed.
func (r *Repository) ListExpiredProducts(ctx context.Context, now time.Time) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date <= ?", now).
		Order("expiry_date ASC").
		Find(&rows).Error
	return rows, err
}

// SoldCount aggregates quantity sold per product from order snapshots.
type SoldCount struct {
	ProductID uuid.UUID `json:"product_id"`
	Sold      int64     `json:"sold"`
}

// ListSoldCounts sums the ordered quantity per product across all orders.
func (r *Repository) ListSoldCounts(ctx context.Context) ([]SoldCount, error) {
	var rows []SoldCount
	err := r.db.WithContext(ctx).Raw(`
		SELECT product_id, SUM(quantity) AS sold
		FROM order_items
		GROUP BY product_id
		ORDER BY sold DESC`).Scan(&rows).Error
	return rows, err
}

// AdjustStock applies a signed delta and refuses to take stock below zero.
// Returns false when the guard rejected the write.
func (r *Repository) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity + ? >= 0", productID, delta).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DecrementStockIfAvailable atomically takes qty units out of stock. The
// conditional WHERE is what keeps concurrent checkouts from overselling:
// losing the race means zero rows affected, not negative stock.
func (r *Repository) DecrementStockIfAvailable(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
