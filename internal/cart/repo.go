package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
)

// Line is a cart row joined with the live product columns the storefront
// renders. Prices here are quotes; checkout re-reads them inside its own
// transaction.
type Line struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	ProductName     string          `json:"product_name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Unit            string          `json:"unit"`
	DiscountPercent int             `json:"discount_percent"`
	StockQuantity   int             `json:"stock_quantity"`
	IsAvailable     bool            `json:"is_available"`
	Quantity        int             `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
}

// Repository exposes persistence helpers for the shopping cart.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a cart repository bound to the provided database.
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

// FindLine loads the cart line for the customer/product pair.
func (r *Repository) FindLine(ctx context.Context, customerID, productID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		First(&line, "customer_id = ? AND product_id = ?", customerID, productID).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// CreateLine inserts a new cart line.
func (r *Repository) CreateLine(ctx context.Context, line *models.CartLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// SetQuantity overwrites the quantity on an existing line.
func (r *Repository) SetQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		UpdateColumn("quantity", quantity).Error
}

// DeleteLine removes the line for the customer/product pair. Deleting a line
// that does not exist is not an error.
func (r *Repository) DeleteLine(ctx context.Context, customerID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("customer_id = ? AND product_id = ?", customerID, productID).
		Delete(&models.CartLine{}).Error
}

// Clear removes every line owned by the customer.
func (r *Repository) Clear(ctx context.Context, customerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&models.CartLine{}).Error
}

// ListLines joins cart rows with their products, newest additions first.
func (r *Repository) ListLines(ctx context.Context, customerID uuid.UUID) ([]Line, error) {
	var rows []Line
	err := r.db.WithContext(ctx).Raw(`
		SELECT sc.id,
		       sc.product_id,
		       p.name AS product_name,
		       p.unit_price,
		       p.unit,
		       p.discount_percent,
		       p.stock_quantity,
		       p.is_available,
		       sc.quantity,
		       p.unit_price * sc.quantity AS subtotal
		FROM shopping_cart sc
		JOIN products p ON p.id = sc.product_id
		WHERE sc.customer_id = ?
		ORDER BY sc.added_at DESC, sc.id DESC`, customerID).Scan(&rows).Error
	return rows, err
}
