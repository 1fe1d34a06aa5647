package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartLine is one (customer, product, quantity) pairing of unconfirmed
// purchase intent. Unique per customer and product: adding the same product
// again increments the existing line.
type CartLine struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:idx_cart_customer_product"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_customer_product"`
	Quantity   int       `gorm:"column:quantity;not null"`
	AddedAt    time.Time `gorm:"column:added_at;autoCreateTime"`
}

func (l *CartLine) TableName() string { return "shopping_cart" }

func (l *CartLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
