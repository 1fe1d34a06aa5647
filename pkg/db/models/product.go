package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the canonical catalog listing. Stock is a single scalar per
// product; historical orders snapshot name and price so a product row can be
// edited or deleted without rewriting order history.
//
// Boolean columns carry no gorm default tag: GORM substitutes a tagged
// default for an explicit false on insert. Schema defaults live in the
// migration.
type Product struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID       uuid.UUID       `gorm:"column:category_id;type:uuid;not null;index"`
	Name             string          `gorm:"column:name;not null"`
	Description      *string         `gorm:"column:description"`
	ImageRef         *string         `gorm:"column:image_ref"`
	UnitPrice        decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Unit             string          `gorm:"column:unit;not null;default:'pcs'"`
	StockQuantity    int             `gorm:"column:stock_quantity;not null;default:0"`
	MinStockLevel    int             `gorm:"column:min_stock_level;not null;default:5"`
	DiscountPercent  int             `gorm:"column:discount_percent;not null;default:0"`
	IsAvailable      bool            `gorm:"column:is_available;not null"`
	Keywords         pq.StringArray  `gorm:"column:keywords;type:text[]"`
	ManufacturedDate *time.Time      `gorm:"column:manufactured_date"`
	ExpiryDate       *time.Time      `gorm:"column:expiry_date"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
