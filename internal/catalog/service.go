package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
	"github.com/greenbasket/greenbasket-backend/pkg/logger"
)

// Service defines catalog browse and admin operations.
type Service interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListCategoriesWithCounts(ctx context.Context) ([]CategoryWithCount, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*models.Category, error)

	ListProducts(ctx context.Context, categoryID *uuid.UUID) ([]models.Product, error)
	SearchProducts(ctx context.Context, term string) ([]models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)

	CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ToggleAvailability(ctx context.Context, id uuid.UUID) (*models.Product, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error)

	ListLowStock(ctx context.Context) ([]models.Product, error)
	ListExpiringSoon(ctx context.Context, days int) ([]models.Product, error)
	ListExpired(ctx context.Context) ([]models.Product, error)
	ListSoldCounts(ctx context.Context) ([]SoldCount, error)
}

// CategoryInput carries the fields needed to create a category.
type CategoryInput struct {
	Name string
	Icon *string
}

// ProductInput carries the writable product fields for create/update.
type ProductInput struct {
	CategoryID       uuid.UUID
	Name             string
	Description      *string
	ImageRef         *string
	UnitPrice        decimal.Decimal
	Unit             string
	StockQuantity    int
	MinStockLevel    int
	DiscountPercent  int
	IsAvailable      bool
	Keywords         []string
	ManufacturedDate *time.Time
	ExpiryDate       *time.Time
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

// NewService wires catalog dependencies.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// DiscountedUnitPrice applies the display discount to the listed price.
// Cart and checkout intentionally charge the undiscounted unit price; this
// helper exists for catalog presentation only.
func DiscountedUnitPrice(p models.Product) decimal.Decimal {
	if p.DiscountPercent <= 0 {
		return p.UnitPrice
	}
	factor := decimal.NewFromInt(int64(100 - p.DiscountPercent)).Div(decimal.NewFromInt(100))
	return p.UnitPrice.Mul(factor).Round(2)
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return rows, nil
}

func (s *service) ListCategoriesWithCounts(ctx context.Context) ([]CategoryWithCount, error) {
	rows, err := s.repo.ListCategoriesWithCounts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories with counts")
	}
	return rows, nil
}

func (s *service) CreateCategory(ctx context.Context, input CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}

	category := &models.Category{Name: name, Icon: input.Icon}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}

func (s *service) ListProducts(ctx context.Context, categoryID *uuid.UUID) ([]models.Product, error) {
	rows, err := s.repo.ListAvailableProducts(ctx, categoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, nil
}

func (s *service) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	if strings.TrimSpace(term) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search term required")
	}
	rows, err := s.repo.SearchProducts(ctx, term)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	return rows, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindCategoryByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}

	product := productFromInput(input)
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "product created")
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := productFromInput(input)
	updated.ID = product.ID
	updated.CreatedAt = product.CreatedAt
	if err := s.repo.UpdateProduct(ctx, updated); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return updated, nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) ToggleAvailability(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product.IsAvailable = !product.IsAvailable
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle availability")
	}
	return product, nil
}

func (s *service) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock delta cannot be zero")
	}
	if _, err := s.GetProduct(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "stock cannot go below zero")
	}
	return s.GetProduct(ctx, id)
}

func (s *service) ListLowStock(ctx context.Context) ([]models.Product, error) {
	rows, err := s.repo.ListLowStockProducts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock products")
	}
	return rows, nil
}

func (s *service) ListExpiringSoon(ctx context.Context, days int) ([]models.Product, error) {
	if days <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be positive")
	}
	rows, err := s.repo.ListExpiringProducts(ctx, time.Now().UTC(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expiring products")
	}
	return rows, nil
}

func (s *service) ListExpired(ctx context.Context) ([]models.Product, error) {
	rows, err := s.repo.ListExpiredProducts(ctx, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired products")
	}
	return rows, nil
}

func (s *service) ListSoldCounts(ctx context.Context) ([]SoldCount, error) {
	rows, err := s.repo.ListSoldCounts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sold counts")
	}
	return rows, nil
}

func validateProductInput(input ProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.CategoryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category id required")
	}
	if input.UnitPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if input.StockQuantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	if input.DiscountPercent < 0 || input.DiscountPercent > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 0 and 100")
	}
	return nil
}

func productFromInput(input ProductInput) *models.Product {
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = "pcs"
	}
	return &models.Product{
		CategoryID:       input.CategoryID,
		Name:             strings.TrimSpace(input.Name),
		Description:      input.Description,
		ImageRef:         input.ImageRef,
		UnitPrice:        input.UnitPrice,
		Unit:             unit,
		StockQuantity:    input.StockQuantity,
		MinStockLevel:    input.MinStockLevel,
		DiscountPercent:  input.DiscountPercent,
		IsAvailable:      input.IsAvailable,
		Keywords:         pq.StringArray(input.Keywords),
		ManufacturedDate: input.ManufacturedDate,
		ExpiryDate:       input.ExpiryDate,
	}
}
