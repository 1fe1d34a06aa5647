package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
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
	"github.com/greenbasket/greenbasket-backend/pkg/ordernum"
)

// PlaceOrderInput carries everything checkout needs besides the cart itself.
type PlaceOrderInput struct {
	CustomerID      uuid.UUID
	DeliveryAddress string
	DeliveryPhone   string
	PaymentMethod   enums.PaymentMethod
}

// Service turns a cart into a durable order.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
}

type service struct {
	client        *db.Client
	cartRepo      *cart.Repository
	catalogRepo   *catalog.Repository
	ordersRepo    *orders.Repository
	notifications notifications.Repository
	metrics       *metrics.CheckoutMetrics
	logg          *logger.Logger
	numberPrefix  string
}

// NewService wires checkout dependencies.
func NewService(
	client *db.Client,
	cartRepo *cart.Repository,
	catalogRepo *catalog.Repository,
	ordersRepo *orders.Repository,
	notificationsRepo notifications.Repository,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
	numberPrefix string,
) (Service, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if cartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	}
	if catalogRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog repository required")
	}
	if ordersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if notificationsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		client:        client,
		cartRepo:      cartRepo,
		catalogRepo:   catalogRepo,
		ordersRepo:    ordersRepo,
		notifications: notificationsRepo,
		metrics:       checkoutMetrics,
		logg:          logg,
		numberPrefix:  numberPrefix,
	}, nil
}

// PlaceOrder runs the whole checkout inside one transaction: the cart is read
// once, every line is validated before anything is written, stock is taken
// with conditional decrements, and any failure rolls the whole attempt back.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	started := time.Now()
	order, err := s.placeOrder(ctx, input)
	if err != nil {
		s.observeFailure(err, time.Since(started))
		return nil, err
	}

	s.metrics.IncOrderPlaced()
	s.metrics.ObserveDuration("success", time.Since(started))

	ctx = s.logg.WithOrderNumber(s.logg.WithCustomerID(ctx, input.CustomerID.String()), order.OrderNumber)
	s.logg.Info(ctx, "order placed")
	return order, nil
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if strings.TrimSpace(input.DeliveryPhone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery phone required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	orderNumber, err := ordernum.Generate(s.numberPrefix, time.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	var order *models.Order
	txErr := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		lines, err := s.cartRepo.WithTx(tx).ListLines(ctx, input.CustomerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read cart")
		}
		if len(lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		if err := validateLines(lines); err != nil {
			return err
		}

		order = buildOrder(input, orderNumber, lines)
		if err := s.ordersRepo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		catalogTx := s.catalogRepo.WithTx(tx)
		for _, line := range lines {
			ok, err := catalogTx.DecrementStockIfAvailable(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				detail := cart.StockDetail{
					ProductID:   line.ProductID,
					ProductName: line.ProductName,
					Requested:   line.Quantity,
				}
				if current, err := catalogTx.FindProductByID(ctx, line.ProductID); err == nil {
					detail.Available = current.StockQuantity
				}
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
					WithDetails([]cart.StockDetail{detail})
			}
		}

		title, message := notifications.OrderPlacedMessage(order.OrderNumber, order.FinalAmount)
		note := &models.Notification{
			CustomerID: input.CustomerID,
			Type:       enums.NotificationOrderPlaced,
			Title:      title,
			Message:    message,
			OrderID:    &order.ID,
		}
		if err := s.notifications.WithTx(tx).Create(ctx, note); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order notification")
		}

		if err := s.cartRepo.WithTx(tx).Clear(ctx, input.CustomerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if txErr != nil {
		if typed := pkgerrors.As(txErr); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "order could not be saved")
	}
	return order, nil
}

// validateLines rejects the checkout before any write when a line cannot be
// fulfilled. Stock shortfalls are reported together so the client can fix the
// cart in one pass.
func validateLines(lines []cart.Line) error {
	var invalid error
	var short []cart.StockDetail
	for _, line := range lines {
		if line.Quantity < 1 {
			invalid = multierr.Append(invalid, pkgerrors.New(pkgerrors.CodeValidation, "cart line for "+line.ProductName+" has no quantity"))
			continue
		}
		if !line.IsAvailable {
			invalid = multierr.Append(invalid, pkgerrors.New(pkgerrors.CodeValidation, line.ProductName+" is no longer available"))
			continue
		}
		if line.Quantity > line.StockQuantity {
			short = append(short, cart.StockDetail{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Requested:   line.Quantity,
				Available:   line.StockQuantity,
			})
		}
	}
	if invalid != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, invalid, "cart cannot be checked out")
	}
	if len(short) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(short)
	}
	return nil
}

func buildOrder(input PlaceOrderInput, orderNumber string, lines []cart.Line) *models.Order {
	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		subtotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    subtotal,
		})
	}

	return &models.Order{
		CustomerID:      input.CustomerID,
		OrderNumber:     orderNumber,
		TotalAmount:     total,
		DiscountAmount:  decimal.Zero,
		FinalAmount:     total,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   enums.PaymentStatusPending,
		OrderStatus:     enums.OrderStatusPending,
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		DeliveryPhone:   strings.TrimSpace(input.DeliveryPhone),
		Items:           items,
	}
}

func (s *service) observeFailure(err error, elapsed time.Duration) {
	reason := "internal"
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeValidation:
			reason = "validation"
		case pkgerrors.CodeConflict:
			reason = "insufficient_stock"
			s.metrics.IncInsufficientStock()
		case pkgerrors.CodeDependency:
			reason = "storage"
		}
	}
	s.metrics.IncFailure(reason)
	s.metrics.ObserveDuration("failure", elapsed)
}
