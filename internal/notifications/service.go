package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
	"github.com/greenbasket/greenbasket-backend/pkg/enums"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
	"github.com/greenbasket/greenbasket-backend/pkg/pagination"
)

// Service defines notification list/read operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	UnreadCount(ctx context.Context, customerID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, customerID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, customerID uuid.UUID) (int64, error)
}

type service struct {
	repo         Repository
	defaultLimit int
}

// ListParams configures pagination for notifications.
type ListParams struct {
	CustomerID uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies. defaultLimit applies when a
// caller does not request a page size.
func NewService(repo Repository, defaultLimit int) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if defaultLimit <= 0 {
		defaultLimit = pagination.DefaultLimit
	}
	return &service{repo: repo, defaultLimit: defaultLimit}, nil
}

// OrderPlacedMessage renders the notification body for a fresh order.
func OrderPlacedMessage(orderNumber string, finalAmount decimal.Decimal) (title, message string) {
	return "Order placed", fmt.Sprintf("Your order %s for %s has been placed.", orderNumber, finalAmount.StringFixed(2))
}

// StatusMessage renders the notification body for an order status change.
// The second return is false for statuses that do not notify the customer.
func StatusMessage(orderNumber string, status enums.OrderStatus) (models.Notification, bool) {
	notifType, ok := enums.NotificationTypeForStatus(status)
	if !ok {
		return models.Notification{}, false
	}
	var title, message string
	switch status {
	case enums.OrderStatusConfirmed:
		title = "Order confirmed"
		message = fmt.Sprintf("Your order %s has been confirmed.", orderNumber)
	case enums.OrderStatusProcessing:
		title = "Order processing"
		message = fmt.Sprintf("Your order %s is being prepared.", orderNumber)
	case enums.OrderStatusShipped:
		title = "Order shipped"
		message = fmt.Sprintf("Your order %s is on its way.", orderNumber)
	case enums.OrderStatusDelivered:
		title = "Order delivered"
		message = fmt.Sprintf("Your order %s has been delivered.", orderNumber)
	}
	return models.Notification{Type: notifType, Title: title, Message: message}, true
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	limit := params.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	query := listNotificationsParams{
		CustomerID: params.CustomerID,
		Limit:      limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) UnreadCount(ctx context.Context, customerID uuid.UUID) (int64, error) {
	if customerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	count, err := s.repo.UnreadCount(ctx, customerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

func (s *service) MarkRead(ctx context.Context, customerID, notificationID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, customerID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, customerID uuid.UUID) (int64, error) {
	if customerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	count, err := s.repo.MarkAllRead(ctx, customerID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
