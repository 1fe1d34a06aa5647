package enums

// OrderStatus enumerates the lifecycle states of a customer order. The
// progression is pending → confirmed → processing → shipped → delivered,
// with cancelled as the alternate terminal state. Transitions are not
// restricted to that progression; only unknown values are rejected.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsValid reports whether the status is one of the enumerated values.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// NotifiesCustomer reports whether entering the status creates a customer
// notification. Forward statuses notify; pending and cancelled do not.
func (s OrderStatus) NotifiesCustomer() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}
