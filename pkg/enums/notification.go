package enums

// NotificationType tags the order-lifecycle event a notification describes.
type NotificationType string

const (
	NotificationOrderPlaced     NotificationType = "order_placed"
	NotificationOrderConfirmed  NotificationType = "order_confirmed"
	NotificationOrderProcessing NotificationType = "order_processing"
	NotificationOrderShipped    NotificationType = "order_shipped"
	NotificationOrderDelivered  NotificationType = "order_delivered"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationOrderPlaced, NotificationOrderConfirmed, NotificationOrderProcessing,
		NotificationOrderShipped, NotificationOrderDelivered:
		return true
	default:
		return false
	}
}

// NotificationTypeForStatus maps a forward order status to its notification
// type. The second return is false for statuses that do not notify.
func NotificationTypeForStatus(status OrderStatus) (NotificationType, bool) {
	switch status {
	case OrderStatusConfirmed:
		return NotificationOrderConfirmed, true
	case OrderStatusProcessing:
		return NotificationOrderProcessing, true
	case OrderStatusShipped:
		return NotificationOrderShipped, true
	case OrderStatusDelivered:
		return NotificationOrderDelivered, true
	default:
		return "", false
	}
}
