package enums

// NotificationEventType names the fire-and-forget events published on the
// notification topic.
type NotificationEventType string

const (
	EventOrderConfirmed NotificationEventType = "order.confirmed"
	EventCartChanged    NotificationEventType = "cart.changed"
)
