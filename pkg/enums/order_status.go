package enums

// OrderStatus tracks the fulfillment lifecycle of an order. Orders are never
// deleted; they only move between these states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus tracks the payment attempt attached to an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ProductionStatus tracks where a line item sits in the workshop queue.
type ProductionStatus string

const (
	ProductionStatusQueued       ProductionStatus = "queued"
	ProductionStatusInProduction ProductionStatus = "in_production"
	ProductionStatusCompleted    ProductionStatus = "completed"
)
