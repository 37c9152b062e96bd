// Package orders persists order headers and line items. Orders are created
// once at checkout and only their status fields mutate afterward.
package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/charmforge/charmforge-backend/pkg/db/models"
	"github.com/charmforge/charmforge-backend/pkg/enums"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	UpdatePayment(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, paymentIntentID *string) error
}
