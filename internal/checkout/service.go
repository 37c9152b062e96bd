// Package checkout orchestrates the order transaction: validate the cart,
// reserve inventory, persist the order, take payment, and confirm. Any
// failure after reservation triggers a compensating release so no hold is
// ever left orphaned.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/charmforge/charmforge-backend/internal/cart"
	"github.com/charmforge/charmforge-backend/internal/inventory"
	"github.com/charmforge/charmforge-backend/internal/notifications"
	"github.com/charmforge/charmforge-backend/internal/orders"
	"github.com/charmforge/charmforge-backend/pkg/db"
	"github.com/charmforge/charmforge-backend/pkg/db/models"
	"github.com/charmforge/charmforge-backend/pkg/enums"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
	"github.com/charmforge/charmforge-backend/pkg/metrics"
	"github.com/charmforge/charmforge-backend/pkg/payments"
	"github.com/charmforge/charmforge-backend/pkg/retry"
	"github.com/charmforge/charmforge-backend/pkg/types"
)

const orderCreateAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PlaceOrderInput carries everything checkout needs: the cart snapshot taken
// at the moment of checkout, the owning identity, addresses, and optional
// payment info. Without payment info the order stays pending for offline
// capture.
type PlaceOrderInput struct {
	Snapshot        cart.CartSnapshot
	SessionID       string
	UserID          string
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	Payment         *payments.PaymentInfo
}

// Service turns a validated cart into a persisted order.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
}

type service struct {
	tx        txRunner
	ordersRpo orders.Repository
	inventory inventory.Gateway
	gateway   payments.Gateway
	notifier  notifications.Publisher
	exec      *retry.Executor
	numbers   *orders.NumberGenerator
	checkout  *metrics.CheckoutMetrics
	logg      *logger.Logger
}

// NewService builds the checkout coordinator. The payment gateway may be nil
// when the deployment runs without a processor; orders then stay pending.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	inventoryGw inventory.Gateway,
	gateway payments.Gateway,
	notifier notifications.Publisher,
	exec *retry.Executor,
	numbers *orders.NumberGenerator,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inventoryGw == nil {
		return nil, fmt.Errorf("inventory gateway required")
	}
	if notifier == nil {
		notifier = notifications.NopPublisher{}
	}
	if exec == nil {
		return nil, fmt.Errorf("retry executor required")
	}
	if numbers == nil {
		return nil, fmt.Errorf("number generator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		ordersRpo: ordersRepo,
		inventory: inventoryGw,
		gateway:   gateway,
		notifier:  notifier,
		exec:      exec,
		numbers:   numbers,
		checkout:  checkoutMetrics,
		logg:      logg,
	}, nil
}

// reservationRequest is one hold to place, derived from the cart lines.
type reservationRequest struct {
	inventoryID uuid.UUID
	quantity    int
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	started := time.Now()
	order, err := s.placeOrder(ctx, input)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.checkout.ObserveDuration(outcome, time.Since(started))
	s.checkout.IncOrder(outcome)
	return order, err
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	// Step 1: validation. Nothing has side effects yet, so a failure here
	// leaves nothing to roll back.
	if err := s.validate(ctx, input); err != nil {
		return nil, err
	}

	requests := buildReservationRequests(input.Snapshot.Items)

	// Step 2: reservation. All holds share one id so a partial failure can
	// release everything placed so far.
	reservationID := uuid.New()
	ctx = s.logg.WithReservationID(ctx, reservationID.String())
	if err := s.reserve(ctx, reservationID, requests); err != nil {
		return nil, err
	}

	// Step 3: order + items, atomically.
	order, err := s.createOrder(ctx, input)
	if err != nil {
		s.rollbackReservation(ctx, reservationID)
		return nil, err
	}
	ctx = s.logg.WithOrderNumber(ctx, order.OrderNumber)

	// Step 4: payment, when info was supplied. A declined payment keeps the
	// order for audit but cancels it and releases the holds.
	if input.Payment != nil && s.gateway != nil {
		if err := s.processPayment(ctx, order, *input.Payment); err != nil {
			s.rollbackReservation(ctx, reservationID)
			return nil, err
		}
	} else {
		s.logg.Info(ctx, "order placed without payment, left pending")
	}

	// The holds become a permanent decrement once the order is final.
	if err := s.commitReservation(ctx, reservationID); err != nil {
		s.logg.Error(ctx, "committing reservation", err)
	}

	// Step 5: confirmation is fire-and-forget.
	s.notifier.OrderConfirmation(ctx, notifications.OrderConfirmedEvent{
		OrderNumber: order.OrderNumber,
		UserID:      input.UserID,
		SessionID:   input.SessionID,
		Total:       order.Total.StringFixed(2),
		ItemCount:   input.Snapshot.Summary.ItemCount,
	})

	s.logg.Info(ctx, "order placed")
	return order, nil
}

func (s *service) validate(ctx context.Context, input PlaceOrderInput) error {
	items := input.Snapshot.Items
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !input.Snapshot.Summary.Total.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || strings.TrimSpace(item.Title) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart item is missing product id or title")
		}
		if !item.UnitPrice.IsPositive() {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "item %q must have a positive price", item.Title)
		}
		if item.Quantity < 1 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "item %q must have a positive quantity", item.Title)
		}
		if item.IsCustomDesign {
			if err := s.validateCustomDesign(ctx, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateCustomDesign checks every referenced component is active with at
// least one available unit before any reservation is attempted.
func (s *service) validateCustomDesign(ctx context.Context, item cart.CartItem) error {
	if item.Design == nil || len(item.Design.Components) == 0 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "custom design %q has no components", item.Title)
	}
	for _, component := range item.Design.Components {
		var invItem *models.InventoryItem
		err := s.exec.Do(ctx, "inventory.get:"+component.InventoryID.String(), func(ctx context.Context) error {
			got, getErr := s.inventory.GetItem(ctx, component.InventoryID)
			if getErr != nil {
				return getErr
			}
			invItem = got
			return nil
		})
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				return pkgerrors.Newf(pkgerrors.CodeValidation,
					"design component %s does not exist", component.InventoryID)
			}
			return err
		}
		if invItem.Status != enums.InventoryStatusActive {
			return pkgerrors.Newf(pkgerrors.CodeValidation,
				"design component %s is %s", component.InventoryID, invItem.Status)
		}
		if invItem.AvailableQty < 1 {
			return pkgerrors.Newf(pkgerrors.CodeValidation,
				"design component %s is out of stock", component.InventoryID)
		}
	}
	return nil
}

// buildReservationRequests derives the holds: full quantity per stocked
// non-custom line, one unit per referenced component of a custom design.
// Lines without an inventory link are made to order and reserve nothing.
func buildReservationRequests(items []cart.CartItem) []reservationRequest {
	var requests []reservationRequest
	for _, item := range items {
		if item.IsCustomDesign {
			if item.Design == nil {
				continue
			}
			for _, component := range item.Design.Components {
				requests = append(requests, reservationRequest{inventoryID: component.InventoryID, quantity: 1})
			}
			continue
		}
		if item.InventoryID != nil {
			requests = append(requests, reservationRequest{inventoryID: *item.InventoryID, quantity: item.Quantity})
		}
	}
	return requests
}

func (s *service) reserve(ctx context.Context, reservationID uuid.UUID, requests []reservationRequest) error {
	for _, req := range requests {
		req := req
		err := s.exec.Do(ctx, "inventory.reserve:"+reservationID.String(), func(ctx context.Context) error {
			return s.inventory.Reserve(ctx, req.inventoryID, req.quantity, reservationID)
		})
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "inventory_id", req.inventoryID.String()),
				"inventory reservation failed", err)
			s.rollbackReservation(ctx, reservationID)
			return err
		}
	}
	return nil
}

// rollbackReservation releases every hold placed under the id. Release
// failures are aggregated and logged; the original pipeline error still
// propagates to the caller.
func (s *service) rollbackReservation(ctx context.Context, reservationID uuid.UUID) {
	s.checkout.IncRollback()
	var rollbackErr error
	err := s.exec.Do(ctx, "inventory.release:"+reservationID.String(), func(ctx context.Context) error {
		return s.inventory.ReleaseReservation(ctx, reservationID)
	})
	rollbackErr = multierr.Append(rollbackErr, err)
	if rollbackErr != nil {
		s.logg.Error(ctx, "releasing inventory reservation", rollbackErr)
	}
}

func (s *service) commitReservation(ctx context.Context, reservationID uuid.UUID) error {
	return s.exec.Do(ctx, "inventory.commit:"+reservationID.String(), func(ctx context.Context) error {
		return s.inventory.CommitReservation(ctx, reservationID)
	})
}

func (s *service) createOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	var lastErr error
	for attempt := 0; attempt < orderCreateAttempts; attempt++ {
		number, err := s.numbers.GenerateUnique(ctx, s.ordersRpo)
		if err != nil {
			return nil, err
		}

		order := orderFromSnapshot(input, number)
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.ordersRpo.WithTx(tx)
			if _, createErr := repo.CreateOrder(ctx, order); createErr != nil {
				return createErr
			}
			return repo.CreateOrderItems(ctx, order.Items)
		})
		if err == nil {
			return order, nil
		}
		lastErr = err
		// Another checkout can win the same number between the uniqueness
		// probe and the insert; mint a fresh one and try again.
		if !db.IsUniqueViolation(err, "ux_orders_order_number") {
			break
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "persisting order")
}

func orderFromSnapshot(input PlaceOrderInput, number string) *models.Order {
	snapshot := input.Snapshot
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		Subtotal:        snapshot.Summary.Subtotal,
		Tax:             snapshot.Summary.Tax,
		Shipping:        snapshot.Summary.Shipping,
		Discount:        snapshot.Summary.Discount,
		Total:           snapshot.Summary.Total,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
	}
	if input.SessionID != "" {
		sessionID := input.SessionID
		order.SessionID = &sessionID
	}
	if input.UserID != "" {
		userID := input.UserID
		order.UserID = &userID
	}

	for _, item := range snapshot.Items {
		order.Items = append(order.Items, models.OrderItem{
			ID:                 uuid.New(),
			OrderID:            order.ID,
			ItemName:           item.Title,
			ProductID:          item.ProductID,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			TotalPrice:         item.TotalPrice,
			IsCustomDesign:     item.IsCustomDesign,
			UsedInventoryItems: usedInventoryFor(item),
			ProductionStatus:   enums.ProductionStatusQueued,
		})
	}
	return order
}

// usedInventoryFor records the exact inventory ids a line consumed, needed
// later for fulfillment and audit.
func usedInventoryFor(item cart.CartItem) []uuid.UUID {
	if item.IsCustomDesign {
		if item.Design == nil {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(item.Design.Components))
		for _, component := range item.Design.Components {
			ids = append(ids, component.InventoryID)
		}
		return ids
	}
	if item.InventoryID != nil {
		return []uuid.UUID{*item.InventoryID}
	}
	return nil
}

// processPayment charges the order total. Failure cancels the order but
// keeps the row for audit; the caller releases the inventory holds.
func (s *service) processPayment(ctx context.Context, order *models.Order, info payments.PaymentInfo) error {
	var result *payments.PaymentResult
	err := s.exec.Do(ctx, "payment.process:"+order.OrderNumber, func(ctx context.Context) error {
		got, payErr := s.gateway.ProcessPayment(ctx, payments.ChargeRequest{
			OrderNumber: order.OrderNumber,
			Amount:      order.Total,
			Payment:     info,
		})
		if got != nil {
			result = got
		}
		return payErr
	})
	if err != nil {
		var intentID *string
		if result != nil && result.PaymentIntentID != "" {
			id := result.PaymentIntentID
			intentID = &id
		}
		if updErr := s.ordersRpo.UpdatePayment(ctx, order.ID, enums.PaymentStatusFailed, intentID); updErr != nil {
			s.logg.Error(ctx, "marking payment failed", updErr)
		}
		if updErr := s.ordersRpo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); updErr != nil {
			s.logg.Error(ctx, "cancelling order after payment failure", updErr)
		}
		order.PaymentStatus = enums.PaymentStatusFailed
		order.Status = enums.OrderStatusCancelled
		return err
	}

	// The charge has settled. Bookkeeping failures past this point are
	// logged for reconciliation but never propagate: propagating would make
	// the caller release holds backing a captured payment.
	intentID := result.PaymentIntentID
	if err := s.ordersRpo.UpdatePayment(ctx, order.ID, enums.PaymentStatusSucceeded, &intentID); err != nil {
		s.logg.Error(ctx, "recording captured payment", err)
	}
	if err := s.ordersRpo.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing); err != nil {
		s.logg.Error(ctx, "marking order processing", err)
	}
	order.PaymentStatus = enums.PaymentStatusSucceeded
	order.PaymentIntentID = &intentID
	order.Status = enums.OrderStatusProcessing
	return nil
}
