package controllers

import (
	"net/http"

	"github.com/charmforge/charmforge-backend/api/middleware"
	"github.com/charmforge/charmforge-backend/api/responses"
	"github.com/charmforge/charmforge-backend/api/validators"
	cartsvc "github.com/charmforge/charmforge-backend/internal/cart"
	"github.com/charmforge/charmforge-backend/internal/cartgateway"
	checkoutsvc "github.com/charmforge/charmforge-backend/internal/checkout"
	"github.com/charmforge/charmforge-backend/internal/notifications"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
	"github.com/charmforge/charmforge-backend/pkg/payments"
	"github.com/charmforge/charmforge-backend/pkg/types"
)

type checkoutRequest struct {
	ShippingAddress *types.Address  `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address  `json:"billing_address,omitempty"`
	Payment         *paymentPayload `json:"payment,omitempty"`
}

type paymentPayload struct {
	SourceID       string `json:"source_id" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Checkout places an order from the session's current cart. On success the
// cart is cleared and the persisted order returned.
func Checkout(
	carts *cartsvc.Manager,
	gateway cartgateway.Service,
	svc checkoutsvc.Service,
	notifier notifications.Publisher,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := payload.ShippingAddress.Validate(); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address"))
			return
		}

		store := activeStore(ctx, carts, gateway, logg)
		snapshot := store.Snapshot()
		if len(snapshot.Items) == 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty"))
			return
		}

		input := checkoutsvc.PlaceOrderInput{
			Snapshot:        snapshot,
			SessionID:       middleware.SessionIDFromContext(ctx),
			UserID:          middleware.UserIDFromContext(ctx),
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
		}
		if payload.Payment != nil {
			input.Payment = &payments.PaymentInfo{
				SourceID:       payload.Payment.SourceID,
				IdempotencyKey: payload.Payment.IdempotencyKey,
			}
		}

		order, err := svc.PlaceOrder(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		store.ClearCart()
		if err := persistCart(ctx, gateway, notifier, store); err != nil {
			// The order exists; a stale persisted cart is recoverable.
			logg.Error(ctx, "clearing cart after checkout", err)
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
