package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/charmforge/charmforge-backend/api/middleware"
	"github.com/charmforge/charmforge-backend/api/responses"
	"github.com/charmforge/charmforge-backend/api/validators"
	cartsvc "github.com/charmforge/charmforge-backend/internal/cart"
	"github.com/charmforge/charmforge-backend/internal/cartgateway"
	"github.com/charmforge/charmforge-backend/internal/notifications"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
)

// CartFetch returns the session's cart, hydrating it from the persistence
// gateway on first contact.
func CartFetch(carts *cartsvc.Manager, gateway cartgateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := activeStore(r.Context(), carts, gateway, logg)
		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartSummary returns just the derived totals.
func CartSummary(carts *cartsvc.Manager, gateway cartgateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store := activeStore(r.Context(), carts, gateway, logg)
		responses.WriteSuccess(w, store.Summary())
	}
}

type addItemRequest struct {
	ProductID      string                 `json:"product_id" validate:"required"`
	Title          string                 `json:"title" validate:"required"`
	UnitPrice      string                 `json:"unit_price" validate:"required"`
	Quantity       int                    `json:"quantity" validate:"required,min=1"`
	IsCustomDesign bool                   `json:"is_custom_design"`
	InventoryID    *uuid.UUID             `json:"inventory_id,omitempty"`
	Design         *designSnapshotPayload `json:"design,omitempty"`
}

type designSnapshotPayload struct {
	Components []designComponentPayload `json:"components" validate:"required,min=1,dive"`
}

type designComponentPayload struct {
	InventoryID uuid.UUID `json:"inventory_id" validate:"required"`
	Placement   string    `json:"placement"`
}

func (r addItemRequest) toInput() (cartsvc.ItemInput, error) {
	unitPrice, err := decimal.NewFromString(r.UnitPrice)
	if err != nil {
		return cartsvc.ItemInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit price")
	}
	input := cartsvc.ItemInput{
		ProductID:      r.ProductID,
		Title:          r.Title,
		UnitPrice:      unitPrice,
		IsCustomDesign: r.IsCustomDesign,
		InventoryID:    r.InventoryID,
	}
	if r.Design != nil {
		design := &cartsvc.DesignSnapshot{Components: make([]cartsvc.DesignComponent, len(r.Design.Components))}
		for i, component := range r.Design.Components {
			design.Components[i] = cartsvc.DesignComponent{
				InventoryID: component.InventoryID,
				Placement:   component.Placement,
			}
		}
		input.Design = design
	}
	return input, nil
}

// CartAddItem appends or merges a line into the cart.
func CartAddItem(carts *cartsvc.Manager, gateway cartgateway.Service, notifier notifications.Publisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		store := activeStore(ctx, carts, gateway, logg)
		item, err := store.AddItem(input, payload.Quantity, cartsvc.AddOptions{SkipValidation: payload.IsCustomDesign})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := persistCart(ctx, gateway, notifier, store); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"item": item,
			"cart": store.Snapshot(),
		})
	}
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CartUpdateItem changes a line's quantity.
func CartUpdateItem(carts *cartsvc.Manager, gateway cartgateway.Service, notifier notifications.Publisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart item id"))
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		store := activeStore(ctx, carts, gateway, logg)
		if err := store.UpdateItemQuantity(itemID, payload.Quantity); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := persistCart(ctx, gateway, notifier, store); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartRemoveItem deletes a line.
func CartRemoveItem(carts *cartsvc.Manager, gateway cartgateway.Service, notifier notifications.Publisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart item id"))
			return
		}

		store := activeStore(ctx, carts, gateway, logg)
		if err := store.RemoveItem(itemID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := persistCart(ctx, gateway, notifier, store); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartClear empties the cart.
func CartClear(carts *cartsvc.Manager, gateway cartgateway.Service, notifier notifications.Publisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		store := activeStore(ctx, carts, gateway, logg)
		store.ClearCart()

		if err := persistCart(ctx, gateway, notifier, store); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, store.Snapshot())
	}
}

// CartUndo rolls the cart back one mutation.
func CartUndo(carts *cartsvc.Manager, gateway cartgateway.Service, notifier notifications.Publisher, logg *logger.Logger) http.HandlerFunc {
	return cartHistoryHandler(carts, gateway, notifier, logg, (*cartsvc.Store).Undo)
}

// CartRedo re-applies the last undone mutation.
func CartRedo(carts *cartsvc.Manager, gateway cartgateway.Service, notifier notifications.Publisher, logg *logger.Logger) http.HandlerFunc {
	return cartHistoryHandler(carts, gateway, notifier, logg, (*cartsvc.Store).Redo)
}

func cartHistoryHandler(
	carts *cartsvc.Manager,
	gateway cartgateway.Service,
	notifier notifications.Publisher,
	logg *logger.Logger,
	step func(*cartsvc.Store) bool,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		store := activeStore(ctx, carts, gateway, logg)
		applied := step(store)
		if applied {
			if err := persistCart(ctx, gateway, notifier, store); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		responses.WriteSuccess(w, map[string]any{
			"applied": applied,
			"cart":    store.Snapshot(),
		})
	}
}

// CartTransfer merges the guest cart into the authenticated user's cart. The
// login flow calls this once a bearer token is available.
func CartTransfer(carts *cartsvc.Manager, gateway cartgateway.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required"))
			return
		}
		sessionID := middleware.SessionIDFromContext(ctx)

		merged, err := gateway.TransferGuestCartToUser(ctx, sessionID, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		store := carts.StoreFor(sessionID)
		store.SetUserID(userID)
		if merged != nil {
			store.Restore(*merged)
		}

		responses.WriteSuccess(w, store.Snapshot())
	}
}

// activeStore resolves the in-memory cart for this request, hydrating a fresh
// store from the gateway so carts survive process restarts.
func activeStore(ctx context.Context, carts *cartsvc.Manager, gateway cartgateway.Service, logg *logger.Logger) *cartsvc.Store {
	sessionID := middleware.SessionIDFromContext(ctx)
	userID := middleware.UserIDFromContext(ctx)

	store := carts.StoreFor(sessionID)
	if userID != "" {
		store.SetUserID(userID)
	}

	// Hydrate only a store that has never seen a mutation, an undo, or a
	// prior load. Anything else is authoritative in memory; overwriting it
	// would wipe the history stacks.
	if gateway == nil || !store.NeedsHydration() {
		return store
	}

	var persisted *cartsvc.CartSnapshot
	var err error
	if userID != "" {
		persisted, err = gateway.GetUserCart(ctx, userID)
	} else {
		persisted, err = gateway.GetGuestCart(ctx, sessionID)
	}
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Nothing persisted; remember that so empty carts are not
			// re-fetched on every request.
			store.MarkHydrated()
		} else if logg != nil {
			logg.Error(ctx, "hydrating cart", err)
		}
		return store
	}
	if persisted != nil {
		store.Restore(*persisted)
	}
	return store
}

// persistCart writes the mutated cart through the gateway and announces the
// change. Guest saves fall back inside the gateway; user saves surface errors.
func persistCart(ctx context.Context, gateway cartgateway.Service, notifier notifications.Publisher, store *cartsvc.Store) error {
	snapshot := store.Snapshot()
	sessionID := snapshot.SessionID
	userID := snapshot.UserID

	if gateway != nil {
		var err error
		if userID != "" {
			err = gateway.SaveUserCart(ctx, userID, snapshot)
		} else {
			err = gateway.SaveGuestCart(ctx, sessionID, snapshot)
		}
		if err != nil {
			return err
		}
	}

	if notifier != nil {
		notifier.CartChanged(ctx, notifications.CartChangedEvent{
			SessionID: sessionID,
			UserID:    userID,
			ItemCount: snapshot.Summary.ItemCount,
			Version:   snapshot.Version,
		})
	}
	return nil
}
