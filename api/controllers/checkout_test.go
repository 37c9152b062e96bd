package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/charmforge/charmforge-backend/api/middleware"
	checkoutsvc "github.com/charmforge/charmforge-backend/internal/checkout"
	"github.com/charmforge/charmforge-backend/pkg/db/models"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
)

type stubCheckoutService struct {
	order *models.Order
	err   error
	calls int
	last  checkoutsvc.PlaceOrderInput
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, input checkoutsvc.PlaceOrderInput) (*models.Order, error) {
	s.calls++
	s.last = input
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func checkoutBody() map[string]any {
	return map[string]any{
		"shipping_address": map[string]any{
			"line1":       "1 Charm Way",
			"city":        "Portland",
			"state":       "OR",
			"postal_code": "97201",
			"country":     "US",
		},
		"payment": map[string]any{
			"source_id": "cnon:card-ok",
		},
	}
}

func (env *cartTestEnv) checkout(t *testing.T, svc checkoutsvc.Service, sessionID, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewReader(encoded))
	ctx := middleware.WithSessionID(req.Context(), sessionID)
	if userID != "" {
		ctx = middleware.WithUserID(ctx, userID)
	}
	resp := httptest.NewRecorder()
	Checkout(env.carts, env.gateway, svc, env.notifier, env.logg)(resp, req.WithContext(ctx))
	return resp
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	env := newCartTestEnv()
	svc := &stubCheckoutService{}
	resp := env.checkout(t, svc, "sess-1", "", checkoutBody())
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service must not be called for an empty cart")
	}
}

func TestCheckoutRejectsMissingShippingAddress(t *testing.T) {
	t.Parallel()

	env := newCartTestEnv()
	env.do(t, http.MethodPost, "/cart/items", "sess-1", "", addItemBody("charm-1", 1))

	svc := &stubCheckoutService{}
	resp := env.checkout(t, svc, "sess-1", "", map[string]any{
		"shipping_address": map[string]any{"line1": "1 Charm Way"},
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete address, got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("service must not be called with an invalid address")
	}
}

func TestCheckoutPlacesOrderAndClearsCart(t *testing.T) {
	t.Parallel()

	env := newCartTestEnv()
	env.do(t, http.MethodPost, "/cart/items", "sess-1", "", addItemBody("charm-1", 2))

	svc := &stubCheckoutService{order: &models.Order{ID: uuid.New(), OrderNumber: "CF-20260805-0042"}}
	resp := env.checkout(t, svc, "sess-1", "", checkoutBody())
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	if svc.calls != 1 {
		t.Fatalf("expected one place-order call, got %d", svc.calls)
	}
	if len(svc.last.Snapshot.Items) != 1 {
		t.Fatalf("expected the cart snapshot passed through, got %d items", len(svc.last.Snapshot.Items))
	}
	if svc.last.Payment == nil || svc.last.Payment.SourceID != "cnon:card-ok" {
		t.Fatalf("expected payment info forwarded, got %+v", svc.last.Payment)
	}

	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode order response: %v", err)
	}
	if envelope.Data.OrderNumber != "CF-20260805-0042" {
		t.Fatalf("unexpected order number %q", envelope.Data.OrderNumber)
	}

	store := env.carts.StoreFor("sess-1")
	if len(store.Items()) != 0 {
		t.Fatal("expected cart cleared after successful checkout")
	}
	saved := env.gateway.guestCarts["sess-1"]
	if len(saved.Items) != 0 {
		t.Fatal("expected cleared cart persisted")
	}
}

func TestCheckoutSurfacesServiceFailure(t *testing.T) {
	t.Parallel()

	env := newCartTestEnv()
	env.do(t, http.MethodPost, "/cart/items", "sess-1", "", addItemBody("charm-1", 2))

	svc := &stubCheckoutService{err: pkgerrors.New(pkgerrors.CodePayment, "card declined")}
	resp := env.checkout(t, svc, "sess-1", "", checkoutBody())
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for declined payment, got %d", resp.Code)
	}

	store := env.carts.StoreFor("sess-1")
	if len(store.Items()) != 1 {
		t.Fatal("cart must survive a failed checkout")
	}
}
