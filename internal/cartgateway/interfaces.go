// Package cartgateway persists cart snapshots for guest and authenticated
// sessions. Guest carts live in the remote store with a TTL and fall back to
// a local durable store when the remote is unreachable; user carts are
// remote-only because the remote is authoritative for logged-in identity.
package cartgateway

import (
	"context"
	"time"

	"github.com/charmforge/charmforge-backend/internal/cart"
)

// RemoteStore is the authoritative snapshot store.
type RemoteStore interface {
	SaveGuestCart(ctx context.Context, sessionID string, snapshot cart.CartSnapshot) error
	GetGuestCart(ctx context.Context, sessionID string) (*cart.CartSnapshot, error)
	DeleteGuestCart(ctx context.Context, sessionID string) error
	SaveUserCart(ctx context.Context, userID string, snapshot cart.CartSnapshot) error
	GetUserCart(ctx context.Context, userID string) (*cart.CartSnapshot, error)
}

// LocalStore is the durable key-value fallback used when the remote store is
// unavailable. Keys are prefixed by scope ("guest:" or "user:").
type LocalStore interface {
	Save(ctx context.Context, key string, snapshot cart.CartSnapshot) error
	Get(ctx context.Context, key string) (*cart.CartSnapshot, error)
	Delete(ctx context.Context, key string) error
	SweepBefore(ctx context.Context, prefix string, cutoff time.Time) (int, error)
}
