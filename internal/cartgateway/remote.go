package cartgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmforge/charmforge-backend/internal/cart"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/redis"
)

// RedisStore keeps cart snapshots as JSON documents in Redis. Guest keys
// carry a TTL so abandoned carts expire on their own; user keys do not.
type RedisStore struct {
	client   *redis.Client
	guestTTL time.Duration
}

var _ RemoteStore = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, guestTTL time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if guestTTL <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	return &RedisStore{client: client, guestTTL: guestTTL}, nil
}

func (r *RedisStore) SaveGuestCart(ctx context.Context, sessionID string, snapshot cart.CartSnapshot) error {
	return r.save(ctx, r.client.GuestCartKey(sessionID), snapshot, r.guestTTL)
}

func (r *RedisStore) GetGuestCart(ctx context.Context, sessionID string) (*cart.CartSnapshot, error) {
	return r.get(ctx, r.client.GuestCartKey(sessionID))
}

func (r *RedisStore) DeleteGuestCart(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.client.GuestCartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting guest cart")
	}
	return nil
}

func (r *RedisStore) SaveUserCart(ctx context.Context, userID string, snapshot cart.CartSnapshot) error {
	return r.save(ctx, r.client.UserCartKey(userID), snapshot, 0)
}

func (r *RedisStore) GetUserCart(ctx context.Context, userID string) (*cart.CartSnapshot, error) {
	return r.get(ctx, r.client.UserCartKey(userID))
}

func (r *RedisStore) save(ctx context.Context, key string, snapshot cart.CartSnapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart snapshot")
	}
	if err := r.client.Set(ctx, key, payload, ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "writing cart snapshot")
	}
	return nil
}

func (r *RedisStore) get(ctx context.Context, key string) (*cart.CartSnapshot, error) {
	raw, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading cart snapshot")
	}
	var snapshot cart.CartSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding cart snapshot")
	}
	return &snapshot, nil
}
