package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/charmforge/charmforge-backend/api/responses"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
)

// checkoutLockTTL bounds how long a stuck checkout can block its session.
const checkoutLockTTL = 30 * time.Second

// checkoutLocker is the slice of the redis client the guard needs.
type checkoutLocker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutLockKey(sessionID string) string
}

// CheckoutGuard rejects a second concurrent checkout for the same session.
// Double-clicking the pay button must not place two orders.
func CheckoutGuard(locker checkoutLocker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if locker == nil {
				next.ServeHTTP(w, r)
				return
			}

			owner := SessionIDFromContext(ctx)
			if userID := UserIDFromContext(ctx); userID != "" {
				owner = userID
			}
			if owner == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing session"))
				return
			}

			key := locker.CheckoutLockKey(owner)
			acquired, err := locker.SetNX(ctx, key, "1", checkoutLockTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock"))
				return
			}
			if !acquired {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress"))
				return
			}
			defer func() {
				if err := locker.Del(ctx, key); err != nil && logg != nil {
					logg.Error(ctx, "releasing checkout lock", err)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
