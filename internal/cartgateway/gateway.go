package cartgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/charmforge/charmforge-backend/internal/cart"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
	"github.com/charmforge/charmforge-backend/pkg/retry"
)

// Service exposes durable cart persistence with retry and fallback semantics.
type Service interface {
	SaveGuestCart(ctx context.Context, sessionID string, snapshot cart.CartSnapshot) error
	GetGuestCart(ctx context.Context, sessionID string) (*cart.CartSnapshot, error)
	SaveUserCart(ctx context.Context, userID string, snapshot cart.CartSnapshot) error
	GetUserCart(ctx context.Context, userID string) (*cart.CartSnapshot, error)
	TransferGuestCartToUser(ctx context.Context, sessionID, userID string) (*cart.CartSnapshot, error)
	SweepExpiredGuestCarts(ctx context.Context) (int, error)
}

type service struct {
	remote   RemoteStore
	local    LocalStore
	exec     *retry.Executor
	pricing  cart.PricingPolicy
	guestTTL time.Duration
	logg     *logger.Logger
}

// NewService builds the gateway backed by the provided stores.
func NewService(remote RemoteStore, local LocalStore, exec *retry.Executor, pricing cart.PricingPolicy, guestTTL time.Duration, logg *logger.Logger) (Service, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote store required")
	}
	if local == nil {
		return nil, fmt.Errorf("local store required")
	}
	if exec == nil {
		return nil, fmt.Errorf("retry executor required")
	}
	if guestTTL <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		remote:   remote,
		local:    local,
		exec:     exec,
		pricing:  pricing,
		guestTTL: guestTTL,
		logg:     logg,
	}, nil
}

// SaveGuestCart writes the snapshot remotely and falls back to the local
// store when the remote stays unreachable after retries.
func (s *service) SaveGuestCart(ctx context.Context, sessionID string, snapshot cart.CartSnapshot) error {
	key := "guest_cart.save:" + sessionID
	err := s.exec.Do(ctx, key, func(ctx context.Context) error {
		return s.remote.SaveGuestCart(ctx, sessionID, snapshot)
	})
	if err == nil {
		return nil
	}

	ctx = s.logg.WithSessionID(ctx, sessionID)
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "remote guest cart save failed, using local fallback")
	if localErr := s.local.Save(ctx, GuestKeyPrefix+sessionID, snapshot); localErr != nil {
		s.logg.Error(ctx, "local guest cart fallback failed", localErr)
		return localErr
	}
	return nil
}

// GetGuestCart reads the remote snapshot, consulting the local fallback when
// the remote fails or has no copy.
func (s *service) GetGuestCart(ctx context.Context, sessionID string) (*cart.CartSnapshot, error) {
	key := "guest_cart.get:" + sessionID
	var snapshot *cart.CartSnapshot
	err := s.exec.Do(ctx, key, func(ctx context.Context) error {
		got, getErr := s.remote.GetGuestCart(ctx, sessionID)
		if getErr != nil {
			return getErr
		}
		snapshot = got
		return nil
	})
	if err == nil {
		return snapshot, nil
	}

	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		ctx = s.logg.WithSessionID(ctx, sessionID)
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "remote guest cart read failed, using local fallback")
	}
	return s.local.Get(ctx, GuestKeyPrefix+sessionID)
}

// SaveUserCart writes the authenticated user's cart. The remote store is
// authoritative for logged-in identity, so failures surface to the caller.
func (s *service) SaveUserCart(ctx context.Context, userID string, snapshot cart.CartSnapshot) error {
	key := "user_cart.save:" + userID
	return s.exec.Do(ctx, key, func(ctx context.Context) error {
		return s.remote.SaveUserCart(ctx, userID, snapshot)
	})
}

// GetUserCart reads the authenticated user's cart. No local fallback.
func (s *service) GetUserCart(ctx context.Context, userID string) (*cart.CartSnapshot, error) {
	key := "user_cart.get:" + userID
	var snapshot *cart.CartSnapshot
	err := s.exec.Do(ctx, key, func(ctx context.Context) error {
		got, getErr := s.remote.GetUserCart(ctx, userID)
		if getErr != nil {
			return getErr
		}
		snapshot = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// TransferGuestCartToUser merges the guest cart into the user cart on login.
// The guest cart is deleted only after the merged cart is saved, so a failed
// save never loses items.
func (s *service) TransferGuestCartToUser(ctx context.Context, sessionID, userID string) (*cart.CartSnapshot, error) {
	ctx = s.logg.WithSessionID(s.logg.WithUserID(ctx, userID), sessionID)

	guest, err := s.GetGuestCart(ctx, sessionID)
	if err != nil {
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			return nil, err
		}
		guest = nil
	}

	user, err := s.GetUserCart(ctx, userID)
	if err != nil {
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			return nil, err
		}
		user = nil
	}

	merged := MergeCartData(guest, user, s.pricing)
	merged.UserID = userID
	merged.SessionID = ""

	if err := s.SaveUserCart(ctx, userID, merged); err != nil {
		s.logg.Error(ctx, "saving merged cart failed, guest cart preserved", err)
		return nil, err
	}

	if guest != nil {
		if err := s.remote.DeleteGuestCart(ctx, sessionID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "deleting remote guest cart after transfer failed")
		}
	}
	if err := s.local.Delete(ctx, GuestKeyPrefix+sessionID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "deleting local guest cart after transfer failed")
	}

	s.logg.Info(ctx, "guest cart transferred to user")
	return &merged, nil
}

// SweepExpiredGuestCarts removes local fallback entries older than the guest
// TTL. Remote guest keys expire on their own.
func (s *service) SweepExpiredGuestCarts(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.guestTTL)
	return s.local.SweepBefore(ctx, GuestKeyPrefix, cutoff)
}
