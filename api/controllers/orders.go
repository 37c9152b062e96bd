package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/charmforge/charmforge-backend/api/middleware"
	"github.com/charmforge/charmforge-backend/api/responses"
	"github.com/charmforge/charmforge-backend/internal/orders"
	"github.com/charmforge/charmforge-backend/pkg/db/models"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
)

// OrderDetail fetches an order by its human-readable number. Orders are only
// visible to the identity that placed them.
func OrderDetail(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := repo.FindByNumber(ctx, orderNumber)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !orderVisibleTo(ctx, order) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// orderVisibleTo hides other identities' orders behind a 404 rather than
// confirming their existence with a 403.
func orderVisibleTo(ctx context.Context, order *models.Order) bool {
	if order == nil {
		return false
	}
	userID := middleware.UserIDFromContext(ctx)
	if order.UserID != nil && *order.UserID != "" {
		return userID == *order.UserID
	}
	sessionID := middleware.SessionIDFromContext(ctx)
	if order.SessionID != nil && *order.SessionID != "" {
		return sessionID == *order.SessionID
	}
	return false
}
