package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/charmforge/charmforge-backend/api/responses"
	"github.com/charmforge/charmforge-backend/pkg/config"
	pkgerrors "github.com/charmforge/charmforge-backend/pkg/errors"
	"github.com/charmforge/charmforge-backend/pkg/logger"
)

// Session resolves the caller's identity. A valid bearer token yields a user
// id; otherwise the request runs as a guest identified by the session cookie.
// The cookie is minted on first contact so a guest cart survives page loads.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, err := userIDFromBearer(cfg, r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			sessionID := sessionIDFromCookie(cfg, r)
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.GuestCookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(cfg.GuestCookieTTL.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx = WithSessionID(ctx, sessionID)
			if userID != "" {
				ctx = WithUserID(ctx, userID)
			}

			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
				if userID != "" {
					ctx = logg.WithUserID(ctx, userID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userIDFromBearer(cfg config.SessionConfig, r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", nil
	}

	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "empty bearer token")
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "token missing subject")
	}
	return claims.Subject, nil
}

func sessionIDFromCookie(cfg config.SessionConfig, r *http.Request) string {
	cookie, err := r.Cookie(cfg.GuestCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}
