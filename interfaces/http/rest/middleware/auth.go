// Package middleware holds the HTTP middleware of the REST API.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"nodestand-backend/pkg/auth"
	pkgerrors "nodestand-backend/pkg/errors"
)

// UserHeader carries the caller in development setups without tokens.
const UserHeader = "X-User-ID"

// AuthConfig selects how callers are identified.
type AuthConfig struct {
	Validator       *auth.JWTValidator
	AllowUserHeader bool
}

// Authenticate puts the caller into the request context. Requests without
// credentials pass through anonymously; handlers that mutate reject them.
// Invalid credentials are rejected here.
func Authenticate(cfg AuthConfig, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			switch {
			case header != "" && cfg.Validator != nil:
				parts := strings.Fields(header)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					errorHandler.Handle(w, r, unauthenticated("invalid authorization header format"))
					return
				}
				claims, err := cfg.Validator.ValidateToken(parts[1])
				if err != nil {
					logger.Debug("Token rejected", zap.Error(err))
					errorHandler.Handle(w, r, unauthenticated(tokenMessage(err)))
					return
				}
				r = withUser(r, &auth.UserContext{UserID: claims.UserID, Email: claims.Email})

			case header != "":
				errorHandler.Handle(w, r, unauthenticated("bearer tokens are not accepted"))
				return

			case cfg.AllowUserHeader && r.Header.Get(UserHeader) != "":
				r = withUser(r, &auth.UserContext{UserID: r.Header.Get(UserHeader)})
			}

			next.ServeHTTP(w, r)
		})
	}
}

func withUser(r *http.Request, user *auth.UserContext) *http.Request {
	noteUser(r.Context(), user.UserID)
	return r.WithContext(auth.SetUserInContext(r.Context(), user))
}

func unauthenticated(message string) error {
	return pkgerrors.ErrUnauthenticated.Clone().WithMessage(message)
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid token signature"
	}
	return "invalid token"
}
