package middleware

import (
	"context"
	"net/http"

	"library_lending/internal/app/service"
	"library_lending/internal/common"
	"library_lending/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"
)

type contextKey string

const UserCtxKey contextKey = "user"

// Authenticator resolves the bearer token to a user and stores it in the
// request context. Requests without a valid token stop here with 401.
func Authenticator(guard *service.AccessGuard, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := guard.Authenticate(r.Context(), jwtauth.TokenFromHeader(r))
			if err != nil {
				if common.HTTPStatusFromError(err) == http.StatusInternalServerError {
					log.Error("Authentication lookup failed", zap.Error(err))
				}
				w.Header().Set("WWW-Authenticate", "Bearer")
				common.RespondWithDomainError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), UserCtxKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole must run after Authenticator.
func RequireRole(guard *service.AccessGuard, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := UserFromContext(r.Context())
			if err := guard.RequireRole(user, role); err != nil {
				common.RespondWithDomainError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(UserCtxKey).(*model.User)
	return user, ok && user != nil
}
