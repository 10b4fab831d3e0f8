package http

import (
	"context"
	"net/http"

	"github.com/MKhiriev/go-remind-sync/internal/logger"
	"github.com/MKhiriev/go-remind-sync/internal/utils"
)

// AuthMiddleware verifies the bearer token on every sync API request and
// stores the authenticated user id in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		token, err := utils.ParseBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			log.Warn().Str("func", "Handler.AuthMiddleware").Msg("missing or malformed authorization header")
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		userID, parseErr := h.services.Auth.ParseToken(token)
		if parseErr != nil {
			log.Warn().Err(parseErr).Str("func", "Handler.AuthMiddleware").Msg("token verification failed")
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), utils.UserIDCtxKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
