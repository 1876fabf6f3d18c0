package http

import (
	"context"
	"net/http"

	"fleet-monitor/tracker/internal/auth"
)

type contextKey string

// boundVehicleKey carries the vehicle id a device API key is bound to;
// empty for operator keys.
const boundVehicleKey contextKey = "bound_vehicle"

type AuthMiddleware struct {
	auth *auth.Authenticator
}

func NewAuthMiddleware(a *auth.Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: a}
}

func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing X-API-Key header"}`))
			return
		}

		vehicleID, ok := m.auth.Authenticate(r.Context(), apiKey)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid API key"}`))
			return
		}

		ctx := context.WithValue(r.Context(), boundVehicleKey, vehicleID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BoundVehicle returns the vehicle id the request's key is bound to,
// empty when the key is an operator key.
func BoundVehicle(ctx context.Context) string {
	v, _ := ctx.Value(boundVehicleKey).(string)
	return v
}
