package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/safar/autoparts-store/internal/models"
	"github.com/safar/autoparts-store/internal/store"
)

// Identity is resolved by the upstream auth layer, which forwards the
// authenticated user in headers. This service trusts those headers the way
// it would trust a verified token; token verification itself lives outside
// this service.
const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

type callerKeyType struct{}

var callerKey callerKeyType

func callerFrom(ctx context.Context) (store.Caller, bool) {
	c, ok := ctx.Value(callerKey).(store.Caller)
	return c, ok
}

// RequireUser rejects requests without a resolvable caller identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Header.Get(headerUserID), 10, 64)
		if err != nil || userID <= 0 {
			writeError(w, http.StatusUnauthorized, "missing or invalid identity", "UNAUTHORIZED")
			return
		}

		role := r.Header.Get(headerUserRole)
		if role != models.RoleAdmin {
			role = models.RoleUser
		}

		ctx := context.WithValue(r.Context(), callerKey, store.Caller{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin additionally rejects non-admin callers.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, _ := callerFrom(r.Context())
		if !caller.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required", "FORBIDDEN")
			return
		}
		next.ServeHTTP(w, r)
	}))
}
