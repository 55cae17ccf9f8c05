package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/transport"
)

// RequirePermissions creates a middleware that checks if user has any of the
// required permissions. It must run after Authenticate.
func RequirePermissions(lg *slog.Logger, permissions ...string) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := base.CurrentUser(w, r)
			if !ok {
				return
			}

			if !user.HasAnyPermission(permissions...) {
				base.Logger.Warn("access denied: user lacks required permissions",
					"user_id", user.ID,
					"required_permissions", permissions,
					"user_permissions", user.Permissions)
				base.HandleError(w, internal.NewForbiddenError("insufficient permissions", internal.ErrCodeUnauthorizedAccess))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequirePermissions(admin) plus any operator-specific
// permission that grants the same route.
func RequireAdmin(lg *slog.Logger, alsoAllowed ...string) func(http.Handler) http.Handler {
	return RequirePermissions(lg, append([]string{internal.PermissionAdmin}, alsoAllowed...)...)
}
