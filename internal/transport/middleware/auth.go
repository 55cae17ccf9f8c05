package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/booking-ledger/internal"
	"github.com/frahmantamala/booking-ledger/internal/auth"
	"github.com/frahmantamala/booking-ledger/internal/transport"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

// Authenticate resolves the bearer token into an internal.User on the request
// context. Requests without a valid token never reach the handler.
func Authenticate(validator auth.TokenValidator, lg *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(lg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				base.HandleError(w, internal.NewUnauthorizedError("missing bearer token", internal.ErrCodeInvalidToken))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				if appErr, isApp := internal.IsAppError(err); isApp {
					base.HandleError(w, appErr)
					return
				}
				base.HandleError(w, internal.ErrInvalidToken)
				return
			}

			ctx := internal.ContextWithUser(r.Context(), claims.User())
			ctx = logger.With(ctx, "userID", strconv.FormatInt(claims.UserID, 10))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
