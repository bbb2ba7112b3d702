package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Nzyazin/cashledger/internal/core/identity"
	"github.com/Nzyazin/cashledger/internal/core/logger"
)

// BearerAuth verifies "Authorization: Bearer <token>" and stores the owner
// id in the request context. Requests without the header pass through
// unauthenticated; the ledger rejects them itself.
func BearerAuth(verifier identity.Verifier, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				rejectAuth(w, log, r, "invalid authorization header format", nil)
				return
			}

			ownerID, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				rejectAuth(w, log, r, "invalid or expired token", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithOwner(r.Context(), ownerID)))
		})
	}
}

// TrustedHeaderAuth takes the owner id from a header set by an upstream
// gateway that already authenticated the caller.
func TrustedHeaderAuth(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := strings.TrimSpace(r.Header.Get(header))
			if ownerID == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithOwner(r.Context(), ownerID)))
		})
	}
}

func rejectAuth(w http.ResponseWriter, log logger.Logger, r *http.Request, message string, err error) {
	if err == nil {
		err = errors.New(message)
	}
	log.Warn("Authentication failed",
		logger.StringField("path", r.URL.Path),
		logger.StringField("remote_addr", r.RemoteAddr),
		logger.ErrorField("error", err))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
