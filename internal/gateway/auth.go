package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/clewhq/clew/internal/security"
)

// authMiddleware validates the bearer token with a constant-time
// comparison. Auth outcomes are recorded in the audit trail when one is
// configured.
func authMiddleware(token string, audit *security.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				emitAuthEvent(audit, security.EventAuthFailed, r, "missing authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
				if constantTimeEqual(after, token) {
					emitAuthEvent(audit, security.EventAuthOK, r, "bearer")
					next.ServeHTTP(w, r)
					return
				}
			}

			emitAuthEvent(audit, security.EventAuthFailed, r, "invalid credentials")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func emitAuthEvent(audit *security.AuditLogger, eventType security.EventType, r *http.Request, detail string) {
	audit.Log(security.AuditEvent{
		Type:   eventType,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
