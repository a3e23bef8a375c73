package chi

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/pkg/api"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens
// presented by the upstream gateway.
// If apiKeys is empty, authentication is disabled (pass-through).
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := newKeySet(apiKeys)

	return func(next http.Handler) http.Handler {
		if keys.empty() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, api.ErrorResponseCodeUnauthorized, "missing authorization header")
				return
			}

			scheme, token, ok := strings.Cut(auth, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				writeError(w, http.StatusUnauthorized,
					api.ErrorResponseCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			if !keys.contains(strings.TrimSpace(token)) {
				writeError(w, http.StatusUnauthorized, api.ErrorResponseCodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// keySet holds SHA-256 digests of the accepted keys. Lookups compare every digest
// in constant time so response latency does not reveal a matching prefix.
type keySet [][sha256.Size]byte

func newKeySet(keys []string) keySet {
	set := make(keySet, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			set = append(set, sha256.Sum256([]byte(k)))
		}
	}
	return set
}

func (s keySet) empty() bool { return len(s) == 0 }

func (s keySet) contains(token string) bool {
	if token == "" {
		return false
	}
	sum := sha256.Sum256([]byte(token))
	found := 0
	for i := range s {
		found |= subtle.ConstantTimeCompare(sum[:], s[i][:])
	}
	return found == 1
}

type scopeKey struct{}

// ScopeMiddleware reads the requester identity from the gateway headers.
// Requests outside exemptPaths without a user or team ID are rejected.
func ScopeMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			scope := domain.Scope{
				UserID: strings.TrimSpace(r.Header.Get(api.HeaderUserID)),
				TeamID: strings.TrimSpace(r.Header.Get(api.HeaderTeamID)),
			}
			if scope.IsZero() {
				writeError(w, http.StatusUnauthorized, api.ErrorResponseCodeUnauthorized,
					"missing "+api.HeaderUserID+" or "+api.HeaderTeamID+" header")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey{}, scope)))
		})
	}
}

// ScopeFromContext returns the scope stored by ScopeMiddleware.
func ScopeFromContext(ctx context.Context) domain.Scope {
	s, _ := ctx.Value(scopeKey{}).(domain.Scope)
	return s
}
