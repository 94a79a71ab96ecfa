package httpapi

import (
	"net/http"
	"strings"
)

// bearerAuth requires "Authorization: Bearer <token>" on every request except
// the listed paths. An empty token disables the check entirely.
func bearerAuth(token string, skipPaths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			got, found := strings.CutPrefix(header, "Bearer ")
			if !found || got != token {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
