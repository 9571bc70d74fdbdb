package httpkit

import (
	"net/http"

	perrs "backplane/internal/platform/errors"
	pnet "backplane/internal/platform/net"
)

// RequireUser is middleware that rejects requests with no authenticated user on context
// mount it after Auth on routes that must not run anonymously
func RequireUser(write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pnet.UserID(r.Context()) == "" {
				err := perrs.Unauthorizedf("missing bearer token")
				status, body := pnet.Error(err, pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
