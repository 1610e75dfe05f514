package http

import (
	"net/http"

	context_ "github.com/mkrupp/studentportal/internal/infra/context"
)

// SessionPeeker reports the account ID carried by a request's session cookie
// after checking only its signature and expiry.
type SessionPeeker interface {
	Peek(r *http.Request) (accountID string, ok bool)
}

// SessionMiddleware creates middleware that attaches the session's account ID to the
// request context so it shows up in logs. It never rejects a request; routes that
// need an authenticated account resolve the session themselves.
func SessionMiddleware(next http.Handler, sessions SessionPeeker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accountID, ok := sessions.Peek(r); ok {
			r = r.WithContext(context_.WithAccountID(r.Context(), accountID))
		}

		next.ServeHTTP(w, r)
	})
}
