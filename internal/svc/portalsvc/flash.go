package portalsvc

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// FlashCookieName is the name of the cookie carrying a one-shot message across a redirect.
const FlashCookieName = "portal_flash"

// Flash categories, used as CSS classes by the templates.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// Flash is a message shown once on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

// SetFlash stores a flash message for the next request.
func SetFlash(w http.ResponseWriter, flash Flash) {
	value := base64.RawURLEncoding.EncodeToString([]byte(flash.Category + "\n" + flash.Message))

	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash returns the pending flash message, if any, and clears it.
func PopFlash(w http.ResponseWriter, r *http.Request) (Flash, bool) {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil {
		return Flash{}, false
	}

	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return Flash{}, false
	}

	category, message, ok := strings.Cut(string(raw), "\n")
	if !ok || message == "" {
		return Flash{}, false
	}

	return Flash{Category: category, Message: message}, true
}
