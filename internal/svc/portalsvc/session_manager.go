package portalsvc

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/infra/logging"
	http_ "github.com/mkrupp/studentportal/internal/infra/transport/http"
)

// SessionConfig contains configuration parameters for session cookies.
type SessionConfig struct {
	// SigningKeyFile is the path to the RSA private key file
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/portalsvc.key"`

	// CookieName is the name of the session cookie
	CookieName string `env:"COOKIE_NAME" default:"portal_session"`

	// MaxAge is the validity duration of a session
	MaxAge time.Duration `env:"MAX_AGE" default:"1h"`

	// CookieSecure restricts the cookie to HTTPS
	CookieSecure bool `env:"COOKIE_SECURE" default:"false"`
}

// AccountLookup resolves account IDs. Implemented by account.Repository.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Account, bool, error)
}

// SessionManager maps the signed session cookie to the authenticated account.
//
// A request is Anonymous when it carries no cookie or one whose signature or expiry
// check fails, and Authenticated when the token is valid and its account still exists.
// Login moves to Authenticated, Logout back to Anonymous. A valid token for an account
// that no longer exists is stale and is cleared on resolve.
type SessionManager struct {
	cfg        SessionConfig
	signingKey *rsa.PrivateKey
	accounts   AccountLookup
	log        logging.Logger
	now        func() time.Time
}

var _ http_.SessionPeeker = (*SessionManager)(nil)

// NewSessionManager creates a SessionManager, loading or creating the signing key
// at cfg.SigningKeyFile.
func NewSessionManager(cfg SessionConfig, accounts AccountLookup) (*SessionManager, error) {
	signingKey, err := GetPrivateKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	return NewSessionManagerWithKey(cfg, signingKey, accounts), nil
}

// NewSessionManagerWithKey creates a SessionManager that signs with signingKey.
func NewSessionManagerWithKey(cfg SessionConfig, signingKey *rsa.PrivateKey, accounts AccountLookup) *SessionManager {
	return &SessionManager{
		cfg:        cfg,
		signingKey: signingKey,
		accounts:   accounts,
		log:        logging.GetLogger("svc.portalsvc.session_manager"),
		now:        time.Now,
	}
}

// Login issues a fresh session for account and overwrites any existing session cookie.
func (sm *SessionManager) Login(w http.ResponseWriter, account *domain.Account) error {
	now := sm.now()

	signed, token, err := IssueSessionToken(sm.signingKey, account.ID, now, sm.cfg.MaxAge)
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}

	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  time.Unix(token.ExpiresAt, 0),
		MaxAge:   int(sm.cfg.MaxAge / time.Second),
		Secure:   sm.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	sm.log.Debug("session issued", logging.Group("token",
		"account", token.AccountID,
		"jti", token.ID,
		"exp", time.Unix(token.ExpiresAt, 0).UTC().Format(time.RFC3339),
	))

	return nil
}

// Logout expires the session cookie. It is safe to call without a session.
func (sm *SessionManager) Logout(w http.ResponseWriter) {
	//nolint:exhaustruct
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   sm.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Resolve returns the account of the request's session.
//
// Returns domain.ErrNotAuthenticated when there is no usable token (an invalid cookie
// is cleared), domain.ErrStaleSession when the token names an account that no longer
// exists (the cookie is cleared), and domain.ErrStoreUnavailable, joined with the
// cause, when the account could not be looked up (the cookie is kept).
func (sm *SessionManager) Resolve(w http.ResponseWriter, r *http.Request) (*domain.Account, error) {
	cookie, err := r.Cookie(sm.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, domain.ErrNotAuthenticated
	}

	token, err := ParseSessionToken(cookie.Value, &sm.signingKey.PublicKey, sm.now())
	if err != nil {
		sm.Logout(w)

		return nil, errors.Join(domain.ErrNotAuthenticated, err)
	}

	account, ok, err := sm.accounts.GetByID(r.Context(), token.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	if !ok {
		sm.Logout(w)

		return nil, fmt.Errorf("%w: account %s", domain.ErrStaleSession, token.AccountID)
	}

	return account, nil
}

// Peek reports the account ID of a request's session after checking only the
// token's signature and expiry.
func (sm *SessionManager) Peek(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sm.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	token, err := ParseSessionToken(cookie.Value, &sm.signingKey.PublicKey, sm.now())
	if err != nil {
		return "", false
	}

	return token.AccountID, true
}
