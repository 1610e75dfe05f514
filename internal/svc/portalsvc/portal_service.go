package portalsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/infra/logging"
	"github.com/mkrupp/studentportal/internal/infra/metrics"
	"github.com/mkrupp/studentportal/internal/repo/account"
)

// Auth event names recorded in metrics.
const (
	EventRegister = "register"
	EventLogin    = "login"
	EventLogout   = "logout"
	EventResolve  = "resolve"
)

// PortalService provides registration, login, logout and session resolution.
type PortalService struct {
	Accounts account.Repository
	Sessions *SessionManager
	Metrics  *metrics.Metrics
	Log      logging.Logger
}

// NewPortalService creates a new PortalService with the given account repository factory
// and session configuration. m may be nil.
// Returns an error if the signing key cannot be loaded or the repository cannot be created.
func NewPortalService(
	ctx context.Context,
	repoFactory account.RepositoryFactory,
	cfg SessionConfig,
	m *metrics.Metrics,
) (*PortalService, error) {
	accounts, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new account repo: %w", err)
	}

	sessions, err := NewSessionManager(cfg, accounts)
	if err != nil {
		_ = accounts.Close()

		return nil, fmt.Errorf("new session manager: %w", err)
	}

	return &PortalService{
		Accounts: accounts,
		Sessions: sessions,
		Metrics:  m,
		Log:      logging.GetLogger("svc.portalsvc.portal_service"),
	}, nil
}

// RegisterAccount validates reg and creates the account.
// Returns ErrValidation, ErrDuplicateEmail or ErrStoreUnavailable for the expected failures.
func (s *PortalService) RegisterAccount(ctx context.Context, reg domain.Registration) (acc *domain.Account, err error) {
	defer func() {
		s.record(ctx, EventRegister, err)
	}()

	if err := reg.Validate(); err != nil {
		return nil, err
	}

	acc, err = s.Accounts.Register(ctx, reg.Name, reg.Email, reg.Password, reg.Phone)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	return acc, nil
}

// Login checks creds and, on success, writes a fresh session cookie to w.
// Returns ErrValidation, ErrInvalidCredentials or ErrStoreUnavailable for the expected failures.
func (s *PortalService) Login(ctx context.Context, w http.ResponseWriter, creds domain.Credentials) (acc *domain.Account, err error) {
	defer func() {
		s.record(ctx, EventLogin, err)
	}()

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	acc, err = s.Accounts.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if err := s.Sessions.Login(w, acc); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	return acc, nil
}

// Logout ends the session of the response's client. It never fails.
func (s *PortalService) Logout(ctx context.Context, w http.ResponseWriter) {
	s.Sessions.Logout(w)
	s.record(ctx, EventLogout, nil)
}

// Resolve returns the account of the request's session, see SessionManager.Resolve.
func (s *PortalService) Resolve(w http.ResponseWriter, r *http.Request) (acc *domain.Account, err error) {
	defer func() {
		s.record(r.Context(), EventResolve, err)
	}()

	return s.Sessions.Resolve(w, r)
}

// Ping checks that the account store is reachable.
func (s *PortalService) Ping(ctx context.Context) error {
	if err := s.Accounts.Ping(ctx); err != nil {
		return fmt.Errorf("ping accounts: %w", err)
	}

	return nil
}

// Close releases resources held by the service, such as database connections.
// Returns an error if cleanup fails.
func (s *PortalService) Close() error {
	if err := s.Accounts.Close(); err != nil {
		return fmt.Errorf("close account repo: %w", err)
	}

	return nil
}

func (s *PortalService) record(ctx context.Context, event string, err error) {
	outcome := Outcome(err)
	s.Metrics.RecordAuthEvent(event, outcome)

	if outcome == metrics.OutcomeError || outcome == metrics.OutcomeUnavailable {
		s.Log.ErrorContext(ctx, event+" failed", "error", err)
	} else {
		s.Log.DebugContext(ctx, event, "outcome", outcome)
	}
}

// Outcome classifies err into a metrics outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrStoreUnavailable):
		return metrics.OutcomeUnavailable
	case errors.Is(err, domain.ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrNotAuthenticated),
		errors.Is(err, domain.ErrStaleSession):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
