package portalsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/infra/logging"
	"github.com/mkrupp/studentportal/internal/infra/metrics"
	http_ "github.com/mkrupp/studentportal/internal/infra/transport/http"
)

// User-facing messages.
const (
	MsgAccountCreated    = "Account created. Please login."
	MsgMissingFields     = "Please fill all required fields."
	MsgEmailRegistered   = "Email already registered. Please login."
	MsgStoreUnavailable  = "Database connection error. Try again later."
	MsgMissingCreds      = "Please enter email and password."
	MsgInvalidCreds      = "Invalid credentials."
	MsgLoggedIn          = "Logged in successfully."
	MsgAccountNotFound   = "User not found. Please register."
	MsgLoggedOut         = "Logged out."
	defaultDashboardName = "Student"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// MetricsEnabled exposes Prometheus metrics on /metrics
	MetricsEnabled bool `env:"METRICS_ENABLED" default:"true"`
}

// HTTPTransport serves the portal's server-rendered pages.
type HTTPTransport struct {
	svc   *PortalService
	views *Renderer
	log   logging.Logger
	cfg   HTTPTransportConfig
	mux   *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// Routes:
//   - GET  /           redirect to /dashboard or /login
//   - GET  /register   registration form
//   - POST /register   create an account
//   - GET  /login      login form
//   - POST /login      start a session
//   - GET  /dashboard  course list of the logged in student
//   - GET  /logout     end the session
//   - GET  /healthz    store reachability
//   - GET  /metrics    Prometheus exposition, if enabled
func NewHTTPTransport(svc *PortalService, views *Renderer, cfg HTTPTransportConfig) *HTTPTransport {
	ht := &HTTPTransport{
		svc:   svc,
		views: views,
		log:   logging.GetLogger("svc.portalsvc.http_transport"),
		cfg:   cfg,
		mux:   http.NewServeMux(),
	}

	ht.mux.HandleFunc("GET /{$}", ht.HandleIndex)
	ht.mux.HandleFunc("GET /register", ht.HandleRegisterForm)
	ht.mux.HandleFunc("POST /register", ht.HandleRegister)
	ht.mux.HandleFunc("GET /login", ht.HandleLoginForm)
	ht.mux.HandleFunc("POST /login", ht.HandleLogin)
	ht.mux.HandleFunc("GET /dashboard", ht.HandleDashboard)
	ht.mux.HandleFunc("GET /logout", ht.HandleLogout)
	ht.mux.HandleFunc("GET /healthz", ht.HandleHealth)

	if cfg.MetricsEnabled && svc.Metrics != nil {
		ht.mux.Handle("GET /metrics", svc.Metrics.Handler())
	}

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleIndex redirects to the dashboard when the request carries a valid session,
// otherwise to the login form.
func (ht *HTTPTransport) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := ht.svc.Sessions.Peek(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)

		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleRegisterForm renders the empty registration form, warning up front when the
// store cannot be reached.
func (ht *HTTPTransport) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleForm(w, r, ViewRegister, "Register")
}

// HandleLoginForm renders the empty login form.
func (ht *HTTPTransport) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleForm(w, r, ViewLogin, "Login")
}

func (ht *HTTPTransport) handleForm(w http.ResponseWriter, r *http.Request, view, title string) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "render form failed", "error", err)
		}
	}(r.Context())

	flashes := popFlashes(w, r)

	if err := ht.svc.Ping(r.Context()); err != nil {
		log.WarnContext(r.Context(), "store unavailable", "error", err)
		flashes = append(flashes, Flash{Category: FlashDanger, Message: MsgStoreUnavailable})
	}

	//nolint:exhaustruct
	return ht.render(w, http.StatusOK, view, Page{Title: title, Flashes: flashes})
}

// HandleRegister processes registration form submissions.
// Expects form parameters: name (or fullname), email, password, phone (optional).
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		logResult(ctx, log, "account registration", err)
	}(r.Context())

	// Parse form
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return errors.Join(domain.ErrValidation, fmt.Errorf("parse form: %w", err))
	}

	reg := domain.Registration{
		Name:     firstNonEmpty(r.PostFormValue("name"), r.PostFormValue("fullname")),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Phone:    r.PostFormValue("phone"),
	}

	//nolint:exhaustruct
	page := Page{
		Title: "Register",
		Form:  FormValues{Name: reg.Name, Email: reg.Email, Phone: reg.Phone},
	}

	// Register account
	if _, err := ht.svc.RegisterAccount(r.Context(), reg); err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			page.Flashes = []Flash{{Category: FlashWarning, Message: MsgMissingFields}}
			err = errors.Join(err, ht.render(w, http.StatusBadRequest, ViewRegister, page))
		case errors.Is(err, domain.ErrDuplicateEmail):
			page.Flashes = []Flash{{Category: FlashWarning, Message: MsgEmailRegistered}}
			err = errors.Join(err, ht.render(w, http.StatusConflict, ViewRegister, page))
		case errors.Is(err, domain.ErrStoreUnavailable):
			page.Flashes = []Flash{{Category: FlashDanger, Message: MsgStoreUnavailable}}
			err = errors.Join(err, ht.render(w, http.StatusServiceUnavailable, ViewRegister, page))
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("register account: %w", err)
	}

	SetFlash(w, Flash{Category: FlashSuccess, Message: MsgAccountCreated})
	http.Redirect(w, r, "/login", http.StatusSeeOther)

	return nil
}

// HandleLogin processes login form submissions.
// Expects form parameters: email, password.
// Sets the session cookie and redirects to the dashboard on success.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		logResult(ctx, log, "login", err)
	}(r.Context())

	// Parse form
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return errors.Join(domain.ErrValidation, fmt.Errorf("parse form: %w", err))
	}

	creds := domain.Credentials{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	//nolint:exhaustruct
	page := Page{
		Title: "Login",
		Form:  FormValues{Email: creds.Email},
	}

	// Login
	if _, err := ht.svc.Login(r.Context(), w, creds); err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			page.Flashes = []Flash{{Category: FlashWarning, Message: MsgMissingCreds}}
			err = errors.Join(err, ht.render(w, http.StatusBadRequest, ViewLogin, page))
		case errors.Is(err, domain.ErrInvalidCredentials):
			page.Flashes = []Flash{{Category: FlashDanger, Message: MsgInvalidCreds}}
			err = errors.Join(err, ht.render(w, http.StatusUnauthorized, ViewLogin, page))
		case errors.Is(err, domain.ErrStoreUnavailable):
			page.Flashes = []Flash{{Category: FlashDanger, Message: MsgStoreUnavailable}}
			err = errors.Join(err, ht.render(w, http.StatusServiceUnavailable, ViewLogin, page))
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("login: %w", err)
	}

	SetFlash(w, Flash{Category: FlashSuccess, Message: MsgLoggedIn})
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)

	return nil
}

// HandleDashboard renders the course list for the session's account.
// Anonymous requests are sent to /login, stale sessions to /register.
func (ht *HTTPTransport) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleDashboard(w, r)
}

func (ht *HTTPTransport) handleDashboard(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		logResult(ctx, log, "dashboard", err)
	}(r.Context())

	acc, err := ht.svc.Resolve(w, r)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStaleSession):
			SetFlash(w, Flash{Category: FlashWarning, Message: MsgAccountNotFound})
			http.Redirect(w, r, "/register", http.StatusSeeOther)
		case errors.Is(err, domain.ErrNotAuthenticated):
			http.Redirect(w, r, "/login", http.StatusSeeOther)

			return nil
		case errors.Is(err, domain.ErrStoreUnavailable):
			//nolint:exhaustruct
			err = errors.Join(err, ht.render(w, http.StatusServiceUnavailable, ViewUnavailable, Page{Title: "Unavailable"}))
		default:
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}

		return fmt.Errorf("resolve session: %w", err)
	}

	name := acc.Name
	if name == "" {
		name = defaultDashboardName
	}

	//nolint:exhaustruct
	return ht.render(w, http.StatusOK, ViewDashboard, Page{
		Title:   "Dashboard",
		Flashes: popFlashes(w, r),
		Name:    name,
		Courses: domain.SampleCourses(),
	})
}

// HandleLogout ends the session and redirects to the login form.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ht.svc.Logout(r.Context(), w)

	SetFlash(w, Flash{Category: FlashInfo, Message: MsgLoggedOut})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleHealth reports whether the document store is reachable.
func (ht *HTTPTransport) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleHealth(w, r)
}

func (ht *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) (err error) {
	defer func(ctx context.Context) {
		if err != nil {
			ht.log.WarnContext(ctx, "health check failed", "error", err)
		}
	}(r.Context())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if err := ht.svc.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))

		return err
	}

	if _, err := w.Write([]byte("ok")); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}

func (ht *HTTPTransport) render(w http.ResponseWriter, status int, view string, page Page) error {
	if err := ht.views.Render(w, status, view, page); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return fmt.Errorf("render: %w", err)
	}

	return nil
}

// logResult logs expected client-side failures at info level and everything else as an error.
func logResult(ctx context.Context, log logging.Logger, action string, err error) {
	switch {
	case err == nil:
		log.DebugContext(ctx, action+" succeeded")
	case Outcome(err) == metrics.OutcomeRejected || Outcome(err) == metrics.OutcomeInvalid:
		log.InfoContext(ctx, action+" rejected", "error", err)
	default:
		log.ErrorContext(ctx, action+" failed", "error", err)
	}
}

func popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	if flash, ok := PopFlash(w, r); ok {
		return []Flash{flash}
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}
