package portalsvc_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/studentportal/internal/domain"
	"github.com/mkrupp/studentportal/internal/infra/logging"
	"github.com/mkrupp/studentportal/internal/infra/metrics"
	http_ "github.com/mkrupp/studentportal/internal/infra/transport/http"
	"github.com/mkrupp/studentportal/internal/repo/account"
	"github.com/mkrupp/studentportal/internal/repo/docstore"
	"github.com/mkrupp/studentportal/internal/svc/portalsvc"
	"github.com/mkrupp/studentportal/internal/util/password"
)

type portal struct {
	svc     *portalsvc.PortalService
	handler http.Handler
}

func newPortal(t *testing.T, store docstore.Store, metricsEnabled bool) *portal {
	t.Helper()

	repo, err := account.NewDocumentAccountRepository(
		context.Background(),
		store,
		password.NewHasher(password.Config{Time: 1, Memory: 1024, Threads: 1}),
	)
	require.NoError(t, err)

	svc := &portalsvc.PortalService{
		Accounts: repo,
		Sessions: portalsvc.NewSessionManagerWithKey(testSessionConfig, testSigningKey(), repo),
		Metrics:  metrics.New(),
		Log:      logging.NewNopLogger(),
	}

	t.Cleanup(func() {
		require.NoError(t, svc.Close())
	})

	views, err := portalsvc.NewRenderer()
	require.NoError(t, err)

	//nolint:exhaustruct
	transport := portalsvc.NewHTTPTransport(svc, views, portalsvc.HTTPTransportConfig{MetricsEnabled: metricsEnabled})

	return &portal{
		svc: svc,
		handler: http_.Wrap(transport, logging.NewNopLogger(), http_.Options{
			Sessions: svc.Sessions,
			Metrics:  svc.Metrics,
		}),
	}
}

func newSQLitePortal(t *testing.T) *portal {
	t.Helper()

	store, err := docstore.NewSQLiteDocumentStore(docstore.SQLiteDocumentStoreConfig{
		DatabasePath: filepath.Join(t.TempDir(), "portal.db"),
	}, 5*time.Second)
	require.NoError(t, err)

	return newPortal(t, store, true)
}

// browser sends requests through the handler and keeps cookies like a user agent.
type browser struct {
	t       *testing.T
	handler http.Handler
	jar     *cookiejar.Jar
}

func newBrowser(t *testing.T, p *portal) *browser {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &browser{t: t, handler: p.handler, jar: jar}
}

type page struct {
	status   int
	location string
	body     string
}

func (b *browser) do(method, path string, form url.Values) page {
	b.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, "http://portal.test"+path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	for _, c := range b.jar.Cookies(req.URL) {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()

	b.jar.SetCookies(req.URL, res.Cookies())

	raw, err := io.ReadAll(res.Body)
	require.NoError(b.t, err)

	return page{status: res.StatusCode, location: res.Header.Get("Location"), body: string(raw)}
}

func (b *browser) get(path string) page {
	b.t.Helper()

	return b.do(http.MethodGet, path, nil)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()

	return b.do(http.MethodPost, path, form)
}

func (b *browser) hasSession() bool {
	u, _ := url.Parse("http://portal.test/")
	for _, c := range b.jar.Cookies(u) {
		if c.Name == testSessionConfig.CookieName {
			return true
		}
	}

	return false
}

func TestPortal_RegisterLoginDashboardLogout(t *testing.T) {
	t.Parallel()

	p := newSQLitePortal(t)
	b := newBrowser(t, p)

	res := b.get("/")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)

	res = b.get("/register")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `name="password"`)
	assert.NotContains(t, res.body, portalsvc.MsgStoreUnavailable)

	res = b.post("/register", url.Values{
		"name":     {"Ada"},
		"email":    {"Ada@Example.com"},
		"password": {"secret"},
	})
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)

	res = b.get("/login")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, portalsvc.MsgAccountCreated)

	// The flash is shown once.
	res = b.get("/login")
	assert.NotContains(t, res.body, portalsvc.MsgAccountCreated)

	res = b.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/dashboard", res.location)
	assert.True(t, b.hasSession())

	res = b.get("/")
	assert.Equal(t, "/dashboard", res.location)

	res = b.get("/dashboard")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Welcome, Ada")
	assert.Contains(t, res.body, portalsvc.MsgLoggedIn)
	assert.Equal(t, 3, strings.Count(res.body, "data-course="))

	for _, code := range []string{"CSE101", "MAT102", "PHY103"} {
		assert.Contains(t, res.body, `data-course="`+code+`"`)
	}

	res = b.get("/logout")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)
	assert.False(t, b.hasSession())

	res = b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)

	// Logging out again is harmless.
	res = b.get("/logout")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/login", res.location)

	res = b.get("/login")
	assert.Contains(t, res.body, portalsvc.MsgLoggedOut)

	assert.InDelta(t, 1, testutil.ToFloat64(p.svc.Metrics.AuthEventsTotal.WithLabelValues("register", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.svc.Metrics.AuthEventsTotal.WithLabelValues("login", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.svc.Metrics.AuthEventsTotal.WithLabelValues("logout", "success")), 0)
}

func TestPortal_RegisterFailures(t *testing.T) {
	t.Parallel()

	p := newSQLitePortal(t)
	b := newBrowser(t, p)

	res := b.post("/register", url.Values{"fullname": {"Ada"}, "email": {"ada@example.com"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, res.status)

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "missing name",
			form:       url.Values{"email": {"bob@example.com"}, "password": {"secret"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    portalsvc.MsgMissingFields,
		},
		{
			name:       "missing password",
			form:       url.Values{"name": {"Bob"}, "email": {"bob@example.com"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    portalsvc.MsgMissingFields,
		},
		{
			name:       "duplicate email",
			form:       url.Values{"name": {"Imposter"}, "email": {" ADA@example.com "}, "password": {"other"}},
			wantStatus: http.StatusConflict,
			wantMsg:    portalsvc.MsgEmailRegistered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := newBrowser(t, p).post("/register", tt.form)
			assert.Equal(t, tt.wantStatus, res.status)
			assert.Contains(t, res.body, tt.wantMsg)
			assert.NotContains(t, res.body, "secret")
		})
	}
}

func TestPortal_LoginFailures(t *testing.T) {
	t.Parallel()

	p := newSQLitePortal(t)

	res := newBrowser(t, p).post("/register", url.Values{"name": {"Ada"}, "email": {"A@x.com"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, res.status)

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "missing password",
			form:       url.Values{"email": {"a@x.com"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    portalsvc.MsgMissingCreds,
		},
		{
			name:       "wrong password",
			form:       url.Values{"email": {"a@x.com"}, "password": {"nope"}},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    portalsvc.MsgInvalidCreds,
		},
		{
			name:       "unknown email",
			form:       url.Values{"email": {"b@x.com"}, "password": {"secret"}},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    portalsvc.MsgInvalidCreds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newBrowser(t, p)

			res := b.post("/login", tt.form)
			assert.Equal(t, tt.wantStatus, res.status)
			assert.Contains(t, res.body, tt.wantMsg)
			assert.False(t, b.hasSession())
		})
	}

	res = newBrowser(t, p).post("/login", url.Values{"email": {"a@X.com"}, "password": {"secret"}})
	assert.Equal(t, http.StatusSeeOther, res.status)
}

func TestPortal_StaleSession(t *testing.T) {
	t.Parallel()

	p := newSQLitePortal(t)
	b := newBrowser(t, p)

	// A signed session for an account the store does not know, as left behind
	// after the account was removed.
	rec := httptest.NewRecorder()
	require.NoError(t, p.svc.Sessions.Login(rec, &domain.Account{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"}))

	u, _ := url.Parse("http://portal.test/")
	b.jar.SetCookies(u, rec.Result().Cookies())
	require.True(t, b.hasSession())

	res := b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/register", res.location)
	assert.False(t, b.hasSession())

	res = b.get("/register")
	assert.Contains(t, res.body, portalsvc.MsgAccountNotFound)

	res = b.get("/dashboard")
	assert.Equal(t, "/login", res.location)
}

func TestPortal_StoreUnavailable(t *testing.T) {
	t.Parallel()

	p := newPortal(t, &docstore.UnavailableStore{Cause: errors.New("server selection timeout")}, true)
	b := newBrowser(t, p)

	for _, path := range []string{"/register", "/login"} {
		res := b.get(path)
		assert.Equal(t, http.StatusOK, res.status, path)
		assert.Contains(t, res.body, `name="email"`, path)
		assert.Contains(t, res.body, portalsvc.MsgStoreUnavailable, path)
	}

	res := b.post("/register", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "password": {"secret"}})
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	assert.Contains(t, res.body, portalsvc.MsgStoreUnavailable)

	res = b.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"secret"}})
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	assert.Contains(t, res.body, portalsvc.MsgStoreUnavailable)

	// Validation still answers without the store.
	res = b.post("/login", url.Values{"email": {"ada@example.com"}})
	assert.Equal(t, http.StatusBadRequest, res.status)

	rec := httptest.NewRecorder()
	require.NoError(t, p.svc.Sessions.Login(rec, &domain.Account{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV"}))

	u, _ := url.Parse("http://portal.test/")
	b.jar.SetCookies(u, rec.Result().Cookies())

	res = b.get("/dashboard")
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	assert.Contains(t, res.body, "Service unavailable")
	assert.True(t, b.hasSession())

	res = b.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, res.status)

	assert.InDelta(t, 1, testutil.ToFloat64(p.svc.Metrics.AuthEventsTotal.WithLabelValues("register", "unavailable")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.svc.Metrics.AuthEventsTotal.WithLabelValues("resolve", "unavailable")), 0)
}

func TestPortal_HealthAndMetrics(t *testing.T) {
	t.Parallel()

	p := newSQLitePortal(t)
	b := newBrowser(t, p)

	res := b.get("/healthz")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.body)

	res = b.get("/metrics")
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "portal_http_requests_total")

	res = b.get("/nope")
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestPortal_MetricsDisabled(t *testing.T) {
	t.Parallel()

	store, err := docstore.NewSQLiteDocumentStore(docstore.SQLiteDocumentStoreConfig{
		DatabasePath: filepath.Join(t.TempDir(), "portal.db"),
	}, time.Second)
	require.NoError(t, err)

	res := newBrowser(t, newPortal(t, store, false)).get("/metrics")
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: metrics.OutcomeSuccess},
		{err: errors.Join(domain.ErrValidation, errors.New("x")), want: metrics.OutcomeInvalid},
		{err: domain.ErrDuplicateEmail, want: metrics.OutcomeRejected},
		{err: domain.ErrInvalidCredentials, want: metrics.OutcomeRejected},
		{err: domain.ErrStaleSession, want: metrics.OutcomeRejected},
		{err: errors.Join(domain.ErrStoreUnavailable, errors.New("x")), want: metrics.OutcomeUnavailable},
		{err: errors.New("boom"), want: metrics.OutcomeError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, portalsvc.Outcome(tt.err), "%v", tt.err)
	}
}
