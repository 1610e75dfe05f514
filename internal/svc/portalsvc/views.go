package portalsvc

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/mkrupp/studentportal/internal/domain"
)

// Template names.
const (
	ViewRegister    = "register.html"
	ViewLogin       = "login.html"
	ViewDashboard   = "dashboard.html"
	ViewUnavailable = "unavailable.html"
)

// ErrUnknownView is returned by Render for a template name that was not loaded.
var ErrUnknownView = errors.New("unknown view")

//go:embed views/*.html
var viewsFS embed.FS

// Page is the data passed to every template.
type Page struct {
	Title   string
	Flashes []Flash

	// Form echoes submitted values back into the form; never holds the password.
	Form FormValues

	// Dashboard only
	Name    string
	Courses []domain.Course
}

// FormValues are the non-secret fields of the register and login forms.
type FormValues struct {
	Name  string
	Email string
	Phone string
}

// Renderer renders the embedded HTML templates.
type Renderer struct {
	views map[string]*template.Template
}

// NewRenderer parses every page template together with the shared layout.
func NewRenderer() (*Renderer, error) {
	views := make(map[string]*template.Template)

	for _, name := range []string{ViewRegister, ViewLogin, ViewDashboard, ViewUnavailable} {
		tmpl, err := template.ParseFS(viewsFS, "views/layout.html", "views/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", name, err)
		}

		views[name] = tmpl
	}

	return &Renderer{views: views}, nil
}

// Render executes the named template with data and writes it with the given status.
// Nothing is written if execution fails.
func (rr *Renderer) Render(w http.ResponseWriter, status int, name string, data Page) error {
	tmpl, ok := rr.views[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute view %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write view %s: %w", name, err)
	}

	return nil
}
