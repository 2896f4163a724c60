package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flashes     []shared.FlashMessage
	CurrentPath string
	Principal   *rbac.Principal
	Data        any
}

var printer = message.NewPrinter(language.English)

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcMap()).ParseFS(web.Templates,
		"templates/partials/*.html",
		"templates/pages/*.html",
		"templates/pages/*/*.html",
	)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"money": func(amount int) string {
			return printer.Sprintf("$%d", amount)
		},
		"roleLabel": func(role rbac.Role) string {
			return role.Label()
		},
		"roles":              rbac.Roles,
		"canManageAccounts":  principalCan(rbac.CanManageAccounts),
		"canManageUsers":     principalCan(rbac.CanManageUsers),
		"canCreateEmployees": principalCan(rbac.CanCreateEmployees),
		"canEditEmployees":   principalCan(rbac.CanEditEmployees),
		"canDeleteEmployees": principalCan(rbac.CanDeleteEmployees),
		"canViewSalaries":    principalCan(rbac.CanViewSalaries),
		"pageURL":            PageURL,
	}
}

func principalCan(allowed func(rbac.Role) bool) func(*rbac.Principal) bool {
	return func(p *rbac.Principal) bool {
		return p != nil && allowed(p.Role)
	}
}

// PageURL builds a directory link that keeps the active filters.
func PageURL(search, department string, page int) string {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if department != "" {
		q.Set("department", department)
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(q) == 0 {
		return "/"
	}
	return "/?" + q.Encode()
}

// Render executes a named template with TemplateData. Output is buffered until
// the template succeeds.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// NewTemplateData collects the per-request values every page needs: the CSRF
// token, the pending flashes and the signed-in principal.
func NewTemplateData(r *http.Request, csrf *shared.CSRFManager, title string, data any) TemplateData {
	ctx := r.Context()
	td := TemplateData{
		Title:       title,
		Flashes:     shared.PopFlashes(ctx),
		CurrentPath: r.URL.Path,
		Principal:   rbac.PrincipalFromContext(ctx),
		Data:        data,
	}
	if csrf != nil {
		td.CSRFToken, _ = csrf.EnsureToken(ctx, shared.SessionFromContext(ctx))
	}
	return td
}

// RenderError renders the shared error page with a user-safe message.
func (e *Engine) RenderError(w http.ResponseWriter, r *http.Request, csrf *shared.CSRFManager, status int, err error) error {
	data := NewTemplateData(r, csrf, http.StatusText(status), map[string]any{
		"Status":  status,
		"Message": shared.UserSafeMessage(err),
	})
	return e.Render(w, status, "pages/error.html", data)
}
