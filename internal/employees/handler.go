package employees

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/staffhub/staffhub/internal/platform/httpx"
	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/view"
)

// Handler exposes the directory pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     rbac.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, guard: guard}
}

// MountRoutes registers the directory on r: the listing at "/" and the forms
// under "/employees".
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequirePermission(rbac.PermRead)).Get("/", h.list)
	r.Route("/employees", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequirePermission(rbac.PermCreate))
			r.Get("/new", h.showCreateForm)
			r.Post("/new", h.create)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.guard.RequirePermission(rbac.PermUpdate))
			r.Get("/{id}/edit", h.showEditForm)
			r.Post("/{id}/edit", h.update)
		})
		r.With(h.guard.RequirePermission(rbac.PermDelete)).Post("/{id}/delete", h.delete)
	})
}

type employeeForm struct {
	Name       string
	Email      string
	Department string
	Position   string
	Salary     string
}

type formErrors map[string]string

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	dir, err := h.service.Directory(r.Context(), rbac.PrincipalFromContext(r.Context()), ListFilter{
		Search:     q.Get("search"),
		Department: q.Get("department"),
		Page:       page,
	})
	if err != nil {
		h.fail(w, r, "read", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/employees/list.html", "Directory", map[string]any{"Directory": dir})
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, 0, employeeForm{}, formErrors{})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	form, in, errs := parseForm(r, true)
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, 0, form, errs)
		return
	}
	created, err := h.service.Create(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.formFailure(w, r, "create", 0, form, err)
		return
	}
	h.logger.Info("employee created", slog.Int64("employee_id", created.ID))
	h.redirectWithFlash(w, r, "/", "success", "Employee added successfully!")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.employeeID(w, r)
	if !ok {
		return
	}
	emp, err := h.service.Get(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "update", err)
		return
	}
	form := employeeForm{
		Name:       emp.Name,
		Email:      emp.Email,
		Department: emp.Department,
		Position:   emp.Position,
	}
	if salaryVisible(r) {
		form.Salary = strconv.Itoa(emp.Salary)
	}
	h.renderForm(w, r, http.StatusOK, id, form, formErrors{})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.employeeID(w, r)
	if !ok {
		return
	}
	form, in, errs := parseForm(r, salaryVisible(r))
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, id, form, errs)
		return
	}
	if _, err := h.service.Update(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in); err != nil {
		h.formFailure(w, r, "update", id, form, err)
		return
	}
	h.redirectWithFlash(w, r, "/", "success", "Employee updated successfully!")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.employeeID(w, r)
	if !ok {
		return
	}
	removed, err := h.service.Delete(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "delete", err)
		return
	}
	h.logger.Info("employee deleted", slog.Int64("employee_id", removed.ID))
	h.redirectWithFlash(w, r, "/", "success", "Employee deleted successfully!")
}

// parseForm reads the submitted fields. The salary must be a whole number
// unless the field was not offered.
func parseForm(r *http.Request, withSalary bool) (employeeForm, Input, formErrors) {
	if err := r.ParseForm(); err != nil {
		return employeeForm{}, Input{}, formErrors{"general": "Invalid form submission."}
	}
	form := employeeForm{
		Name:       r.PostForm.Get("name"),
		Email:      r.PostForm.Get("email"),
		Department: r.PostForm.Get("department"),
		Position:   r.PostForm.Get("position"),
		Salary:     strings.TrimSpace(r.PostForm.Get("salary")),
	}
	in := Input{Name: form.Name, Email: form.Email, Department: form.Department, Position: form.Position}
	if !withSalary {
		return form, in, nil
	}
	salary, err := strconv.Atoi(form.Salary)
	if err != nil {
		return form, in, formErrors{"salary": "Enter a whole number."}
	}
	in.Salary = salary
	return form, in, nil
}

func (h *Handler) formFailure(w http.ResponseWriter, r *http.Request, op string, id int64, form employeeForm, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		h.renderForm(w, r, http.StatusBadRequest, id, form, formErrors(shared.FieldErrors(err)))
	case errors.Is(err, shared.ErrConflict):
		msg := shared.UserSafeMessage(err)
		h.renderForm(w, r, http.StatusConflict, id, form, formErrors{"general": msg, "email": msg})
	default:
		h.fail(w, r, op, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrAuthenticationRequired):
		h.guard.RedirectToLogin(w, r)
		return
	case errors.Is(err, shared.ErrForbidden):
		h.guard.Deny(w, r, op, err)
		return
	}
	status := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("directory request failed", slog.String("operation", op), slog.Any("error", err))
	}
	if rerr := h.templates.RenderError(w, r, h.csrf, status, err); rerr != nil {
		h.logger.Error("render error page", slog.Any("error", rerr))
		http.Error(w, http.StatusText(status), status)
	}
}

func (h *Handler) employeeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, "employee_id", ErrEmployeeNotFound)
		return 0, false
	}
	return id, true
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, id int64, form employeeForm, errs formErrors) {
	action := "/employees/new"
	title := "Add employee"
	if id > 0 {
		action = fmt.Sprintf("/employees/%d/edit", id)
		title = "Edit employee"
	}
	h.render(w, r, status, "pages/employees/form.html", title, map[string]any{
		"EmployeeID":    id,
		"Action":        action,
		"Form":          form,
		"Errors":        errs,
		"SalaryVisible": salaryVisible(r),
	})
}

func salaryVisible(r *http.Request) bool {
	p := rbac.PrincipalFromContext(r.Context())
	return p != nil && rbac.CanViewSalaries(p.Role)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, template, title string, data map[string]any) {
	if err := h.templates.Render(w, status, template, view.NewTemplateData(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.Flash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}
