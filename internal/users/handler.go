package users

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/staffhub/staffhub/internal/platform/httpx"
	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/view"
)

// Handler manages user account endpoints.
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

// MountRoutes registers account routes. Target-aware checks run in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireCapability("manage_accounts", rbac.CanManageAccounts))
		r.Get("/", h.listUsers)
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.createUser)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}/edit", h.updateUser)
		r.Post("/{id}/delete", h.deleteUser)
	})
}

type formErrors map[string]string

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context(), rbac.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "list_users", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/users/accounts.html", "User accounts", map[string]any{"Users": list})
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, 0, CreateInput{Role: string(rbac.RoleEmployee)}, formErrors{})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, r, http.StatusBadRequest, 0, CreateInput{}, formErrors{"general": "Invalid form submission."})
		return
	}
	in := CreateInput{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
		FullName: r.PostForm.Get("full_name"),
		Email:    r.PostForm.Get("email"),
		Role:     r.PostForm.Get("role"),
	}
	created, err := h.service.CreateUser(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		in.Password = ""
		h.formFailure(w, r, "create_user", 0, in, err)
		return
	}
	h.logger.Info("user account created", slog.Int64("user_id", created.ID), slog.String("role", created.Role.String()))
	h.redirectWithFlash(w, r, "/users", "success", fmt.Sprintf("New user account created successfully for %s!", created.Username))
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	target, err := h.service.GetForEdit(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "edit_user", err)
		return
	}
	h.renderForm(w, r, http.StatusOK, id, formFromUser(*target), formErrors{})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, r, http.StatusBadRequest, id, CreateInput{}, formErrors{"general": "Invalid form submission."})
		return
	}
	in := UpdateInput{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
		FullName: r.PostForm.Get("full_name"),
		Email:    r.PostForm.Get("email"),
		Role:     r.PostForm.Get("role"),
	}
	updated, passwordChanged, err := h.service.UpdateUser(r.Context(), rbac.PrincipalFromContext(r.Context()), id, in)
	if err != nil {
		form := CreateInput(in)
		form.Password = ""
		h.formFailure(w, r, "update_user", id, form, err)
		return
	}
	message := fmt.Sprintf("Account updated successfully for %s!", updated.Username)
	if passwordChanged {
		message = fmt.Sprintf("Account updated successfully! New password set for %s.", updated.Username)
	}
	h.redirectWithFlash(w, r, "/users", "success", message)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	removed, err := h.service.DeleteUser(r.Context(), rbac.PrincipalFromContext(r.Context()), id)
	switch {
	case err == nil:
		h.logger.Info("user account deleted", slog.Int64("user_id", removed.ID))
		h.redirectWithFlash(w, r, "/users", "success",
			fmt.Sprintf("%s account '%s' deleted successfully!", cases.Title(language.English).String(removed.Role.String()), removed.Username))
	case errors.Is(err, shared.ErrConflict):
		h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
	default:
		h.fail(w, r, "delete_user", err)
	}
}

// formFailure re-renders the form for input problems and falls back to the
// error page otherwise.
func (h *Handler) formFailure(w http.ResponseWriter, r *http.Request, op string, id int64, form CreateInput, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		h.renderForm(w, r, http.StatusBadRequest, id, form, formErrors(shared.FieldErrors(err)))
	case errors.Is(err, shared.ErrConflict):
		errs := formErrors{"general": shared.UserSafeMessage(err)}
		if errors.Is(err, ErrUsernameTaken) {
			errs["username"] = shared.UserSafeMessage(err)
		}
		if errors.Is(err, ErrEmailTaken) {
			errs["email"] = shared.UserSafeMessage(err)
		}
		h.renderForm(w, r, http.StatusConflict, id, form, errs)
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
		h.logger.Error("account request failed", slog.String("operation", op), slog.Any("error", err))
	}
	if rerr := h.templates.RenderError(w, r, h.csrf, status, err); rerr != nil {
		h.logger.Error("render error page", slog.Any("error", rerr))
		http.Error(w, http.StatusText(status), status)
	}
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, "user_id", ErrUserNotFound)
		return 0, false
	}
	return id, true
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, id int64, form CreateInput, errs formErrors) {
	action := "/users"
	title := "New account"
	if id > 0 {
		action = fmt.Sprintf("/users/%d/edit", id)
		title = "Edit account"
	}
	h.render(w, r, status, "pages/users/account_form.html", title, map[string]any{
		"UserID": id,
		"Action": action,
		"Form":   form,
		"Errors": errs,
	})
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

func formFromUser(u User) CreateInput {
	return CreateInput{Username: u.Username, FullName: u.FullName, Email: u.Email, Role: u.Role.String()}
}
