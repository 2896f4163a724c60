package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/staffhub/staffhub/internal/audit"
	"github.com/staffhub/staffhub/internal/platform/httpx"
	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
	"github.com/staffhub/staffhub/internal/view"
)

const (
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
	dateLayout        = "2006-01-02"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, actor *rbac.Principal, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, actor *rbac.Principal, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves the audit timeline.
type Handler struct {
	logger    *slog.Logger
	service   TimelineService
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     rbac.Guard
	now       func() time.Time
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		guard:     guard,
		now:       time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), rbac.PrincipalFromContext(r.Context()), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	vm := buildViewModel(filters, result)
	data := view.NewTemplateData(r, h.csrf, "Audit trail", map[string]any{
		"Timeline":  vm,
		"ExportURL": "/audit/export.csv?" + filterQuery(filters, 0).Encode(),
		"PrevURL":   pageLink(filters, vm.Paging.PrevPage),
		"NextURL":   pageLink(filters, vm.Paging.NextPage),
		"Errors":    map[string]string{},
	})
	if err := h.templates.Render(w, http.StatusOK, "pages/audit/timeline.html", data); err != nil {
		h.logger.Error("render audit timeline", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := h.service.Export(r.Context(), rbac.PrincipalFromContext(r.Context()), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-trail.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format(dateLayout)
	}
	toTime, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return audit.TimelineFilters{}, filterError("Enter the end date as YYYY-MM-DD.")
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format(dateLayout)
	}
	fromTime, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return audit.TimelineFilters{}, filterError("Enter the start date as YYYY-MM-DD.")
	}
	if fromTime.After(toTime) || toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, filterError("Choose a date range of at most 90 days.")
	}

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, filterError("Invalid page number.")
		}
		page = parsed
	}
	pageSize := 0
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, filterError("Invalid page size.")
		}
		pageSize = parsed
	}

	return audit.TimelineFilters{
		From:     fromTime,
		To:       toTime,
		Actor:    strings.TrimSpace(q.Get("actor")),
		Entity:   strings.TrimSpace(q.Get("entity")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func buildViewModel(filters audit.TimelineFilters, result audit.Result) audit.ViewModel {
	return audit.ViewModel{
		Filters: audit.FiltersViewModel{
			From:   filters.From,
			To:     filters.To,
			Actor:  filters.Actor,
			Entity: filters.Entity,
			Action: filters.Action,
		},
		Rows:   result.Rows,
		Paging: result.Paging,
	}
}

func filterQuery(f audit.TimelineFilters, page int) url.Values {
	q := url.Values{}
	q.Set("from", f.From.Format(dateLayout))
	q.Set("to", f.To.Format(dateLayout))
	for key, value := range map[string]string{"actor": f.Actor, "entity": f.Entity, "action": f.Action} {
		if value != "" {
			q.Set(key, value)
		}
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return q
}

func pageLink(f audit.TimelineFilters, page int) string {
	if page <= 0 {
		return ""
	}
	return "/audit?" + filterQuery(f, page).Encode()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrAuthenticationRequired):
		h.guard.RedirectToLogin(w, r)
		return
	case errors.Is(err, shared.ErrForbidden):
		h.guard.Deny(w, r, "view_audit", err)
		return
	}
	status := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("audit request failed", slog.Any("error", err))
	}
	if rerr := h.templates.RenderError(w, r, h.csrf, status, err); rerr != nil {
		http.Error(w, http.StatusText(status), status)
	}
}

func filterError(msg string) error {
	return &shared.Error{Kind: shared.ErrValidation, Message: msg}
}
