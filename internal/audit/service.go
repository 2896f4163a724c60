package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxExportRows   = 5000
)

// Query is a filtered window over audit_logs.
type Query struct {
	Filters TimelineFilters
	Limit   int
	Offset  int
}

// Repository reads audit entries.
type Repository interface {
	Timeline(ctx context.Context, q Query) ([]TimelineRow, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds a new audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit entries. Only account administrators
// may read the trail.
func (s *Service) Timeline(ctx context.Context, actor *rbac.Principal, filters TimelineFilters) (Result, error) {
	if err := rbac.RequireCapability(actor, rbac.CanManageUsers); err != nil {
		return Result{}, err
	}
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := shared.ClampPage(filters.Page)
	filters = normalize(filters)
	rows, err := s.repo.Timeline(ctx, Query{Filters: filters, Limit: pageSize + 1, Offset: (page - 1) * pageSize})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching entry up to a fixed cap, without paging.
func (s *Service) Export(ctx context.Context, actor *rbac.Principal, filters TimelineFilters) ([]TimelineRow, error) {
	if err := rbac.RequireCapability(actor, rbac.CanManageUsers); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Timeline(ctx, Query{Filters: normalize(filters), Limit: maxExportRows})
}

func normalize(f TimelineFilters) TimelineFilters {
	f.Actor = strings.TrimSpace(f.Actor)
	f.Entity = strings.ToLower(strings.TrimSpace(f.Entity))
	f.Action = strings.ToLower(strings.TrimSpace(f.Action))
	return f
}
