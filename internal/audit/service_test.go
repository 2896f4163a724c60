package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
)

type stubRepo struct {
	rows    []TimelineRow
	lastQry Query
}

func (s *stubRepo) Timeline(_ context.Context, q Query) ([]TimelineRow, error) {
	s.lastQry = q
	end := q.Offset + q.Limit
	if q.Offset >= len(s.rows) {
		return nil, nil
	}
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[q.Offset:end], nil
}

var (
	admin = &rbac.Principal{ID: 1, Username: "CEO", Role: rbac.RoleAdmin}
	hr    = &rbac.Principal{ID: 2, Username: "HR", Role: rbac.RoleHR}
)

func sampleRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{At: base.Add(-time.Duration(i) * time.Minute), ActorID: 1, Actor: "CEO", Action: "update", Entity: "employee", EntityID: "7"}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{rows: sampleRows(45)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), admin, TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 20)
	assert.Equal(t, PagingInfo{Page: 1, PageSize: 20, HasNext: true, NextPage: 2}, res.Paging)
	assert.Equal(t, 21, repo.lastQry.Limit)

	res, err = svc.Timeline(context.Background(), admin, TimelineFilters{Page: 3})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.False(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.PrevPage)

	res, err = svc.Timeline(context.Background(), admin, TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Paging.PageSize)
}

func TestTimelineNormalizesFilters(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), admin, TimelineFilters{Actor: " HR ", Entity: "Employee", Action: " DELETE"})
	require.NoError(t, err)
	assert.Equal(t, "HR", repo.lastQry.Filters.Actor)
	assert.Equal(t, "employee", repo.lastQry.Filters.Entity)
	assert.Equal(t, "delete", repo.lastQry.Filters.Action)
}

func TestTimelineRequiresAdmin(t *testing.T) {
	svc := NewService(&stubRepo{rows: sampleRows(3)})

	_, err := svc.Timeline(context.Background(), nil, TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrAuthenticationRequired)
	_, err = svc.Timeline(context.Background(), hr, TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Export(context.Background(), hr, TimelineFilters{})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestExportAndCSV(t *testing.T) {
	rows := sampleRows(2)
	rows[0].Meta = map[string]any{"email": "ada@staffhub.com"}
	repo := &stubRepo{rows: rows}
	svc := NewService(repo)

	got, err := svc.Export(context.Background(), admin, TimelineFilters{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, maxExportRows, repo.lastQry.Limit)

	data, err := WriteCSV(got)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "occurred_at,actor_id,actor,action,entity,entity_id,meta", lines[0])
	assert.Equal(t, `2026-03-01T09:00:00Z,1,CEO,update,employee,7,"{""email"":""ada@staffhub.com""}"`, lines[1])
}

func TestTimelineHugePageClamped(t *testing.T) {
	repo := &stubRepo{rows: sampleRows(5)}
	svc := NewService(repo)

	res, err := svc.Timeline(context.Background(), admin, TimelineFilters{Page: int(^uint(0) >> 1)})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, shared.MaxPage, res.Paging.Page)
	assert.Equal(t, (shared.MaxPage-1)*defaultPageSize, repo.lastQry.Offset)
}
