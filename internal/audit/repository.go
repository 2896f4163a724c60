package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineQuery = `
SELECT a.occurred_at, COALESCE(a.actor_id, 0), COALESCE(u.username, ''), a.action, a.entity, a.entity_id, a.meta
  FROM audit_logs a
  LEFT JOIN users u ON u.id = a.actor_id
 WHERE ($1::timestamptz IS NULL OR a.occurred_at >= $1)
   AND ($2::timestamptz IS NULL OR a.occurred_at < $2)
   AND ($3::text IS NULL OR u.username = $3)
   AND ($4::text IS NULL OR a.entity = $4)
   AND ($5::text IS NULL OR a.action = $5)
 ORDER BY a.occurred_at DESC, a.id DESC
 LIMIT $6 OFFSET $7`

// Timeline returns the entries matching q, newest first.
func (r *PGRepository) Timeline(ctx context.Context, q Query) ([]TimelineRow, error) {
	f := q.Filters
	to := f.To
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	rows, err := r.pool.Query(ctx, timelineQuery,
		toPgTime(f.From),
		toPgTime(to),
		optionalText(f.Actor),
		optionalText(f.Entity),
		optionalText(f.Action),
		q.Limit,
		q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanRow)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline scan: %w", err)
	}
	return out, nil
}

func scanRow(row pgx.CollectableRow) (TimelineRow, error) {
	var (
		at   pgtype.Timestamptz
		meta []byte
		out  TimelineRow
	)
	if err := row.Scan(&at, &out.ActorID, &out.Actor, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
		return TimelineRow{}, err
	}
	if at.Valid {
		out.At = at.Time
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &out.Meta); err != nil {
			return TimelineRow{}, err
		}
	}
	return out, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

var _ Repository = (*PGRepository)(nil)
