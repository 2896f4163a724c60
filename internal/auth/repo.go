package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for login-session rows.
type Repository interface {
	CreateSession(ctx context.Context, s LoginSession) error
	DeleteSession(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateSession persists a new login session for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, s LoginSession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_sessions (id, user_id, created_at, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at`,
		s.ID,
		s.UserID,
		pgtype.Timestamptz{Time: s.CreatedAt.UTC(), Valid: true},
		pgtype.Timestamptz{Time: s.ExpiresAt.UTC(), Valid: true},
		pgtype.Text{String: s.IP, Valid: s.IP != ""},
		pgtype.Text{String: s.UserAgent, Valid: s.UserAgent != ""},
	)
	if err != nil {
		return fmt.Errorf("auth: create session: %w", err)
	}
	return nil
}

// DeleteSession removes a session row. Missing rows are not an error.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows that expired before the given instant.
func (r *PGRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE expires_at < $1`,
		pgtype.Timestamptz{Time: before.UTC(), Valid: true})
	if err != nil {
		return 0, fmt.Errorf("auth: purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
