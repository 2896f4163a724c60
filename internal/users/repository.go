package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffhub/staffhub/internal/rbac"
)

const (
	pgUniqueViolation   = "23505"
	constraintUsername  = "users_username_key"
	constraintEmailNorm = "users_email_lower_key"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, password_hash, role, full_name, email, is_active, created_at, updated_at`

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	users, err := pgx.CollectRows(rows, rowToUser)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return users, nil
}

// FindByID fetches a user by primary key.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername fetches a user by exact username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByEmail fetches a user by email, ignoring case.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// CreateUser inserts the user and returns it with generated fields set.
func (r *Repository) CreateUser(ctx context.Context, user User) (User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, role, full_name, email, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		user.Username, user.PasswordHash, string(user.Role), user.FullName, user.Email, user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, mapWriteError("create", err)
	}
	return user, nil
}

// UpdateUser overwrites every mutable column of the user.
func (r *Repository) UpdateUser(ctx context.Context, user User) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		    SET username = $2, password_hash = $3, role = $4, full_name = $5, email = $6, is_active = $7, updated_at = NOW()
		  WHERE id = $1`,
		user.ID, user.Username, user.PasswordHash, string(user.Role), user.FullName, user.Email, user.IsActive,
	)
	if err != nil {
		return mapWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user. Login session rows cascade.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("users: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("users: find: %w", err)
	}
	return &user, nil
}

// rowToUser adapts scanUser to pgx.CollectRows.
func rowToUser(row pgx.CollectableRow) (User, error) {
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user User
		role string
	)
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &role, &user.FullName, &user.Email, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	user.Role = rbac.Role(role)
	return user, err
}

// mapWriteError turns unique violations into the conflicts the form shows.
// The indexes are the final word when two writers race past the service's
// pre-checks.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case constraintUsername:
			return ErrUsernameTaken
		case constraintEmailNorm:
			return ErrEmailTaken
		}
	}
	return fmt.Errorf("users: %s: %w", op, err)
}

var _ RepositoryPort = (*Repository)(nil)
