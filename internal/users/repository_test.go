package users

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffhub/staffhub/internal/rbac"

	"github.com/staffhub/staffhub/internal/shared"
)

func TestMapWriteError(t *testing.T) {
	username := mapWriteError("create", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	assert.ErrorIs(t, username, ErrUsernameTaken)
	assert.ErrorIs(t, username, shared.ErrConflict)

	email := mapWriteError("update", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_key"})
	assert.ErrorIs(t, email, ErrEmailTaken)

	other := mapWriteError("create", &pgconn.PgError{Code: "23514", ConstraintName: "users_role_check"})
	assert.NotErrorIs(t, other, shared.ErrConflict)
	assert.Contains(t, other.Error(), "users: create")

	plain := errors.New("conn reset")
	assert.ErrorIs(t, mapWriteError("update", plain), plain)
}

type fakeUserRow struct {
	pgx.CollectableRow
	values []any
}

func (r fakeUserRow) Scan(dest ...any) error {
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		}
	}
	return nil
}

func TestRowToUser(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	user, err := rowToUser(fakeUserRow{values: []any{
		int64(2), "HR", "$2a$hash", "hr", "HR Manager", "hr@staffhub.com", true, at, at,
	}})
	require.NoError(t, err)
	assert.Equal(t, User{
		ID: 2, Username: "HR", PasswordHash: "$2a$hash", Role: rbac.RoleHR, FullName: "HR Manager",
		Email: "hr@staffhub.com", IsActive: true, CreatedAt: at, UpdatedAt: at,
	}, user)
}
