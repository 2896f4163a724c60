package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation  = "23505"
	constraintEmailKey = "employees_email_lower_key"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const employeeColumns = `id, name, email, department, position, salary, created_at, updated_at`

// ListEmployees returns one page of employees matching f, ordered by name.
func (r *Repository) ListEmployees(ctx context.Context, f ListFilter, limit, offset int) ([]Employee, error) {
	where, args := filterClause(f)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM employees %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		employeeColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("employees: list: %w", err)
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("employees: list scan: %w", err)
		}
		out = append(out, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("employees: list: %w", err)
	}
	return out, nil
}

// CountEmployees counts employees matching f.
func (r *Repository) CountEmployees(ctx context.Context, f ListFilter) (int, error) {
	where, args := filterClause(f)
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM employees `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("employees: count: %w", err)
	}
	return n, nil
}

// Departments lists the distinct departments in alphabetical order.
func (r *Repository) Departments(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT department FROM employees ORDER BY department`)
	if err != nil {
		return nil, fmt.Errorf("employees: departments: %w", err)
	}
	departments, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("employees: departments: %w", err)
	}
	return departments, nil
}

// FindByID fetches an employee by primary key.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Employee, error) {
	return r.findOne(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
}

// FindByEmail fetches an employee by email, ignoring case.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Employee, error) {
	return r.findOne(ctx, `SELECT `+employeeColumns+` FROM employees WHERE lower(email) = lower($1)`, email)
}

// CreateEmployee inserts emp and returns it with generated fields set.
func (r *Repository) CreateEmployee(ctx context.Context, emp Employee) (Employee, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO employees (name, email, department, position, salary)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		emp.Name, emp.Email, emp.Department, emp.Position, emp.Salary,
	).Scan(&emp.ID, &emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return Employee{}, mapWriteError("create", err)
	}
	return emp, nil
}

// UpdateEmployee overwrites the editable columns of emp.
func (r *Repository) UpdateEmployee(ctx context.Context, emp Employee) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE employees
		    SET name = $2, email = $3, department = $4, position = $5, salary = $6, updated_at = NOW()
		  WHERE id = $1`,
		emp.ID, emp.Name, emp.Email, emp.Department, emp.Position, emp.Salary,
	)
	if err != nil {
		return mapWriteError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

// DeleteEmployee removes an employee.
func (r *Repository) DeleteEmployee(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("employees: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (r *Repository) findOne(ctx context.Context, query string, arg any) (*Employee, error) {
	emp, err := scanEmployee(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("employees: find: %w", err)
	}
	return &emp, nil
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &emp.Department, &emp.Position, &emp.Salary, &emp.CreatedAt, &emp.UpdatedAt)
	return emp, err
}

// filterClause renders the WHERE clause for f with positional arguments.
// Search is a case-insensitive substring over name, email and position.
func filterClause(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR position ILIKE $%d)", n, n, n))
	}
	if f.Department != "" {
		args = append(args, f.Department)
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraintEmailKey {
		return ErrEmailTaken
	}
	return fmt.Errorf("employees: %s: %w", op, err)
}

var _ RepositoryPort = (*Repository)(nil)
