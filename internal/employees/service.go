package employees

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/staffhub/staffhub/internal/rbac"
	"github.com/staffhub/staffhub/internal/shared"
)

// RepositoryPort defines data access methods for the directory.
type RepositoryPort interface {
	ListEmployees(ctx context.Context, f ListFilter, limit, offset int) ([]Employee, error)
	CountEmployees(ctx context.Context, f ListFilter) (int, error)
	Departments(ctx context.Context) ([]string, error)
	FindByID(ctx context.Context, id int64) (*Employee, error)
	FindByEmail(ctx context.Context, email string) (*Employee, error)
	CreateEmployee(ctx context.Context, emp Employee) (Employee, error)
	UpdateEmployee(ctx context.Context, emp Employee) error
	DeleteEmployee(ctx context.Context, id int64) error
}

// Service orchestrates the employee directory.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance. audit and logger may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Directory returns one page of the directory. Salaries are zeroed for roles
// that may not see them.
func (s *Service) Directory(ctx context.Context, actor *rbac.Principal, f ListFilter) (DirectoryPage, error) {
	if err := rbac.RequirePermission(actor, rbac.PermRead); err != nil {
		return DirectoryPage{}, err
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Department = strings.TrimSpace(f.Department)
	f.Page = shared.ClampPage(f.Page)
	offset := (f.Page - 1) * shared.DefaultPerPage

	var (
		list        []Employee
		matched     int
		total       int
		departments []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		list, err = s.repo.ListEmployees(gctx, f, shared.DefaultPerPage, offset)
		return err
	})
	g.Go(func() (err error) {
		matched, err = s.repo.CountEmployees(gctx, f)
		return err
	})
	g.Go(func() (err error) {
		departments, err = s.repo.Departments(gctx)
		return err
	})
	if !f.Empty() {
		g.Go(func() (err error) {
			total, err = s.repo.CountEmployees(gctx, ListFilter{})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return DirectoryPage{}, err
	}
	if f.Empty() {
		total = matched
	}

	visible := rbac.CanViewSalaries(actor.Role)
	if !visible {
		for i := range list {
			list[i].Salary = 0
		}
	}
	return DirectoryPage{
		Employees:      list,
		Departments:    departments,
		Pagination:     shared.NewPagination(f.Page, shared.DefaultPerPage, matched),
		TotalEmployees: total,
		Search:         f.Search,
		Department:     f.Department,
		SalaryVisible:  visible,
	}, nil
}

// Get loads an employee for the edit form. The salary is zeroed for roles
// that may not see it.
func (s *Service) Get(ctx context.Context, actor *rbac.Principal, id int64) (*Employee, error) {
	if err := rbac.RequirePermission(actor, rbac.PermUpdate); err != nil {
		return nil, err
	}
	emp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanViewSalaries(actor.Role) {
		emp.Salary = 0
	}
	return emp, nil
}

// Create adds an employee.
func (s *Service) Create(ctx context.Context, actor *rbac.Principal, in Input) (Employee, error) {
	if err := rbac.RequirePermission(actor, rbac.PermCreate); err != nil {
		return Employee{}, err
	}
	in = normalize(in)
	if err := shared.ValidateStruct(in); err != nil {
		return Employee{}, err
	}
	if err := s.ensureUniqueEmail(ctx, 0, in.Email); err != nil {
		return Employee{}, err
	}
	created, err := s.repo.CreateEmployee(ctx, Employee{
		Name:       in.Name,
		Email:      in.Email,
		Department: in.Department,
		Position:   in.Position,
		Salary:     in.Salary,
	})
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, actor, shared.AuditCreate, created.ID, map[string]any{"email": created.Email})
	return created, nil
}

// Update edits an employee. Roles that may not see salaries cannot change
// them either; the stored salary is kept.
func (s *Service) Update(ctx context.Context, actor *rbac.Principal, id int64, in Input) (Employee, error) {
	if err := rbac.RequirePermission(actor, rbac.PermUpdate); err != nil {
		return Employee{}, err
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	in = normalize(in)
	if !rbac.CanViewSalaries(actor.Role) {
		in.Salary = current.Salary
	}
	if err := shared.ValidateStruct(in); err != nil {
		return Employee{}, err
	}
	if err := s.ensureUniqueEmail(ctx, current.ID, in.Email); err != nil {
		return Employee{}, err
	}
	next := *current
	next.Name = in.Name
	next.Email = in.Email
	next.Department = in.Department
	next.Position = in.Position
	next.Salary = in.Salary
	if err := s.repo.UpdateEmployee(ctx, next); err != nil {
		return Employee{}, err
	}
	s.record(ctx, actor, shared.AuditUpdate, next.ID, map[string]any{"email": next.Email})
	return next, nil
}

// Delete removes an employee and returns the removed record.
func (s *Service) Delete(ctx context.Context, actor *rbac.Principal, id int64) (Employee, error) {
	if err := rbac.RequirePermission(actor, rbac.PermDelete); err != nil {
		return Employee{}, err
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	if err := s.repo.DeleteEmployee(ctx, current.ID); err != nil {
		return Employee{}, err
	}
	s.record(ctx, actor, shared.AuditDelete, current.ID, map[string]any{"email": current.Email})
	return *current, nil
}

func (s *Service) ensureUniqueEmail(ctx context.Context, selfID int64, email string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return ErrEmailTaken
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor *rbac.Principal, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "employee", EntityID: id, Meta: meta}); err != nil {
		s.logger.Warn("audit employee change", slog.String("action", action), slog.Int64("employee_id", id), slog.Any("error", err))
	}
}

func normalize(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Department = strings.TrimSpace(in.Department)
	in.Position = strings.TrimSpace(in.Position)
	return in
}
