package employees

import (
	"time"

	"github.com/staffhub/staffhub/internal/shared"
)

// Employee is a directory record.
type Employee struct {
	ID         int64
	Name       string
	Email      string
	Department string
	Position   string
	Salary     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Input carries the editable employee fields.
type Input struct {
	Name       string `form:"name" validate:"required,max=150"`
	Email      string `form:"email" validate:"required,email,max=150"`
	Department string `form:"department" validate:"required,max=100"`
	Position   string `form:"position" validate:"required,max=100"`
	Salary     int    `form:"salary" validate:"min=0,max=2147483647"`
}

// ListFilter narrows the directory listing.
type ListFilter struct {
	Search     string
	Department string
	Page       int
}

// Empty reports whether the filter matches every employee.
func (f ListFilter) Empty() bool {
	return f.Search == "" && f.Department == ""
}

// DirectoryPage is one page of the directory plus the data the filter bar needs.
type DirectoryPage struct {
	Employees      []Employee
	Departments    []string
	Pagination     shared.Pagination
	TotalEmployees int
	Search         string
	Department     string
	SalaryVisible  bool
}

// Store failures surfaced to the form.
var (
	ErrEmailTaken       = shared.Conflict("An employee with this email already exists!")
	ErrEmployeeNotFound = shared.NotFound("The requested employee was not found!")
)
