package employee

import (
	"context"
	"errors"

	"hrerp/internal/domain/auth"
)

var ErrNotFound = errors.New("employee not found")

// Directory is the read side of the employee records used by the leave
// workflow. EmployeeFor is the only bridge from a login identity to a profile.
type Directory interface {
	FindByID(ctx context.Context, id ID) (Employee, error)
	EmployeeFor(ctx context.Context, userID auth.UserID) (Employee, error)
	ListActive(ctx context.Context) ([]Employee, error)
}
