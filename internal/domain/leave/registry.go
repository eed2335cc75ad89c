package leave

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

// Registry manages leave type policies.
type Registry struct {
	types     TypeStore
	ledger    *Ledger
	directory employee.Directory
	now       func() time.Time
}

func NewRegistry(types TypeStore, ledger *Ledger, directory employee.Directory) *Registry {
	return &Registry{types: types, ledger: ledger, directory: directory, now: time.Now}
}

type LeaveTypeInput struct {
	Name                    *string  `json:"name"`
	DefaultDays             *float64 `json:"defaultDays"`
	MaxConsecutiveDays      *int     `json:"maxConsecutiveDays"`
	RequiresBalance         *bool    `json:"requiresBalance"`
	RequiresDates           *bool    `json:"requiresDates"`
	AllowFutureApplications *bool    `json:"allowFutureApplications"`
	IsOpenEndedAllowed      *bool    `json:"isOpenEndedAllowed"`
	MaxRetroactiveDays      *int     `json:"maxRetroactiveDays"`
	RequiresApproval        *bool    `json:"requiresApproval"`
	RequiresAttachment      *bool    `json:"requiresAttachment"`
	IsActive                *bool    `json:"isActive"`
}

func (in LeaveTypeInput) apply(lt *LeaveType) {
	if in.Name != nil {
		lt.Name = strings.TrimSpace(*in.Name)
	}
	if in.DefaultDays != nil {
		lt.DefaultDays = *in.DefaultDays
	}
	if in.MaxConsecutiveDays != nil {
		lt.MaxConsecutiveDays = in.MaxConsecutiveDays
	}
	if in.RequiresBalance != nil {
		lt.RequiresBalance = *in.RequiresBalance
	}
	if in.RequiresDates != nil {
		lt.RequiresDates = *in.RequiresDates
	}
	if in.AllowFutureApplications != nil {
		lt.AllowFutureApplications = *in.AllowFutureApplications
	}
	if in.IsOpenEndedAllowed != nil {
		lt.IsOpenEndedAllowed = *in.IsOpenEndedAllowed
	}
	if in.MaxRetroactiveDays != nil {
		lt.MaxRetroactiveDays = in.MaxRetroactiveDays
	}
	if in.RequiresApproval != nil {
		lt.RequiresApproval = *in.RequiresApproval
	}
	if in.RequiresAttachment != nil {
		lt.RequiresAttachment = *in.RequiresAttachment
	}
	if in.IsActive != nil {
		lt.IsActive = *in.IsActive
	}
}

func validateType(lt LeaveType) error {
	if lt.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if lt.DefaultDays < 0 {
		return fmt.Errorf("%w: defaultDays must not be negative", ErrValidation)
	}
	if lt.MaxConsecutiveDays != nil && *lt.MaxConsecutiveDays <= 0 {
		return fmt.Errorf("%w: maxConsecutiveDays must be positive", ErrValidation)
	}
	if lt.MaxRetroactiveDays != nil && *lt.MaxRetroactiveDays < 0 {
		return fmt.Errorf("%w: maxRetroactiveDays must not be negative", ErrValidation)
	}
	return nil
}

// Get returns a type by id, including inactive ones.
func (r *Registry) Get(ctx context.Context, id string) (LeaveType, error) {
	return r.types.GetType(ctx, id)
}

func (r *Registry) GetByName(ctx context.Context, name string) (LeaveType, error) {
	return r.types.GetTypeByName(ctx, strings.TrimSpace(name))
}

// List hides inactive types unless the caller is privileged and asks for them.
func (r *Registry) List(ctx context.Context, caller auth.Identity, includeInactive bool) ([]LeaveType, error) {
	return r.types.ListTypes(ctx, includeInactive && caller.IsAdmin())
}

type CreateTypeResult struct {
	LeaveType          LeaveType `json:"leaveType"`
	AllocatedEmployees int       `json:"allocatedEmployees"`
}

// Create stores a new type. When it carries default days, every active
// employee gets a ledger row for the current year allocated with them.
func (r *Registry) Create(ctx context.Context, in LeaveTypeInput) (CreateTypeResult, error) {
	lt := LeaveType{
		RequiresBalance:         true,
		RequiresDates:           true,
		AllowFutureApplications: true,
		RequiresApproval:        true,
		IsActive:                true,
	}
	in.apply(&lt)
	if err := validateType(lt); err != nil {
		return CreateTypeResult{}, err
	}

	created, err := r.types.CreateType(ctx, lt)
	if err != nil {
		return CreateTypeResult{}, err
	}
	result := CreateTypeResult{LeaveType: created}
	if created.DefaultDays <= 0 {
		return result, nil
	}

	employees, err := r.directory.ListActive(ctx)
	if err != nil {
		slog.Warn("leave type bulk allocation failed", "leaveTypeId", created.ID, "err", err)
		return result, nil
	}
	year := r.now().Year()
	for _, emp := range employees {
		key := BalanceKey{EmployeeID: emp.ID, LeaveTypeID: created.ID, Year: year}
		if _, err := r.ledger.Allocate(ctx, key, created.DefaultDays, nil); err != nil {
			slog.Warn("leave type allocation failed", "leaveTypeId", created.ID, "employeeId", emp.ID, "err", err)
			continue
		}
		result.AllocatedEmployees++
	}
	return result, nil
}

func (r *Registry) Update(ctx context.Context, id string, in LeaveTypeInput) (LeaveType, error) {
	lt, err := r.types.GetType(ctx, id)
	if err != nil {
		return LeaveType{}, err
	}
	in.apply(&lt)
	if err := validateType(lt); err != nil {
		return LeaveType{}, err
	}
	return r.types.UpdateType(ctx, lt)
}

// Delete is a soft delete; the type stays resolvable for existing requests.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.types.DeactivateType(ctx, id)
}
