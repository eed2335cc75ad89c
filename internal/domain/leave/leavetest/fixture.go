package leavetest

import (
	"context"
	"time"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
	"hrerp/internal/domain/leave"
)

// Now is the fixed clock of a Fixture: Wednesday 4 March 2026.
var Now = time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)

// Fixture is a small organisation wired to a leave.Service:
// an admin, a manager with approver role, their report and an unrelated
// colleague, plus one dated and one reported leave type.
type Fixture struct {
	Store     *Store
	Directory *Directory
	Users     *Users
	Notifier  *RecordingNotifier
	Ledger    *leave.Ledger
	Registry  *leave.Registry
	Service   *leave.Service

	Admin    auth.Identity
	Manager  auth.Identity
	Employee auth.Identity
	Outsider auth.Identity

	AdminEmp    employee.Employee
	ManagerEmp  employee.Employee
	EmployeeEmp employee.Employee
	OutsiderEmp employee.Employee

	Annual leave.LeaveType
	Sick   leave.LeaveType
}

func NewFixture() *Fixture {
	f := &Fixture{
		Store:     NewStore(),
		Directory: NewDirectory(),
		Users:     NewUsers(),
		Notifier:  &RecordingNotifier{},
	}
	f.Admin = f.person("u-admin", "e-admin", "Ada Admin", auth.RoleAdmin, "", &f.AdminEmp)
	f.Manager = f.person("u-mgr", "e-mgr", "Mo Manager", auth.RoleApprover, "", &f.ManagerEmp)
	f.Employee = f.person("u-emp", "e-emp", "Eve Employee", auth.RoleEmployee, "e-mgr", &f.EmployeeEmp)
	f.Outsider = f.person("u-out", "e-out", "Otto Outsider", auth.RoleApprover, "", &f.OutsiderEmp)

	ctx := context.Background()
	maxConsecutive := 10
	f.Annual, _ = f.Store.CreateType(ctx, leave.LeaveType{
		Name:                    "Annual",
		DefaultDays:             20,
		MaxConsecutiveDays:      &maxConsecutive,
		RequiresBalance:         true,
		RequiresDates:           true,
		AllowFutureApplications: true,
		RequiresApproval:        true,
		IsActive:                true,
	})
	retro := 30
	f.Sick, _ = f.Store.CreateType(ctx, leave.LeaveType{
		Name:               "Sick",
		IsOpenEndedAllowed: true,
		MaxRetroactiveDays: &retro,
		RequiresApproval:   true,
		IsActive:           true,
	})

	f.Ledger = leave.NewLedger(f.Store)
	f.Registry = leave.NewRegistry(f.Store, f.Ledger, f.Directory)
	f.Service = leave.NewService(f.Store, ScopedStore{Store: f.Store, Directory: f.Directory}, f.Ledger, f.Directory, f.Users, f.Notifier).
		WithClock(func() time.Time { return Now })
	return f
}

func (f *Fixture) person(userID auth.UserID, empID employee.ID, name, role string, manager employee.ID, out *employee.Employee) auth.Identity {
	f.Users.Add(auth.User{ID: userID, Email: string(userID) + "@example.com", Role: role, IsActive: true})
	*out = employee.Employee{
		ID:        empID,
		UserID:    userID,
		Name:      name,
		Email:     string(userID) + "@example.com",
		ManagerID: manager,
		IsActive:  true,
	}
	f.Directory.Add(*out)
	return auth.Identity{UserID: userID, Role: role}
}

// Allocate seeds a ledger row for the employee's annual leave.
func (f *Fixture) Allocate(emp employee.Employee, year int, allocated float64) leave.BalanceKey {
	key := leave.BalanceKey{EmployeeID: emp.ID, LeaveTypeID: f.Annual.ID, Year: year}
	f.Store.SetBalance(leave.Balance{EmployeeID: emp.ID, LeaveTypeID: f.Annual.ID, Year: year, Allocated: allocated})
	return key
}

// Balance reads a row, failing loudly through the zero value when absent.
func (f *Fixture) Balance(key leave.BalanceKey) leave.Balance {
	b, _ := f.Store.GetBalance(context.Background(), key)
	return b
}

// Date builds a UTC date.
func Date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}
