package leavetest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

// Directory is an in-memory employee.Directory.
type Directory struct {
	mu        sync.Mutex
	employees map[employee.ID]employee.Employee
}

var (
	_ employee.Directory = (*Directory)(nil)
	_ employee.Creator   = (*Directory)(nil)
)

func NewDirectory() *Directory {
	return &Directory{employees: map[employee.ID]employee.Employee{}}
}

func (d *Directory) Add(emp employee.Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[emp.ID] = emp
}

func (d *Directory) FindByID(_ context.Context, id employee.ID) (employee.Employee, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	emp, ok := d.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrNotFound
	}
	return emp, nil
}

func (d *Directory) EmployeeFor(_ context.Context, userID auth.UserID) (employee.Employee, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, emp := range d.employees {
		if emp.UserID != "" && emp.UserID == userID {
			return emp, nil
		}
	}
	return employee.Employee{}, employee.ErrNotFound
}

func (d *Directory) ListActive(context.Context) ([]employee.Employee, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []employee.Employee
	for _, emp := range d.employees {
		if emp.IsActive {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Create mimics the pgx store: unique email, existing manager.
func (d *Directory) Create(_ context.Context, in employee.NewEmployee) (employee.Employee, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email := strings.ToLower(in.Email)
	for _, emp := range d.employees {
		if emp.Email == email {
			return employee.Employee{}, employee.ErrDuplicateEmail
		}
	}
	if in.ManagerID != "" {
		if _, ok := d.employees[in.ManagerID]; !ok {
			return employee.Employee{}, employee.ErrInvalidManager
		}
	}
	n := strconv.Itoa(len(d.employees) + 1)
	emp := employee.Employee{
		ID:         employee.ID("e-" + n),
		UserID:     auth.UserID("u-" + n),
		Name:       in.Name,
		Email:      email,
		Department: in.Department,
		ManagerID:  in.ManagerID,
		IsActive:   true,
	}
	d.employees[emp.ID] = emp
	return emp, nil
}

// Users is an in-memory leave.UserLookup.
type Users struct {
	mu    sync.Mutex
	users map[auth.UserID]auth.User
}

func NewUsers() *Users {
	return &Users{users: map[auth.UserID]auth.User{}}
}

func (u *Users) Add(user auth.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[user.ID] = user
}

func (u *Users) GetUser(_ context.Context, userID auth.UserID) (auth.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[userID]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (u *Users) UserIDsByRole(_ context.Context, role string) ([]auth.UserID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []auth.UserID
	for id, user := range u.users {
		if user.Role == role && user.IsActive {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Notification is one recorded in-app notification.
type Notification struct {
	Recipient auth.UserID
	Kind      string
	Payload   map[string]any
}

// Email is one recorded status-change email.
type Email struct {
	To     string
	Fields map[string]string
}

// RecordingNotifier captures side effects for assertions.
type RecordingNotifier struct {
	mu            sync.Mutex
	Notifications []Notification
	Emails        []Email
}

func (n *RecordingNotifier) Notify(recipient auth.UserID, kind string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notifications = append(n.Notifications, Notification{Recipient: recipient, Kind: kind, Payload: payload})
}

func (n *RecordingNotifier) SendStatusChangeEmail(toEmail string, fields map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Emails = append(n.Emails, Email{To: toEmail, Fields: fields})
}

// Kinds returns the notification kinds delivered to recipient in order.
func (n *RecordingNotifier) Kinds(recipient auth.UserID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, item := range n.Notifications {
		if item.Recipient == recipient {
			out = append(out, item.Kind)
		}
	}
	return out
}

func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notifications = nil
	n.Emails = nil
}
