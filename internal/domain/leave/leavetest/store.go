// Package leavetest provides in-memory collaborators for exercising the leave
// workflow without Postgres.
package leavetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
	"hrerp/internal/domain/leave"
)

// Store is a goroutine-safe in-memory leave.Store.
type Store struct {
	mu       sync.Mutex
	seq      int
	types    map[string]leave.LeaveType
	balances map[leave.BalanceKey]leave.Balance
	requests map[string]leave.Request

	// FailAdjust makes every AdjustBalance call fail when set.
	FailAdjust error
}

var _ leave.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		types:    map[string]leave.LeaveType{},
		balances: map[leave.BalanceKey]leave.Balance{},
		requests: map[string]leave.Request{},
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Store) ListTypes(_ context.Context, includeInactive bool) ([]leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []leave.LeaveType
	for _, t := range s.types {
		if t.IsActive || includeInactive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetType(_ context.Context, id string) (leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[id]
	if !ok {
		return leave.LeaveType{}, leave.ErrLeaveTypeNotFound
	}
	return t, nil
}

func (s *Store) GetTypeByName(_ context.Context, name string) (leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.types {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return leave.LeaveType{}, leave.ErrLeaveTypeNotFound
}

func (s *Store) CreateType(_ context.Context, lt leave.LeaveType) (leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.types {
		if strings.EqualFold(t.Name, lt.Name) {
			return leave.LeaveType{}, leave.ErrDuplicateLeaveType
		}
	}
	if lt.ID == "" {
		lt.ID = s.nextID("lt")
	}
	now := time.Now().UTC()
	lt.CreatedAt, lt.UpdatedAt = now, now
	s.types[lt.ID] = lt
	return lt, nil
}

func (s *Store) UpdateType(_ context.Context, lt leave.LeaveType) (leave.LeaveType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[lt.ID]; !ok {
		return leave.LeaveType{}, leave.ErrLeaveTypeNotFound
	}
	for id, t := range s.types {
		if id != lt.ID && strings.EqualFold(t.Name, lt.Name) {
			return leave.LeaveType{}, leave.ErrDuplicateLeaveType
		}
	}
	lt.UpdatedAt = time.Now().UTC()
	s.types[lt.ID] = lt
	return lt, nil
}

func (s *Store) DeactivateType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[id]
	if !ok {
		return leave.ErrLeaveTypeNotFound
	}
	t.IsActive = false
	s.types[id] = t
	return nil
}

func (s *Store) withTypeName(b leave.Balance) leave.Balance {
	if t, ok := s.types[b.LeaveTypeID]; ok {
		b.LeaveTypeName = t.Name
	}
	return b
}

func (s *Store) GetBalance(_ context.Context, key leave.BalanceKey) (leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[key]
	if !ok {
		return leave.Balance{}, leave.ErrNoBalanceFound
	}
	return s.withTypeName(b), nil
}

func (s *Store) InitBalance(_ context.Context, key leave.BalanceKey) (leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[key]
	if !ok {
		b = leave.Balance{ID: s.nextID("bal"), EmployeeID: key.EmployeeID, LeaveTypeID: key.LeaveTypeID, Year: key.Year, UpdatedAt: time.Now().UTC()}
		s.balances[key] = b
	}
	return s.withTypeName(b), nil
}

func (s *Store) update(key leave.BalanceKey, fn func(*leave.Balance)) (leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[key]
	if !ok {
		return leave.Balance{}, leave.ErrNoBalanceFound
	}
	fn(&b)
	b.UpdatedAt = time.Now().UTC()
	s.balances[key] = b
	return s.withTypeName(b), nil
}

func (s *Store) AdjustBalance(_ context.Context, key leave.BalanceKey, delta leave.Delta) (leave.Balance, error) {
	if s.FailAdjust != nil {
		return leave.Balance{}, s.FailAdjust
	}
	return s.update(key, func(b *leave.Balance) {
		b.Allocated += delta.Allocated
		b.Used += delta.Used
		b.Pending += delta.Pending
	})
}

func (s *Store) ReserveBalance(_ context.Context, key leave.BalanceKey, days float64) (leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[key]
	if !ok {
		return leave.Balance{}, leave.ErrNoBalanceFound
	}
	if days > b.Remaining() {
		return leave.Balance{}, fmt.Errorf("%w: requested %g, remaining %g", leave.ErrInsufficientBalance, days, b.Remaining())
	}
	b.Pending += days
	b.UpdatedAt = time.Now().UTC()
	s.balances[key] = b
	return s.withTypeName(b), nil
}

func (s *Store) TopUpAllocation(_ context.Context, key leave.BalanceKey, target float64) (leave.Balance, error) {
	return s.update(key, func(b *leave.Balance) {
		if b.Allocated < target-b.Used {
			b.Allocated = target - b.Used
		}
	})
}

func (s *Store) SetCarryOver(_ context.Context, key leave.BalanceKey, carryOver float64) (leave.Balance, error) {
	return s.update(key, func(b *leave.Balance) { b.CarryOver = carryOver })
}

func (s *Store) ListBalances(_ context.Context, employeeID employee.ID, year int) ([]leave.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []leave.Balance{}
	for key, b := range s.balances {
		if key.EmployeeID == employeeID && key.Year == year {
			out = append(out, s.withTypeName(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveTypeName < out[j].LeaveTypeName })
	return out, nil
}

// ExportBalances leaves the employee name and email empty; the directory is
// not visible from here.
func (s *Store) ExportBalances(_ context.Context, year int) ([]leave.BalanceExportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []leave.BalanceExportRow
	for key, b := range s.balances {
		if key.Year != year {
			continue
		}
		b = s.withTypeName(b)
		out = append(out, leave.BalanceExportRow{EmployeeName: string(key.EmployeeID), LeaveTypeName: b.LeaveTypeName, Balance: b})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeName != out[j].EmployeeName {
			return out[i].EmployeeName < out[j].EmployeeName
		}
		return out[i].LeaveTypeName < out[j].LeaveTypeName
	})
	return out, nil
}

// SetBalance overwrites a ledger row. Test setup only.
func (s *Store) SetBalance(b leave.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = s.nextID("bal")
	}
	s.balances[b.Key()] = b
}

func cloneRequest(req leave.Request) leave.Request {
	req.ApprovalHistory = append([]leave.ApprovalEntry{}, req.ApprovalHistory...)
	if req.Dated != nil {
		d := *req.Dated
		req.Dated = &d
	}
	if req.Reported != nil {
		r := *req.Reported
		req.Reported = &r
	}
	req.EmployeeName, req.LeaveTypeName, req.Supervisor = "", "", nil
	return req
}

func (s *Store) CreateRequest(_ context.Context, req leave.Request) (leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req = cloneRequest(req)
	req.ID = s.nextID("req")
	now := time.Now().UTC()
	req.CreatedAt, req.UpdatedAt = now, now
	s.requests[req.ID] = req
	return cloneRequest(req), nil
}

func (s *Store) GetRequest(_ context.Context, id string) (leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return leave.Request{}, leave.ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

func (s *Store) UpdateRequest(_ context.Context, req leave.Request, expected leave.Status) (leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[req.ID]
	if !ok {
		return leave.Request{}, leave.ErrRequestNotFound
	}
	if current.Status != expected {
		return leave.Request{}, leave.ErrRequestNotActionable
	}
	req = cloneRequest(req)
	req.UserID, req.LeaveTypeID, req.CreatedAt = current.UserID, current.LeaveTypeID, current.CreatedAt
	req.UpdatedAt = time.Now().UTC()
	s.requests[req.ID] = req
	return cloneRequest(req), nil
}

func (s *Store) DeleteRequest(_ context.Context, id string, expected leave.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[id]
	if !ok {
		return leave.ErrRequestNotFound
	}
	if current.Status != expected {
		return leave.ErrRequestNotActionable
	}
	delete(s.requests, id)
	return nil
}

func (s *Store) ActiveDatedRequests(_ context.Context, userID auth.UserID) ([]leave.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []leave.Request
	for _, req := range s.requests {
		if req.UserID != userID || req.Dated == nil || !hasStatus(leave.ActiveStatuses, req.Status) {
			continue
		}
		out = append(out, cloneRequest(req))
	}
	return out, nil
}

// ListRequests needs a directory to resolve the manager scope; without one
// only the supervisor match applies.
func (s *Store) ListRequests(ctx context.Context, filter leave.RequestFilter) (leave.RequestListResult, error) {
	return s.listRequests(ctx, filter, nil)
}

func (s *Store) listRequests(ctx context.Context, filter leave.RequestFilter, dir *Directory) (leave.RequestListResult, error) {
	s.mu.Lock()
	all := make([]leave.Request, 0, len(s.requests))
	for _, req := range s.requests {
		all = append(all, cloneRequest(req))
	}
	s.mu.Unlock()

	var matched []leave.Request
	for _, req := range all {
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, req.Status) {
			continue
		}
		if !filter.All && !inScope(ctx, req, filter, dir) {
			continue
		}
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	result := leave.RequestListResult{Requests: []leave.Request{}, Total: len(matched)}
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	result.Requests = append(result.Requests, matched[start:end]...)
	return result, nil
}

func inScope(ctx context.Context, req leave.Request, filter leave.RequestFilter, dir *Directory) bool {
	if filter.OwnerUserID != "" && req.UserID == filter.OwnerUserID {
		return true
	}
	if filter.ApproverEmployeeID == "" {
		return false
	}
	if req.SupervisorID == filter.ApproverEmployeeID {
		return true
	}
	if dir != nil {
		if owner, err := dir.EmployeeFor(ctx, req.UserID); err == nil && owner.ManagerID == filter.ApproverEmployeeID {
			return true
		}
	}
	return false
}

func hasStatus(statuses []leave.Status, status leave.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// ScopedStore lists requests with the manager scope resolved through a
// directory, the way the SQL join does.
type ScopedStore struct {
	*Store
	Directory *Directory
}

func (s ScopedStore) ListRequests(ctx context.Context, filter leave.RequestFilter) (leave.RequestListResult, error) {
	return s.listRequests(ctx, filter, s.Directory)
}
