package leave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

const typeColumns = `id::text, name, default_days, max_consecutive_days, requires_balance, requires_dates,
           allow_future_applications, is_open_ended_allowed, max_retroactive_days, requires_approval,
           requires_attachment, is_active, created_at, updated_at`

func scanType(row pgx.Row) (LeaveType, error) {
	var t LeaveType
	err := row.Scan(&t.ID, &t.Name, &t.DefaultDays, &t.MaxConsecutiveDays, &t.RequiresBalance, &t.RequiresDates,
		&t.AllowFutureApplications, &t.IsOpenEndedAllowed, &t.MaxRetroactiveDays, &t.RequiresApproval,
		&t.RequiresAttachment, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LeaveType{}, ErrLeaveTypeNotFound
		}
		return LeaveType{}, err
	}
	return t, nil
}

func (s *PGStore) ListTypes(ctx context.Context, includeInactive bool) ([]LeaveType, error) {
	query := "SELECT " + typeColumns + " FROM leave_types"
	if !includeInactive {
		query += " WHERE is_active = true"
	}
	query += " ORDER BY name"
	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []LeaveType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *PGStore) GetType(ctx context.Context, id string) (LeaveType, error) {
	return scanType(s.DB.QueryRow(ctx, "SELECT "+typeColumns+" FROM leave_types WHERE id::text = $1", id))
}

func (s *PGStore) GetTypeByName(ctx context.Context, name string) (LeaveType, error) {
	return scanType(s.DB.QueryRow(ctx, "SELECT "+typeColumns+" FROM leave_types WHERE lower(name) = lower($1)", name))
}

func (s *PGStore) CreateType(ctx context.Context, lt LeaveType) (LeaveType, error) {
	created, err := scanType(s.DB.QueryRow(ctx, `
    INSERT INTO leave_types (name, default_days, max_consecutive_days, requires_balance, requires_dates,
                             allow_future_applications, is_open_ended_allowed, max_retroactive_days,
                             requires_approval, requires_attachment, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    RETURNING `+typeColumns,
		lt.Name, lt.DefaultDays, lt.MaxConsecutiveDays, lt.RequiresBalance, lt.RequiresDates,
		lt.AllowFutureApplications, lt.IsOpenEndedAllowed, lt.MaxRetroactiveDays,
		lt.RequiresApproval, lt.RequiresAttachment, lt.IsActive))
	if err != nil {
		if isUniqueViolation(err) {
			return LeaveType{}, ErrDuplicateLeaveType
		}
		return LeaveType{}, err
	}
	return created, nil
}

func (s *PGStore) UpdateType(ctx context.Context, lt LeaveType) (LeaveType, error) {
	updated, err := scanType(s.DB.QueryRow(ctx, `
    UPDATE leave_types
    SET name = $1, default_days = $2, max_consecutive_days = $3, requires_balance = $4, requires_dates = $5,
        allow_future_applications = $6, is_open_ended_allowed = $7, max_retroactive_days = $8,
        requires_approval = $9, requires_attachment = $10, is_active = $11, updated_at = now()
    WHERE id::text = $12
    RETURNING `+typeColumns,
		lt.Name, lt.DefaultDays, lt.MaxConsecutiveDays, lt.RequiresBalance, lt.RequiresDates,
		lt.AllowFutureApplications, lt.IsOpenEndedAllowed, lt.MaxRetroactiveDays,
		lt.RequiresApproval, lt.RequiresAttachment, lt.IsActive, lt.ID))
	if err != nil {
		if isUniqueViolation(err) {
			return LeaveType{}, ErrDuplicateLeaveType
		}
		return LeaveType{}, err
	}
	return updated, nil
}

func (s *PGStore) DeactivateType(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE leave_types SET is_active = false, updated_at = now() WHERE id::text = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveTypeNotFound
	}
	return nil
}

const balanceColumns = `b.id::text, b.employee_id::text, b.leave_type_id::text, COALESCE(t.name, ''), b.year,
           b.allocated, b.used, b.pending, b.carry_over, b.updated_at`

func scanBalance(row pgx.Row) (Balance, error) {
	var b Balance
	var employeeID string
	err := row.Scan(&b.ID, &employeeID, &b.LeaveTypeID, &b.LeaveTypeName, &b.Year,
		&b.Allocated, &b.Used, &b.Pending, &b.CarryOver, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrNoBalanceFound
		}
		return Balance{}, err
	}
	b.EmployeeID = employee.ID(employeeID)
	return b, nil
}

// balanceReturning wraps a data-modifying statement on leave_balances so the
// joined columns come back in the same round trip.
func balanceReturning(statement string) string {
	return `WITH b AS (` + statement + ` RETURNING *)
    SELECT ` + balanceColumns + ` FROM b LEFT JOIN leave_types t ON t.id = b.leave_type_id`
}

func (s *PGStore) GetBalance(ctx context.Context, key BalanceKey) (Balance, error) {
	return scanBalance(s.DB.QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances b
    LEFT JOIN leave_types t ON t.id = b.leave_type_id
    WHERE b.employee_id::text = $1 AND b.leave_type_id::text = $2 AND b.year = $3
  `, string(key.EmployeeID), key.LeaveTypeID, key.Year))
}

func (s *PGStore) InitBalance(ctx context.Context, key BalanceKey) (Balance, error) {
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO leave_balances (employee_id, leave_type_id, year)
    VALUES ($1,$2,$3)
    ON CONFLICT (employee_id, leave_type_id, year) DO NOTHING
  `, string(key.EmployeeID), key.LeaveTypeID, key.Year); err != nil {
		return Balance{}, err
	}
	return s.GetBalance(ctx, key)
}

func (s *PGStore) AdjustBalance(ctx context.Context, key BalanceKey, delta Delta) (Balance, error) {
	return scanBalance(s.DB.QueryRow(ctx, balanceReturning(`
    UPDATE leave_balances
    SET allocated = allocated + $4, used = used + $5, pending = pending + $6, updated_at = now()
    WHERE employee_id::text = $1 AND leave_type_id::text = $2 AND year = $3`),
		string(key.EmployeeID), key.LeaveTypeID, key.Year, delta.Allocated, delta.Used, delta.Pending))
}

// ReserveBalance books days as pending only while the row can still absorb
// them. A missing row or a shortfall leaves the row untouched.
func (s *PGStore) ReserveBalance(ctx context.Context, key BalanceKey, days float64) (Balance, error) {
	bal, err := scanBalance(s.DB.QueryRow(ctx, balanceReturning(`
    UPDATE leave_balances
    SET pending = pending + $4, updated_at = now()
    WHERE employee_id::text = $1 AND leave_type_id::text = $2 AND year = $3
      AND allocated + carry_over - pending >= $4`),
		string(key.EmployeeID), key.LeaveTypeID, key.Year, days))
	if !errors.Is(err, ErrNoBalanceFound) {
		return bal, err
	}
	current, err := s.GetBalance(ctx, key)
	if err != nil {
		return Balance{}, err
	}
	return Balance{}, shortfall(days, current)
}

func (s *PGStore) TopUpAllocation(ctx context.Context, key BalanceKey, target float64) (Balance, error) {
	return scanBalance(s.DB.QueryRow(ctx, balanceReturning(`
    UPDATE leave_balances
    SET allocated = GREATEST(allocated, $4 - used), updated_at = now()
    WHERE employee_id::text = $1 AND leave_type_id::text = $2 AND year = $3`),
		string(key.EmployeeID), key.LeaveTypeID, key.Year, target))
}

func (s *PGStore) SetCarryOver(ctx context.Context, key BalanceKey, carryOver float64) (Balance, error) {
	return scanBalance(s.DB.QueryRow(ctx, balanceReturning(`
    UPDATE leave_balances
    SET carry_over = $4, updated_at = now()
    WHERE employee_id::text = $1 AND leave_type_id::text = $2 AND year = $3`),
		string(key.EmployeeID), key.LeaveTypeID, key.Year, carryOver))
}

func (s *PGStore) ListBalances(ctx context.Context, employeeID employee.ID, year int) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances b
    LEFT JOIN leave_types t ON t.id = b.leave_type_id
    WHERE b.employee_id::text = $1 AND b.year = $2
    ORDER BY t.name
  `, string(employeeID), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := []Balance{}
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *PGStore) ExportBalances(ctx context.Context, year int) ([]BalanceExportRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT e.name, e.email, `+balanceColumns+`
    FROM leave_balances b
    JOIN employees e ON e.id = b.employee_id
    LEFT JOIN leave_types t ON t.id = b.leave_type_id
    WHERE b.year = $1
    ORDER BY e.name, t.name
  `, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceExportRow
	for rows.Next() {
		var row BalanceExportRow
		var employeeID string
		b := &row.Balance
		if err := rows.Scan(&row.EmployeeName, &row.EmployeeEmail, &b.ID, &employeeID, &b.LeaveTypeID, &b.LeaveTypeName,
			&b.Year, &b.Allocated, &b.Used, &b.Pending, &b.CarryOver, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.EmployeeID = employee.ID(employeeID)
		row.LeaveTypeName = b.LeaveTypeName
		out = append(out, row)
	}
	return out, rows.Err()
}

const (
	kindDated    = "dated"
	kindReported = "reported"
)

const requestColumns = `r.id::text, r.user_id::text, r.leave_type_id::text, r.kind, r.start_date, r.end_date, r.total_days,
           r.occurred_on, r.is_open_ended, r.closed_on, r.duration_days, r.reason,
           COALESCE(r.supervisor_id::text, ''), r.status, r.approval_history, r.created_at, r.updated_at`

func scanRequest(row pgx.Row, extra ...any) (Request, error) {
	var req Request
	var userID, supervisorID, kind, status string
	var startDate, endDate, occurredOn, closedOn *time.Time
	var totalDays, durationDays *float64
	var openEnded bool
	var history []byte

	dest := []any{&req.ID, &userID, &req.LeaveTypeID, &kind, &startDate, &endDate, &totalDays,
		&occurredOn, &openEnded, &closedOn, &durationDays, &req.Reason,
		&supervisorID, &status, &history, &req.CreatedAt, &req.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, err
	}

	req.UserID = auth.UserID(userID)
	req.SupervisorID = employee.ID(supervisorID)
	req.Status = Status(status)
	switch kind {
	case kindDated:
		dated := DatedLeave{}
		if startDate != nil {
			dated.StartDate = *startDate
		}
		if endDate != nil {
			dated.EndDate = *endDate
		}
		if totalDays != nil {
			dated.TotalDays = *totalDays
		}
		req.Dated = &dated
	case kindReported:
		reported := ReportedLeave{IsOpenEnded: openEnded, ClosedOn: closedOn, DurationDays: durationDays}
		if occurredOn != nil {
			reported.OccurredOn = *occurredOn
		}
		req.Reported = &reported
	}
	req.ApprovalHistory = []ApprovalEntry{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &req.ApprovalHistory); err != nil {
			return Request{}, fmt.Errorf("decode approval history: %w", err)
		}
	}
	return req, nil
}

// requestArgs flattens the variant into the nullable column set.
func requestArgs(req Request) (kind string, start, end any, total any, occurred any, openEnded bool, closed any, duration any) {
	if req.Dated != nil {
		return kindDated, req.Dated.StartDate, req.Dated.EndDate, req.Dated.TotalDays, nil, false, nil, nil
	}
	if req.Reported != nil {
		var closedOn, durationDays any
		if req.Reported.ClosedOn != nil {
			closedOn = *req.Reported.ClosedOn
		}
		if req.Reported.DurationDays != nil {
			durationDays = *req.Reported.DurationDays
		}
		return kindReported, nil, nil, nil, req.Reported.OccurredOn, req.Reported.IsOpenEnded, closedOn, durationDays
	}
	return "", nil, nil, nil, nil, false, nil, nil
}

func (s *PGStore) CreateRequest(ctx context.Context, req Request) (Request, error) {
	if req.ApprovalHistory == nil {
		req.ApprovalHistory = []ApprovalEntry{}
	}
	history, err := json.Marshal(req.ApprovalHistory)
	if err != nil {
		return Request{}, err
	}
	kind, start, end, total, occurred, openEnded, closed, duration := requestArgs(req)
	return scanRequest(s.DB.QueryRow(ctx, `
    WITH r AS (
      INSERT INTO leave_requests (user_id, leave_type_id, kind, start_date, end_date, total_days,
                                  occurred_on, is_open_ended, closed_on, duration_days, reason,
                                  supervisor_id, status, approval_history)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
      RETURNING *
    )
    SELECT `+requestColumns+` FROM r
  `, string(req.UserID), req.LeaveTypeID, kind, start, end, total, occurred, openEnded, closed, duration,
		req.Reason, nullIfEmpty(string(req.SupervisorID)), string(req.Status), history))
}

func (s *PGStore) GetRequest(ctx context.Context, id string) (Request, error) {
	return scanRequest(s.DB.QueryRow(ctx, "SELECT "+requestColumns+" FROM leave_requests r WHERE r.id::text = $1", id))
}

func (s *PGStore) UpdateRequest(ctx context.Context, req Request, expected Status) (Request, error) {
	history, err := json.Marshal(req.ApprovalHistory)
	if err != nil {
		return Request{}, err
	}
	kind, start, end, total, occurred, openEnded, closed, duration := requestArgs(req)
	updated, err := scanRequest(s.DB.QueryRow(ctx, `
    WITH r AS (
      UPDATE leave_requests
      SET kind = $1, start_date = $2, end_date = $3, total_days = $4, occurred_on = $5, is_open_ended = $6,
          closed_on = $7, duration_days = $8, reason = $9, supervisor_id = $10, status = $11,
          approval_history = $12, updated_at = now()
      WHERE id::text = $13 AND status = $14
      RETURNING *
    )
    SELECT `+requestColumns+` FROM r
  `, kind, start, end, total, occurred, openEnded, closed, duration, req.Reason,
		nullIfEmpty(string(req.SupervisorID)), string(req.Status), history, req.ID, string(expected)))
	if errors.Is(err, ErrRequestNotFound) {
		if _, getErr := s.GetRequest(ctx, req.ID); getErr != nil {
			return Request{}, getErr
		}
		return Request{}, ErrRequestNotActionable
	}
	return updated, err
}

func (s *PGStore) DeleteRequest(ctx context.Context, id string, expected Status) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM leave_requests WHERE id::text = $1 AND status = $2", id, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetRequest(ctx, id); err != nil {
			return err
		}
		return ErrRequestNotActionable
	}
	return nil
}

func (s *PGStore) ActiveDatedRequests(ctx context.Context, userID auth.UserID) ([]Request, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+requestColumns+`
    FROM leave_requests r
    WHERE r.user_id::text = $1 AND r.kind = $2 AND r.status = ANY($3)
    ORDER BY r.start_date
  `, string(userID), kindDated, statusStrings(ActiveStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PGStore) ListRequests(ctx context.Context, filter RequestFilter) (RequestListResult, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !filter.All {
		var scope []string
		if filter.OwnerUserID != "" {
			scope = append(scope, "r.user_id::text = "+arg(string(filter.OwnerUserID)))
		}
		if filter.ApproverEmployeeID != "" {
			p := arg(string(filter.ApproverEmployeeID))
			scope = append(scope, "r.supervisor_id::text = "+p, "e.manager_id::text = "+p)
		}
		if len(scope) == 0 {
			return RequestListResult{Requests: []Request{}}, nil
		}
		where = append(where, "("+strings.Join(scope, " OR ")+")")
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "r.status = ANY("+arg(statusStrings(filter.Statuses))+")")
	}

	from := `
    FROM leave_requests r
    LEFT JOIN employees e ON e.user_id = r.user_id
    LEFT JOIN leave_types t ON t.id = r.leave_type_id`
	if len(where) > 0 {
		from += "\n    WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1)"+from, args...).Scan(&total); err != nil {
		return RequestListResult{}, err
	}

	limit, offset := filter.Limit, filter.Offset
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT " + requestColumns + ", COALESCE(e.name, ''), COALESCE(t.name, '')" + from +
		fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT %s OFFSET %s", arg(limit), arg(offset))
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return RequestListResult{}, err
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		var employeeName, typeName string
		req, err := scanRequest(rows, &employeeName, &typeName)
		if err != nil {
			return RequestListResult{}, err
		}
		req.EmployeeName = employeeName
		req.LeaveTypeName = typeName
		requests = append(requests, req)
	}
	return RequestListResult{Requests: requests, Total: total}, rows.Err()
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
