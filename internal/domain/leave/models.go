package leave

import (
	"encoding/json"
	"time"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusReported      Status = "reported"
	StatusApprovedLvl1  Status = "approved_lvl1"
	StatusApprovedFinal Status = "approved_final"
	StatusRejected      Status = "rejected"
	StatusCancelled     Status = "cancelled"
)

// ActiveStatuses are the statuses that block an overlapping dated request.
var ActiveStatuses = []Status{StatusSubmitted, StatusApprovedLvl1, StatusApprovedFinal}

func ValidStatus(s Status) bool {
	switch s {
	case StatusSubmitted, StatusReported, StatusApprovedLvl1, StatusApprovedFinal, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Editable reports whether the request is still pre-decision.
func (s Status) Editable() bool {
	return s == StatusSubmitted || s == StatusReported
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionUndone   Decision = "undone"
)

type Level string

const (
	Level1 Level = "level1"
	Level2 Level = "level2"
)

type LeaveType struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	DefaultDays             float64   `json:"defaultDays"`
	MaxConsecutiveDays      *int      `json:"maxConsecutiveDays,omitempty"`
	RequiresBalance         bool      `json:"requiresBalance"`
	RequiresDates           bool      `json:"requiresDates"`
	AllowFutureApplications bool      `json:"allowFutureApplications"`
	IsOpenEndedAllowed      bool      `json:"isOpenEndedAllowed"`
	MaxRetroactiveDays      *int      `json:"maxRetroactiveDays,omitempty"`
	RequiresApproval        bool      `json:"requiresApproval"`
	RequiresAttachment      bool      `json:"requiresAttachment"`
	IsActive                bool      `json:"isActive"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// BalanceKey is the composite identity of a ledger row.
type BalanceKey struct {
	EmployeeID  employee.ID
	LeaveTypeID string
	Year        int
}

type Balance struct {
	ID            string      `json:"id"`
	EmployeeID    employee.ID `json:"employeeId"`
	LeaveTypeID   string      `json:"leaveTypeId"`
	LeaveTypeName string      `json:"leaveTypeName,omitempty"`
	Year          int         `json:"year"`
	Allocated     float64     `json:"allocated"`
	Used          float64     `json:"used"`
	Pending       float64     `json:"pending"`
	CarryOver     float64     `json:"carryOver"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func (b Balance) Key() BalanceKey {
	return BalanceKey{EmployeeID: b.EmployeeID, LeaveTypeID: b.LeaveTypeID, Year: b.Year}
}

// Remaining is the bookable balance. Final approval moves days out of
// allocated into used, so used is already excluded from allocated.
func (b Balance) Remaining() float64 {
	return b.Allocated + b.CarryOver - b.Pending
}

func (b Balance) MarshalJSON() ([]byte, error) {
	type row Balance
	return json.Marshal(struct {
		row
		Remaining float64 `json:"remaining"`
	}{row: row(b), Remaining: b.Remaining()})
}

// Delta is an increment applied to a ledger row in one atomic step.
type Delta struct {
	Allocated float64
	Used      float64
	Pending   float64
}

func (d Delta) IsZero() bool {
	return d.Allocated == 0 && d.Used == 0 && d.Pending == 0
}

type ApprovalEntry struct {
	ApproverID auth.UserID `json:"approverId"`
	Level      Level       `json:"level"`
	Decision   Decision    `json:"decision"`
	Comment    string      `json:"comment,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// DatedLeave is the shape of a request whose type requires dates.
type DatedLeave struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	TotalDays float64   `json:"totalDays"`
}

// ReportedLeave is the shape of a request reported after the fact.
type ReportedLeave struct {
	OccurredOn   time.Time  `json:"occurredOn"`
	IsOpenEnded  bool       `json:"isOpenEnded"`
	ClosedOn     *time.Time `json:"closedOn,omitempty"`
	DurationDays *float64   `json:"durationDays,omitempty"`
}

type SupervisorSummary struct {
	ID    employee.ID `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
}

// Request holds exactly one of Dated or Reported.
type Request struct {
	ID              string          `json:"id"`
	UserID          auth.UserID     `json:"userId"`
	LeaveTypeID     string          `json:"leaveTypeId"`
	Dated           *DatedLeave     `json:"dated,omitempty"`
	Reported        *ReportedLeave  `json:"reported,omitempty"`
	Reason          string          `json:"reason"`
	SupervisorID    employee.ID     `json:"supervisorId,omitempty"`
	Status          Status          `json:"status"`
	ApprovalHistory []ApprovalEntry `json:"approvalHistory"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	EmployeeName  string             `json:"employeeName,omitempty"`
	LeaveTypeName string             `json:"leaveTypeName,omitempty"`
	Supervisor    *SupervisorSummary `json:"supervisor,omitempty"`
}

// Days is the day count the request represents: working days for dated
// leave, the duration for closed reports, zero while still open-ended.
func (r Request) Days() float64 {
	switch {
	case r.Dated != nil:
		return r.Dated.TotalDays
	case r.Reported != nil && r.Reported.DurationDays != nil:
		return *r.Reported.DurationDays
	}
	return 0
}

// Year is the ledger year a dated request books against.
func (r Request) Year() int {
	if r.Dated != nil {
		return r.Dated.StartDate.Year()
	}
	if r.Reported != nil {
		return r.Reported.OccurredOn.Year()
	}
	return r.CreatedAt.Year()
}

type RequestFilter struct {
	// OwnerUserID and ApproverEmployeeID are OR-ed when both set.
	OwnerUserID        auth.UserID
	ApproverEmployeeID employee.ID
	All                bool
	Statuses           []Status
	Limit              int
	Offset             int
}

type RequestListResult struct {
	Requests []Request
	Total    int
}

type BalanceExportRow struct {
	EmployeeName  string
	EmployeeEmail string
	LeaveTypeName string
	Balance       Balance
}
