package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

// Service runs the leave request lifecycle: submission, approval, closing of
// open-ended reports, cancellation and undo of final approval.
type Service struct {
	types     TypeStore
	requests  RequestStore
	ledger    *Ledger
	directory employee.Directory
	users     UserLookup
	notifier  Notifier
	now       func() time.Time
}

func NewService(types TypeStore, requests RequestStore, ledger *Ledger, directory employee.Directory, users UserLookup, notifier Notifier) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		types:     types,
		requests:  requests,
		ledger:    ledger,
		directory: directory,
		users:     users,
		notifier:  notifier,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Ledger() *Ledger {
	return s.ledger
}

type SubmitInput struct {
	LeaveTypeID  string
	Reason       string
	SupervisorID employee.ID

	StartDate *time.Time
	EndDate   *time.Time

	OccurredOn  *time.Time
	IsOpenEnded bool
	ClosedOn    *time.Time
}

func (s *Service) today() time.Time {
	return DateOnly(s.now())
}

func (s *Service) requester(ctx context.Context, userID auth.UserID) (employee.Employee, error) {
	emp, err := s.directory.EmployeeFor(ctx, userID)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return employee.Employee{}, ErrEmployeeNotFound
		}
		return employee.Employee{}, err
	}
	return emp, nil
}

// resolveSupervisor validates an explicitly chosen supervisor or falls back to
// the employee's manager.
func (s *Service) resolveSupervisor(ctx context.Context, emp employee.Employee, supervisorID employee.ID) (employee.ID, error) {
	if supervisorID == "" {
		return emp.ManagerID, nil
	}
	sup, err := s.directory.FindByID(ctx, supervisorID)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return "", ErrInvalidSupervisor
		}
		return "", err
	}
	if sup.UserID == "" {
		return "", ErrInvalidSupervisor
	}
	user, err := s.users.GetUser(ctx, sup.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return "", ErrInvalidSupervisor
		}
		return "", err
	}
	if !user.IsActive || !user.CanSupervise() {
		return "", ErrInvalidSupervisor
	}
	return sup.ID, nil
}

func (s *Service) leaveType(ctx context.Context, id string) (LeaveType, error) {
	if strings.TrimSpace(id) == "" {
		return LeaveType{}, fmt.Errorf("%w: leaveTypeId is required", ErrValidation)
	}
	return s.types.GetType(ctx, id)
}

// Submit creates a request for the caller. Dated types reserve balance as
// pending; non-dated types are recorded as reported.
func (s *Service) Submit(ctx context.Context, caller auth.Identity, in SubmitInput) (Request, error) {
	emp, err := s.requester(ctx, caller.UserID)
	if err != nil {
		return Request{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return Request{}, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	lt, err := s.leaveType(ctx, in.LeaveTypeID)
	if err != nil {
		return Request{}, err
	}
	if !lt.IsActive {
		return Request{}, ErrLeaveTypeInactive
	}
	supervisorID, err := s.resolveSupervisor(ctx, emp, in.SupervisorID)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		UserID:       caller.UserID,
		LeaveTypeID:  lt.ID,
		Reason:       reason,
		SupervisorID: supervisorID,
	}

	var reserved *BalanceKey
	if lt.RequiresDates {
		if in.StartDate == nil || in.EndDate == nil {
			return Request{}, fmt.Errorf("%w: startDate and endDate are required for this leave type", ErrValidation)
		}
		dated, err := s.checkDated(ctx, lt, caller.UserID, *in.StartDate, *in.EndDate, "")
		if err != nil {
			return Request{}, err
		}
		if lt.RequiresBalance {
			key := BalanceKey{EmployeeID: emp.ID, LeaveTypeID: lt.ID, Year: dated.StartDate.Year()}
			if err := s.reserve(ctx, key, dated.TotalDays); err != nil {
				return Request{}, err
			}
			reserved = &key
		}
		req.Dated = &dated
		req.Status = StatusSubmitted
	} else {
		if in.OccurredOn == nil {
			return Request{}, fmt.Errorf("%w: occurredOn is required for this leave type", ErrValidation)
		}
		reported, err := s.checkReported(lt, *in.OccurredOn, in.IsOpenEnded, in.ClosedOn)
		if err != nil {
			return Request{}, err
		}
		req.Reported = &reported
		req.Status = StatusReported
	}

	created, err := s.requests.CreateRequest(ctx, req)
	if err != nil {
		if reserved != nil {
			s.ledger.applyDecided(ctx, "", *reserved, Delta{Pending: -req.Days()})
		}
		return Request{}, err
	}

	created = s.populate(ctx, created, &emp, &lt)
	s.notifySubmitted(ctx, created)
	return created, nil
}

// checkDated validates a date range against the type's policy and existing
// active requests. exclude skips one request id in the overlap check.
func (s *Service) checkDated(ctx context.Context, lt LeaveType, userID auth.UserID, start, end time.Time, exclude string) (DatedLeave, error) {
	start, end = DateOnly(start), DateOnly(end)
	if start.After(end) {
		return DatedLeave{}, ErrInvalidDateRange
	}
	today := s.today()
	// allowFutureApplications=false rejects future starts, true rejects past starts.
	if lt.AllowFutureApplications {
		if start.Before(today) {
			return DatedLeave{}, ErrPastDateNotAllowed
		}
	} else if start.After(today) {
		return DatedLeave{}, ErrFutureDateNotAllowed
	}

	days := WorkingDays(start, end)
	if days == 0 {
		return DatedLeave{}, ErrNoWorkingDays
	}
	if lt.MaxConsecutiveDays != nil && days > *lt.MaxConsecutiveDays {
		return DatedLeave{}, fmt.Errorf("%w: at most %d days", ErrMaxConsecutiveDays, *lt.MaxConsecutiveDays)
	}

	active, err := s.requests.ActiveDatedRequests(ctx, userID)
	if err != nil {
		return DatedLeave{}, err
	}
	for _, other := range active {
		if other.ID == exclude || other.Dated == nil {
			continue
		}
		if rangesOverlap(start, end, other.Dated.StartDate, other.Dated.EndDate) {
			return DatedLeave{}, ErrOverlappingRequest
		}
	}
	return DatedLeave{StartDate: start, EndDate: end, TotalDays: float64(days)}, nil
}

func (s *Service) checkReported(lt LeaveType, occurredOn time.Time, openEnded bool, closedOn *time.Time) (ReportedLeave, error) {
	occurredOn = DateOnly(occurredOn)
	today := s.today()
	if occurredOn.After(today) {
		return ReportedLeave{}, ErrOccurredInFuture
	}
	if lt.MaxRetroactiveDays != nil && DaysBetween(occurredOn, today) > *lt.MaxRetroactiveDays {
		return ReportedLeave{}, fmt.Errorf("%w: reports must be filed within %d days", ErrReportingWindowExceeded, *lt.MaxRetroactiveDays)
	}
	if openEnded {
		if !lt.IsOpenEndedAllowed {
			return ReportedLeave{}, ErrOpenEndedNotAllowed
		}
		return ReportedLeave{OccurredOn: occurredOn, IsOpenEnded: true}, nil
	}

	closed := occurredOn
	if closedOn != nil {
		closed = DateOnly(*closedOn)
		if closed.Before(occurredOn) {
			return ReportedLeave{}, ErrInvalidClosedOn
		}
	}
	duration := float64(CalendarDays(occurredOn, closed))
	return ReportedLeave{OccurredOn: occurredOn, ClosedOn: &closed, DurationDays: &duration}, nil
}

// reserve books days as pending in one conditional step. Both the missing
// row and the shortfall block the caller.
func (s *Service) reserve(ctx context.Context, key BalanceKey, days float64) error {
	_, err := s.ledger.Reserve(ctx, key, days)
	return err
}

type UpdateInput struct {
	Reason       *string
	SupervisorID *employee.ID

	StartDate *time.Time
	EndDate   *time.Time

	OccurredOn  *time.Time
	IsOpenEnded *bool
	ClosedOn    *time.Time
}

// Update edits a request that is still awaiting its first decision. Owners
// edit their own; admins and the supervisor or manager may edit on their behalf.
func (s *Service) Update(ctx context.Context, caller auth.Identity, id string, in UpdateInput) (Request, error) {
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !req.Status.Editable() {
		return Request{}, ErrRequestNotActionable
	}
	if req.UserID != caller.UserID {
		// Non-owners must be privileged and able to see the request.
		if !caller.IsPrivileged() {
			return Request{}, ErrForbidden
		}
		visible, err := s.canView(ctx, caller, req)
		if err != nil {
			return Request{}, err
		}
		if !visible {
			return Request{}, ErrForbidden
		}
	}
	owner, err := s.requester(ctx, req.UserID)
	if err != nil {
		return Request{}, err
	}
	lt, err := s.types.GetType(ctx, req.LeaveTypeID)
	if err != nil {
		return Request{}, err
	}

	next := req
	if in.Reason != nil {
		reason := strings.TrimSpace(*in.Reason)
		if reason == "" {
			return Request{}, fmt.Errorf("%w: reason is required", ErrValidation)
		}
		next.Reason = reason
	}
	if in.SupervisorID != nil {
		if next.SupervisorID, err = s.resolveSupervisor(ctx, owner, *in.SupervisorID); err != nil {
			return Request{}, err
		}
	}

	var release func()
	switch {
	case req.Dated != nil && (in.StartDate != nil || in.EndDate != nil):
		start, end := req.Dated.StartDate, req.Dated.EndDate
		if in.StartDate != nil {
			start = *in.StartDate
		}
		if in.EndDate != nil {
			end = *in.EndDate
		}
		dated, err := s.checkDated(ctx, lt, req.UserID, start, end, req.ID)
		if err != nil {
			return Request{}, err
		}
		if lt.RequiresBalance {
			if release, err = s.rebook(ctx, req, owner.ID, dated); err != nil {
				return Request{}, err
			}
		}
		next.Dated = &dated
	case req.Reported != nil && (in.OccurredOn != nil || in.IsOpenEnded != nil || in.ClosedOn != nil):
		occurred, openEnded, closedOn := req.Reported.OccurredOn, req.Reported.IsOpenEnded, req.Reported.ClosedOn
		if in.OccurredOn != nil {
			occurred = *in.OccurredOn
		}
		if in.IsOpenEnded != nil {
			openEnded = *in.IsOpenEnded
		}
		if in.ClosedOn != nil {
			closedOn = in.ClosedOn
		}
		if openEnded {
			closedOn = nil
		}
		reported, err := s.checkReported(lt, occurred, openEnded, closedOn)
		if err != nil {
			return Request{}, err
		}
		next.Reported = &reported
	}

	updated, err := s.requests.UpdateRequest(ctx, next, req.Status)
	if err != nil {
		if release != nil {
			s.rollbackRebook(ctx, req, owner.ID, next)
		}
		return Request{}, err
	}
	if release != nil {
		release()
	}
	return s.populate(ctx, updated, &owner, &lt), nil
}

// rebook reserves balance for a changed date range. The returned func
// releases the old reservation once the new range is stored.
func (s *Service) rebook(ctx context.Context, req Request, employeeID employee.ID, dated DatedLeave) (func(), error) {
	oldKey := BalanceKey{EmployeeID: employeeID, LeaveTypeID: req.LeaveTypeID, Year: req.Dated.StartDate.Year()}
	newKey := BalanceKey{EmployeeID: employeeID, LeaveTypeID: req.LeaveTypeID, Year: dated.StartDate.Year()}
	oldDays := req.Dated.TotalDays

	if oldKey == newKey {
		delta := dated.TotalDays - oldDays
		if delta > 0 {
			if err := s.reserve(ctx, newKey, delta); err != nil {
				return nil, err
			}
		} else if delta < 0 {
			if _, err := s.ledger.Adjust(ctx, newKey, Delta{Pending: delta}); err != nil {
				return nil, err
			}
		}
		return func() {}, nil
	}

	if err := s.reserve(ctx, newKey, dated.TotalDays); err != nil {
		return nil, err
	}
	return func() {
		s.ledger.applyDecided(ctx, req.ID, oldKey, Delta{Pending: -oldDays})
	}, nil
}

func (s *Service) rollbackRebook(ctx context.Context, before Request, employeeID employee.ID, after Request) {
	oldKey := BalanceKey{EmployeeID: employeeID, LeaveTypeID: before.LeaveTypeID, Year: before.Dated.StartDate.Year()}
	newKey := BalanceKey{EmployeeID: employeeID, LeaveTypeID: after.LeaveTypeID, Year: after.Dated.StartDate.Year()}
	if oldKey == newKey {
		s.ledger.applyDecided(ctx, before.ID, newKey, Delta{Pending: before.Dated.TotalDays - after.Dated.TotalDays})
		return
	}
	s.ledger.applyDecided(ctx, before.ID, newKey, Delta{Pending: -after.Dated.TotalDays})
}

// tracksBalance reports whether transitions of req move ledger counters.
func tracksBalance(lt LeaveType, req Request) bool {
	return lt.RequiresBalance && lt.RequiresDates && req.Dated != nil
}

func (s *Service) balanceKey(ctx context.Context, req Request) (BalanceKey, bool) {
	emp, err := s.directory.EmployeeFor(ctx, req.UserID)
	if err != nil {
		slog.Warn("leave balance owner lookup failed", "requestId", req.ID, "userId", req.UserID, "err", err)
		return BalanceKey{}, false
	}
	return BalanceKey{EmployeeID: emp.ID, LeaveTypeID: req.LeaveTypeID, Year: req.Year()}, true
}

// applyLedger books delta for a transition that has already been stored.
func (s *Service) applyLedger(ctx context.Context, lt LeaveType, req Request, delta Delta) {
	if !tracksBalance(lt, req) {
		return
	}
	key, ok := s.balanceKey(ctx, req)
	if !ok {
		return
	}
	s.ledger.applyDecided(ctx, req.ID, key, delta)
}

// Decide records an approval or rejection at the level the request's current
// status calls for.
func (s *Service) Decide(ctx context.Context, caller auth.Identity, id string, decision Decision, comment string) (Request, error) {
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	lt, err := s.types.GetType(ctx, req.LeaveTypeID)
	if err != nil {
		return Request{}, err
	}

	var requesterManager employee.ID
	owner, ownerErr := s.directory.EmployeeFor(ctx, req.UserID)
	switch {
	case ownerErr == nil:
		requesterManager = owner.ManagerID
	case errors.Is(ownerErr, employee.ErrNotFound):
	default:
		return Request{}, ownerErr
	}
	var approverEmployee employee.ID
	if approver, err := s.directory.EmployeeFor(ctx, caller.UserID); err == nil {
		approverEmployee = approver.ID
	} else if !errors.Is(err, employee.ErrNotFound) {
		return Request{}, err
	}

	verdict := Authorize(AuthorizationInput{
		Status:             req.Status,
		SupervisorID:       req.SupervisorID,
		RequesterManagerID: requesterManager,
		Approver:           caller,
		ApproverEmployeeID: approverEmployee,
		Decision:           decision,
	})
	if !verdict.Allowed {
		return Request{}, verdict.Err
	}

	previous := req.Status
	req.ApprovalHistory = append(req.ApprovalHistory, ApprovalEntry{
		ApproverID: caller.UserID,
		Level:      verdict.Level,
		Decision:   decision,
		Comment:    strings.TrimSpace(comment),
		Timestamp:  s.now().UTC(),
	})
	req.Status = verdict.ResultingStatus
	updated, err := s.requests.UpdateRequest(ctx, req, previous)
	if err != nil {
		return Request{}, err
	}

	switch updated.Status {
	case StatusApprovedFinal:
		d := updated.Days()
		s.applyLedger(ctx, lt, updated, Delta{Pending: -d, Used: d, Allocated: -d})
	case StatusRejected:
		s.applyLedger(ctx, lt, updated, Delta{Pending: -updated.Days()})
	}

	var ownerPtr *employee.Employee
	if ownerErr == nil {
		ownerPtr = &owner
	}
	updated = s.populate(ctx, updated, ownerPtr, &lt)
	s.notifyDecision(ctx, updated, ownerPtr, comment)
	return updated, nil
}

// CloseOpenEnded ends an open-ended report and fixes its duration.
func (s *Service) CloseOpenEnded(ctx context.Context, caller auth.Identity, id string, closedOn time.Time) (Request, error) {
	if !caller.IsPrivileged() {
		return Request{}, ErrForbidden
	}
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Reported == nil || !req.Reported.IsOpenEnded {
		return Request{}, ErrNotOpenEnded
	}
	if req.Status == StatusRejected || req.Status == StatusCancelled {
		return Request{}, ErrRequestNotActionable
	}
	closed := DateOnly(closedOn)
	if closed.Before(req.Reported.OccurredOn) {
		return Request{}, ErrInvalidClosedOn
	}
	duration := float64(CalendarDays(req.Reported.OccurredOn, closed))

	next := req
	reported := *req.Reported
	reported.IsOpenEnded = false
	reported.ClosedOn = &closed
	reported.DurationDays = &duration
	next.Reported = &reported

	updated, err := s.requests.UpdateRequest(ctx, next, req.Status)
	if err != nil {
		return Request{}, err
	}
	return s.populate(ctx, updated, nil, nil), nil
}

// Cancel deletes the request and releases whatever balance it holds.
func (s *Service) Cancel(ctx context.Context, caller auth.Identity, id string) (Request, error) {
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	switch req.Status {
	case StatusSubmitted, StatusReported, StatusApprovedLvl1, StatusApprovedFinal:
	default:
		return Request{}, ErrRequestNotActionable
	}
	isOwner := req.UserID == caller.UserID
	switch {
	case caller.IsPrivileged():
	case isOwner && req.Status != StatusApprovedFinal:
	default:
		return Request{}, ErrForbidden
	}
	lt, err := s.types.GetType(ctx, req.LeaveTypeID)
	if err != nil {
		return Request{}, err
	}

	if err := s.requests.DeleteRequest(ctx, req.ID, req.Status); err != nil {
		return Request{}, err
	}

	d := req.Days()
	if req.Status == StatusApprovedFinal {
		s.applyLedger(ctx, lt, req, Delta{Used: -d, Allocated: d})
	} else {
		s.applyLedger(ctx, lt, req, Delta{Pending: -d})
	}

	req = s.populate(ctx, req, nil, &lt)
	req.Status = StatusCancelled
	if !isOwner {
		s.notifyOwner(ctx, req, nil, KindCancelled, "")
	}
	return req, nil
}

// UndoFinal returns a finally approved request to level-1 approval and moves
// its days from used back to pending.
func (s *Service) UndoFinal(ctx context.Context, caller auth.Identity, id, comment string) (Request, error) {
	if !caller.IsAdmin() {
		return Request{}, ErrForbidden
	}
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if req.Status != StatusApprovedFinal {
		return Request{}, ErrRequestNotActionable
	}
	lt, err := s.types.GetType(ctx, req.LeaveTypeID)
	if err != nil {
		return Request{}, err
	}

	req.ApprovalHistory = append(req.ApprovalHistory, ApprovalEntry{
		ApproverID: caller.UserID,
		Level:      Level2,
		Decision:   DecisionUndone,
		Comment:    strings.TrimSpace(comment),
		Timestamp:  s.now().UTC(),
	})
	req.Status = StatusApprovedLvl1
	updated, err := s.requests.UpdateRequest(ctx, req, StatusApprovedFinal)
	if err != nil {
		return Request{}, err
	}

	d := updated.Days()
	s.applyLedger(ctx, lt, updated, Delta{Used: -d, Pending: d, Allocated: d})

	updated = s.populate(ctx, updated, nil, &lt)
	s.notifyOwner(ctx, updated, nil, KindFinalUndone, comment)
	return updated, nil
}

// Get returns a request the caller may see: their own, one they supervise or
// manage, or any request for admins.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id string) (Request, error) {
	req, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	allowed, err := s.canView(ctx, caller, req)
	if err != nil {
		return Request{}, err
	}
	if !allowed {
		return Request{}, ErrForbidden
	}
	return s.populate(ctx, req, nil, nil), nil
}

func (s *Service) canView(ctx context.Context, caller auth.Identity, req Request) (bool, error) {
	if caller.IsAdmin() || req.UserID == caller.UserID {
		return true, nil
	}
	approver, err := s.directory.EmployeeFor(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if req.SupervisorID == approver.ID {
		return true, nil
	}
	owner, err := s.directory.EmployeeFor(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return owner.ManagerID != "" && owner.ManagerID == approver.ID, nil
}

// List scopes the listing to the caller: admins see everything, everyone else
// sees their own requests plus the ones they supervise or manage.
func (s *Service) List(ctx context.Context, caller auth.Identity, statuses []Status, limit, offset int) (RequestListResult, error) {
	filter := RequestFilter{Statuses: statuses, Limit: limit, Offset: offset}
	if caller.IsAdmin() {
		filter.All = true
	} else {
		filter.OwnerUserID = caller.UserID
		if emp, err := s.directory.EmployeeFor(ctx, caller.UserID); err == nil {
			filter.ApproverEmployeeID = emp.ID
		} else if !errors.Is(err, employee.ErrNotFound) {
			return RequestListResult{}, err
		}
	}
	return s.requests.ListRequests(ctx, filter)
}

// Pending is the caller's approval queue.
func (s *Service) Pending(ctx context.Context, caller auth.Identity, limit, offset int) (RequestListResult, error) {
	if caller.IsAdmin() {
		return s.requests.ListRequests(ctx, RequestFilter{
			All:      true,
			Statuses: []Status{StatusSubmitted, StatusReported, StatusApprovedLvl1},
			Limit:    limit,
			Offset:   offset,
		})
	}
	emp, err := s.directory.EmployeeFor(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, employee.ErrNotFound) {
			return RequestListResult{}, nil
		}
		return RequestListResult{}, err
	}
	return s.requests.ListRequests(ctx, RequestFilter{
		ApproverEmployeeID: emp.ID,
		Statuses:           []Status{StatusSubmitted, StatusReported},
		Limit:              limit,
		Offset:             offset,
	})
}

// populate fills the display fields. Lookup failures leave them empty.
func (s *Service) populate(ctx context.Context, req Request, owner *employee.Employee, lt *LeaveType) Request {
	if owner == nil {
		if emp, err := s.directory.EmployeeFor(ctx, req.UserID); err == nil {
			owner = &emp
		}
	}
	if owner != nil {
		req.EmployeeName = owner.Name
	}
	if lt == nil {
		if found, err := s.types.GetType(ctx, req.LeaveTypeID); err == nil {
			lt = &found
		}
	}
	if lt != nil {
		req.LeaveTypeName = lt.Name
	}
	if req.SupervisorID != "" {
		if sup, err := s.directory.FindByID(ctx, req.SupervisorID); err == nil {
			req.Supervisor = &SupervisorSummary{ID: sup.ID, Name: sup.Name, Email: sup.Email}
		}
	}
	return req
}
