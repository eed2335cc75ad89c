package leavehandler

import (
	"errors"
	"log/slog"
	"net/http"

	"hrerp/internal/domain/leave"
	"hrerp/internal/transport/http/api"
	"hrerp/internal/transport/http/middleware"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{leave.ErrValidation, http.StatusBadRequest, "validation_error"},
	{leave.ErrNoBalanceFound, http.StatusBadRequest, "no_balance_found"},
	{leave.ErrInsufficientBalance, http.StatusBadRequest, "insufficient_balance"},
	{leave.ErrInvalidSupervisor, http.StatusBadRequest, "invalid_supervisor"},
	{leave.ErrInvalidDateRange, http.StatusBadRequest, "invalid_date_range"},
	{leave.ErrFutureDateNotAllowed, http.StatusBadRequest, "future_date_not_allowed"},
	{leave.ErrPastDateNotAllowed, http.StatusBadRequest, "past_date_not_allowed"},
	{leave.ErrNoWorkingDays, http.StatusBadRequest, "no_working_days"},
	{leave.ErrMaxConsecutiveDays, http.StatusBadRequest, "max_consecutive_days_exceeded"},
	{leave.ErrOverlappingRequest, http.StatusBadRequest, "overlapping_request"},
	{leave.ErrOccurredInFuture, http.StatusBadRequest, "occurred_in_future"},
	{leave.ErrReportingWindowExceeded, http.StatusBadRequest, "reporting_window_exceeded"},
	{leave.ErrOpenEndedNotAllowed, http.StatusBadRequest, "open_ended_not_allowed"},
	{leave.ErrNotOpenEnded, http.StatusBadRequest, "not_open_ended"},
	{leave.ErrInvalidClosedOn, http.StatusBadRequest, "invalid_closed_on"},
	{leave.ErrLeaveTypeInactive, http.StatusBadRequest, "leave_type_inactive"},

	{leave.ErrRequestNotFound, http.StatusNotFound, "not_found"},
	{leave.ErrEmployeeNotFound, http.StatusNotFound, "employee_not_found"},
	{leave.ErrLeaveTypeNotFound, http.StatusNotFound, "leave_type_not_found"},

	{leave.ErrNotAuthorizedApprover, http.StatusForbidden, "not_authorized_approver"},
	{leave.ErrFinalApprovalAdminOnly, http.StatusForbidden, "final_approval_admin_only"},
	{leave.ErrForbidden, http.StatusForbidden, "forbidden"},
	{leave.ErrRequestNotActionable, http.StatusForbidden, "request_not_actionable"},

	{leave.ErrDuplicateLeaveType, http.StatusConflict, "duplicate_leave_type"},
}

// writeError maps domain errors onto the response envelope. Unknown errors are
// logged and reported as 500 under fallbackCode.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	requestID := middleware.GetRequestID(r.Context())
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			api.Fail(w, m.status, m.code, err.Error(), requestID)
			return
		}
	}
	slog.Error("leave handler failed", "code", fallbackCode, "requestId", requestID, "err", err)
	api.Fail(w, http.StatusInternalServerError, fallbackCode, "internal server error", requestID)
}
