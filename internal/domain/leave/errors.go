package leave

import "errors"

var (
	ErrValidation = errors.New("validation failed")

	ErrRequestNotFound   = errors.New("leave request not found")
	ErrEmployeeNotFound  = errors.New("employee profile not found")
	ErrLeaveTypeNotFound = errors.New("leave type not found")
	ErrNoBalanceFound    = errors.New("no leave balance found for this leave type and year")

	ErrInvalidSupervisor       = errors.New("supervisor must be an admin, approver or level1 approver")
	ErrInvalidDateRange        = errors.New("start date must not be after end date")
	ErrFutureDateNotAllowed    = errors.New("future dates are not allowed for this leave type")
	ErrPastDateNotAllowed      = errors.New("past dates are not allowed for this leave type")
	ErrNoWorkingDays           = errors.New("requested range contains no working days")
	ErrMaxConsecutiveDays      = errors.New("requested days exceed the maximum consecutive days for this leave type")
	ErrOverlappingRequest      = errors.New("request overlaps an existing leave request")
	ErrInsufficientBalance     = errors.New("insufficient leave balance")
	ErrOccurredInFuture        = errors.New("occurrence date cannot be in the future")
	ErrReportingWindowExceeded = errors.New("reporting window exceeded for this leave type")
	ErrOpenEndedNotAllowed     = errors.New("open-ended reporting is not allowed for this leave type")
	ErrNotOpenEnded            = errors.New("leave request is not open-ended")
	ErrInvalidClosedOn         = errors.New("closed date must not be before the occurrence date")
	ErrLeaveTypeInactive       = errors.New("leave type is inactive")
	ErrRequestNotActionable    = errors.New("leave request is not actionable in its current status")

	ErrNotAuthorizedApprover  = errors.New("not authorized to approve this request")
	ErrFinalApprovalAdminOnly = errors.New("final approval is restricted to admins")
	ErrForbidden              = errors.New("forbidden")

	ErrDuplicateLeaveType = errors.New("leave type name already exists")
)
