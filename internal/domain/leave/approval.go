package leave

import (
	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

// AuthorizationInput is everything the approval gate looks at.
type AuthorizationInput struct {
	Status             Status
	SupervisorID       employee.ID
	RequesterManagerID employee.ID
	Approver           auth.Identity
	ApproverEmployeeID employee.ID
	Decision           Decision
}

type Authorization struct {
	Allowed         bool
	Level           Level
	ResultingStatus Status
	Err             error
}

func deny(err error) Authorization {
	return Authorization{Err: err}
}

// Authorize decides whether the approver may record the decision against a
// request in its current status. Level 1 is open to admins and to the
// request's supervisor or the requester's manager. Level 2 is admin only.
func Authorize(in AuthorizationInput) Authorization {
	if in.Decision != DecisionApproved && in.Decision != DecisionRejected {
		return deny(ErrValidation)
	}

	switch in.Status {
	case StatusSubmitted, StatusReported:
		if !in.Approver.IsAdmin() && !isSupervisorOrManager(in) {
			return deny(ErrNotAuthorizedApprover)
		}
		next := StatusApprovedLvl1
		if in.Decision == DecisionRejected {
			next = StatusRejected
		}
		return Authorization{Allowed: true, Level: Level1, ResultingStatus: next}
	case StatusApprovedLvl1:
		if !in.Approver.IsAdmin() {
			return deny(ErrFinalApprovalAdminOnly)
		}
		next := StatusApprovedFinal
		if in.Decision == DecisionRejected {
			next = StatusRejected
		}
		return Authorization{Allowed: true, Level: Level2, ResultingStatus: next}
	default:
		return deny(ErrRequestNotActionable)
	}
}

func isSupervisorOrManager(in AuthorizationInput) bool {
	if in.ApproverEmployeeID == "" {
		return false
	}
	return in.ApproverEmployeeID == in.SupervisorID || in.ApproverEmployeeID == in.RequesterManagerID
}
