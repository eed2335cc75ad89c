package leave

import (
	"context"
	"log/slog"
	"strconv"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
)

const (
	KindSubmitted     = "leave_submitted"
	KindApprovedLvl1  = "leave_approved_lvl1"
	KindAwaitingFinal = "leave_awaiting_final"
	KindApproved      = "leave_approved"
	KindRejected      = "leave_rejected"
	KindCancelled     = "leave_cancelled"
	KindFinalUndone   = "leave_final_undone"
)

func requestPayload(req Request) map[string]any {
	payload := map[string]any{
		"requestId":     req.ID,
		"status":        string(req.Status),
		"leaveTypeId":   req.LeaveTypeID,
		"leaveTypeName": req.LeaveTypeName,
		"employeeName":  req.EmployeeName,
	}
	if req.Dated != nil {
		payload["startDate"] = req.Dated.StartDate.Format("2006-01-02")
		payload["endDate"] = req.Dated.EndDate.Format("2006-01-02")
		payload["totalDays"] = req.Dated.TotalDays
	}
	if req.Reported != nil {
		payload["occurredOn"] = req.Reported.OccurredOn.Format("2006-01-02")
		payload["isOpenEnded"] = req.Reported.IsOpenEnded
	}
	return payload
}

func (s *Service) notifySubmitted(ctx context.Context, req Request) {
	if req.SupervisorID == "" {
		return
	}
	sup, err := s.directory.FindByID(ctx, req.SupervisorID)
	if err != nil {
		slog.Warn("leave supervisor lookup for notification failed", "requestId", req.ID, "supervisorId", req.SupervisorID, "err", err)
		return
	}
	if sup.UserID == "" {
		return
	}
	s.notifier.Notify(sup.UserID, KindSubmitted, requestPayload(req))
}

func (s *Service) notifyDecision(ctx context.Context, req Request, owner *employee.Employee, comment string) {
	switch req.Status {
	case StatusApprovedLvl1:
		s.notifyOwner(ctx, req, owner, KindApprovedLvl1, comment)
		admins, err := s.users.UserIDsByRole(ctx, auth.RoleAdmin)
		if err != nil {
			slog.Warn("leave admin lookup for notification failed", "requestId", req.ID, "err", err)
			return
		}
		for _, adminID := range admins {
			s.notifier.Notify(adminID, KindAwaitingFinal, requestPayload(req))
		}
	case StatusApprovedFinal:
		s.notifyOwner(ctx, req, owner, KindApproved, comment)
	case StatusRejected:
		s.notifyOwner(ctx, req, owner, KindRejected, comment)
	}
}

// notifyOwner tells the requester about a status change in-app and by email.
func (s *Service) notifyOwner(ctx context.Context, req Request, owner *employee.Employee, kind, comment string) {
	payload := requestPayload(req)
	if comment != "" {
		payload["comment"] = comment
	}
	s.notifier.Notify(req.UserID, kind, payload)

	if owner == nil {
		emp, err := s.directory.EmployeeFor(ctx, req.UserID)
		if err != nil {
			slog.Warn("leave owner lookup for email failed", "requestId", req.ID, "err", err)
			return
		}
		owner = &emp
	}
	if owner.Email == "" {
		return
	}
	s.notifier.SendStatusChangeEmail(owner.Email, map[string]string{
		"kind":          kind,
		"employeeName":  owner.Name,
		"leaveTypeName": req.LeaveTypeName,
		"status":        string(req.Status),
		"days":          strconv.FormatFloat(req.Days(), 'f', -1, 64),
		"comment":       comment,
		"requestId":     req.ID,
	})
}
