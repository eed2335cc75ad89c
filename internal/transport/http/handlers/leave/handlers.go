package leavehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
	"hrerp/internal/domain/leave"
	"hrerp/internal/platform/jobs"
	"hrerp/internal/transport/http/api"
	"hrerp/internal/transport/http/middleware"
	"hrerp/internal/transport/http/shared"
)

type Handler struct {
	Service  *leave.Service
	Registry *leave.Registry
	Jobs     *jobs.Service
}

func NewHandler(service *leave.Service, registry *leave.Registry, jobsSvc *jobs.Service) *Handler {
	return &Handler{Service: service, Registry: registry, Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	adminOnly := middleware.RequireRole(auth.RoleAdmin)
	r.Route("/time-off", func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/leave-types", h.handleListTypes)
		r.Get("/leave-types/{typeID}", h.handleGetType)
		r.With(adminOnly).Post("/leave-types", h.handleCreateType)
		r.With(adminOnly).Put("/leave-types/{typeID}", h.handleUpdateType)
		r.With(adminOnly).Delete("/leave-types/{typeID}", h.handleDeleteType)

		r.Get("/balances/me", h.handleMyBalances)
		r.Get("/balances/employee/{employeeID}", h.handleEmployeeBalances)
		r.With(adminOnly).Post("/balances/allocate", h.handleAllocate)
		r.With(adminOnly).Post("/balances/rollover", h.handleRollover)
		r.With(adminOnly).Get("/balances/export", h.handleExportBalances)

		r.Get("/requests", h.handleListRequests)
		r.Get("/requests/pending", h.handlePendingRequests)
		r.Post("/requests", h.handleSubmitRequest)
		r.Get("/requests/{requestID}", h.handleGetRequest)
		r.Put("/requests/{requestID}", h.handleUpdateRequest)
		r.Get("/requests/{requestID}/pdf", h.handleRequestSlip)
		r.Delete("/requests/{requestID}/cancel", h.handleCancelRequest)
		r.Post("/requests/{requestID}/approve", h.handleDecideRequest)
		r.Post("/requests/{requestID}/close", h.handleCloseRequest)
		r.With(adminOnly).Post("/requests/{requestID}/undo-final", h.handleUndoFinal)
	})
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	types, err := h.Registry.List(r.Context(), user, includeInactive)
	if err != nil {
		writeError(w, r, err, "leave_types_failed")
		return
	}
	api.Success(w, types, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetType(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	lt, err := h.Registry.Get(r.Context(), chi.URLParam(r, "typeID"))
	if err != nil {
		writeError(w, r, err, "leave_type_failed")
		return
	}
	if !lt.IsActive && !user.IsAdmin() {
		writeError(w, r, leave.ErrLeaveTypeNotFound, "leave_type_failed")
		return
	}
	api.Success(w, lt, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	var payload leave.LeaveTypeInput
	if !decode(w, r, &payload) {
		return
	}
	result, err := h.Registry.Create(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "leave_type_create_failed")
		return
	}
	api.Created(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	var payload leave.LeaveTypeInput
	if !decode(w, r, &payload) {
		return
	}
	lt, err := h.Registry.Update(r.Context(), chi.URLParam(r, "typeID"), payload)
	if err != nil {
		writeError(w, r, err, "leave_type_update_failed")
		return
	}
	api.Success(w, lt, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteType(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.Delete(r.Context(), chi.URLParam(r, "typeID")); err != nil {
		writeError(w, r, err, "leave_type_delete_failed")
		return
	}
	api.Success(w, map[string]string{"status": "deactivated"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMyBalances(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	balances, err := h.Service.MyBalances(r.Context(), user, year)
	if err != nil {
		writeError(w, r, err, "leave_balances_failed")
		return
	}
	api.Success(w, balances, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeeBalances(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	employeeID := employee.ID(chi.URLParam(r, "employeeID"))
	balances, err := h.Service.EmployeeBalances(r.Context(), user, employeeID, year)
	if err != nil {
		writeError(w, r, err, "leave_balances_failed")
		return
	}
	api.Success(w, balances, middleware.GetRequestID(r.Context()))
}

type allocateRequest struct {
	EmployeeID  string   `json:"employeeId"`
	LeaveTypeID string   `json:"leaveTypeId"`
	Year        int      `json:"year"`
	Days        float64  `json:"days"`
	CarryOver   *float64 `json:"carryOver"`
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var payload allocateRequest
	if !decode(w, r, &payload) {
		return
	}
	validator := shared.NewValidator()
	validator.Required("employeeId", payload.EmployeeID, "is required")
	validator.Required("leaveTypeId", payload.LeaveTypeID, "is required")
	if payload.Days < 0 {
		validator.Add("days", "must not be negative")
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	balance, err := h.Service.Allocate(r.Context(), leave.AllocateInput{
		EmployeeID:  employee.ID(payload.EmployeeID),
		LeaveTypeID: payload.LeaveTypeID,
		Year:        payload.Year,
		Days:        payload.Days,
		CarryOver:   payload.CarryOver,
	})
	if err != nil {
		writeError(w, r, err, "leave_allocate_failed")
		return
	}
	api.Success(w, balance, middleware.GetRequestID(r.Context()))
}

type rolloverRequest struct {
	Year int `json:"year"`
}

func (h *Handler) handleRollover(w http.ResponseWriter, r *http.Request) {
	var payload rolloverRequest
	if r.ContentLength != 0 && !decode(w, r, &payload) {
		return
	}
	run := func(runCtx context.Context) (any, error) {
		return h.Service.Rollover(runCtx, payload.Year)
	}

	var result any
	var err error
	if h.Jobs != nil {
		result, err = h.Jobs.RunNow(r.Context(), jobs.JobLeaveRollover, run)
	} else {
		result, err = run(r.Context())
	}
	if err != nil {
		writeError(w, r, err, "leave_rollover_failed")
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportBalances(w http.ResponseWriter, r *http.Request) {
	year, ok := parseYear(w, r)
	if !ok {
		return
	}
	rows, err := h.Service.ExportRows(r.Context(), year)
	if err != nil {
		writeError(w, r, err, "leave_export_failed")
		return
	}
	var buf bytes.Buffer
	if err := leave.WriteBalancesXLSX(&buf, rows); err != nil {
		writeError(w, r, err, "leave_export_failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leave-balances-%d.xlsx", year))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("leave export write failed", "err", err)
	}
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	statuses, ok := parseStatuses(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 100, 500)
	result, err := h.Service.List(r.Context(), user, statuses, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "leave_requests_failed")
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	api.Success(w, requestsOrEmpty(result.Requests), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	result, err := h.Service.Pending(r.Context(), user, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "leave_requests_failed")
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	api.Success(w, requestsOrEmpty(result.Requests), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	req, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, r, err, "leave_request_failed")
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRequestSlip(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	req, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, r, err, "leave_request_failed")
		return
	}
	pdf, err := leave.RenderSlip(req)
	if err != nil {
		writeError(w, r, err, "leave_slip_failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=leave-"+req.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		slog.Warn("leave slip write failed", "requestId", req.ID, "err", err)
	}
}

type submitRequest struct {
	LeaveTypeID  string `json:"leaveTypeId"`
	Reason       string `json:"reason"`
	SupervisorID string `json:"supervisorId"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	OccurredOn   string `json:"occurredOn"`
	IsOpenEnded  bool   `json:"isOpenEnded"`
	ClosedOn     string `json:"closedOn"`
}

func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload submitRequest
	if !decode(w, r, &payload) {
		return
	}

	validator := shared.NewValidator()
	validator.Required("leaveTypeId", payload.LeaveTypeID, "is required")
	validator.Required("reason", payload.Reason, "is required")
	start := optionalDate(validator, "startDate", payload.StartDate)
	end := optionalDate(validator, "endDate", payload.EndDate)
	occurred := optionalDate(validator, "occurredOn", payload.OccurredOn)
	closed := optionalDate(validator, "closedOn", payload.ClosedOn)
	if start != nil && end != nil {
		validator.DateOrder("startDate", *start, "endDate", *end)
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	req, err := h.Service.Submit(r.Context(), user, leave.SubmitInput{
		LeaveTypeID:  payload.LeaveTypeID,
		Reason:       payload.Reason,
		SupervisorID: employee.ID(payload.SupervisorID),
		StartDate:    start,
		EndDate:      end,
		OccurredOn:   occurred,
		IsOpenEnded:  payload.IsOpenEnded,
		ClosedOn:     closed,
	})
	if err != nil {
		writeError(w, r, err, "leave_request_create_failed")
		return
	}
	api.Created(w, req, middleware.GetRequestID(r.Context()))
}

type updateRequest struct {
	Reason       *string `json:"reason"`
	SupervisorID *string `json:"supervisorId"`
	StartDate    *string `json:"startDate"`
	EndDate      *string `json:"endDate"`
	OccurredOn   *string `json:"occurredOn"`
	IsOpenEnded  *bool   `json:"isOpenEnded"`
	ClosedOn     *string `json:"closedOn"`
}

func (h *Handler) handleUpdateRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload updateRequest
	if !decode(w, r, &payload) {
		return
	}

	validator := shared.NewValidator()
	in := leave.UpdateInput{Reason: payload.Reason, IsOpenEnded: payload.IsOpenEnded}
	if payload.Reason != nil && strings.TrimSpace(*payload.Reason) == "" {
		validator.Add("reason", "must not be empty")
	}
	if payload.SupervisorID != nil {
		id := employee.ID(strings.TrimSpace(*payload.SupervisorID))
		in.SupervisorID = &id
	}
	if payload.StartDate != nil {
		in.StartDate = optionalDate(validator, "startDate", *payload.StartDate)
	}
	if payload.EndDate != nil {
		in.EndDate = optionalDate(validator, "endDate", *payload.EndDate)
	}
	if payload.OccurredOn != nil {
		in.OccurredOn = optionalDate(validator, "occurredOn", *payload.OccurredOn)
	}
	if payload.ClosedOn != nil {
		in.ClosedOn = optionalDate(validator, "closedOn", *payload.ClosedOn)
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	req, err := h.Service.Update(r.Context(), user, chi.URLParam(r, "requestID"), in)
	if err != nil {
		writeError(w, r, err, "leave_request_update_failed")
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	req, err := h.Service.Cancel(r.Context(), user, chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, r, err, "leave_request_cancel_failed")
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

type decideRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (h *Handler) handleDecideRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload decideRequest
	if !decode(w, r, &payload) {
		return
	}
	validator := shared.NewValidator()
	validator.Required("status", payload.Status, "is required")
	validator.Enum("status", payload.Status, []string{string(leave.DecisionApproved), string(leave.DecisionRejected)}, "must be approved or rejected")
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	decision := leave.Decision(strings.ToLower(strings.TrimSpace(payload.Status)))
	req, err := h.Service.Decide(r.Context(), user, chi.URLParam(r, "requestID"), decision, strings.TrimSpace(payload.Comment))
	if err != nil {
		writeError(w, r, err, "leave_request_decide_failed")
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

type closeRequest struct {
	ClosedOn string `json:"closedOn"`
}

func (h *Handler) handleCloseRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload closeRequest
	if !decode(w, r, &payload) {
		return
	}
	validator := shared.NewValidator()
	closedOn, _ := validator.Date("closedOn", payload.ClosedOn)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	req, err := h.Service.CloseOpenEnded(r.Context(), user, chi.URLParam(r, "requestID"), closedOn)
	if err != nil {
		writeError(w, r, err, "leave_request_close_failed")
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

type undoRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) handleUndoFinal(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload undoRequest
	if r.ContentLength != 0 && !decode(w, r, &payload) {
		return
	}
	req, err := h.Service.UndoFinal(r.Context(), user, chi.URLParam(r, "requestID"), strings.TrimSpace(payload.Comment))
	if err != nil {
		writeError(w, r, err, "leave_request_undo_failed")
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

func optionalDate(v *shared.Validator, field, raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, ok := v.Date(field, raw)
	if !ok {
		return nil
	}
	day := leave.DateOnly(parsed)
	return &day
}

func parseYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("year"))
	if raw == "" {
		return time.Now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "year", Reason: "must be a four digit year"}})
		return 0, false
	}
	return year, true
}

func parseStatuses(w http.ResponseWriter, r *http.Request) ([]leave.Status, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, true
	}
	var out []leave.Status
	for _, part := range strings.Split(raw, ",") {
		status := leave.Status(strings.TrimSpace(part))
		if status == "" {
			continue
		}
		if !leave.ValidStatus(status) {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "status", Reason: "unknown status " + string(status)}})
			return nil, false
		}
		out = append(out, status)
	}
	return out, true
}

func requestsOrEmpty(requests []leave.Request) []leave.Request {
	if requests == nil {
		return []leave.Request{}
	}
	return requests
}
