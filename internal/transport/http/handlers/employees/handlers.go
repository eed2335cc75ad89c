package employeehandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/employee"
	"hrerp/internal/transport/http/api"
	"hrerp/internal/transport/http/middleware"
)

// Store is the employee persistence the handlers need.
type Store interface {
	employee.Directory
	employee.Creator
}

// Onboarder allocates the starting ledger rows for a new employee.
type Onboarder interface {
	Onboard(ctx context.Context, emp employee.Employee) (int, error)
}

type Handler struct {
	Store  Store
	Ledger Onboarder
}

func NewHandler(store Store, ledger Onboarder) *Handler {
	return &Handler{Store: store, Ledger: ledger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", h.handleMe)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleApprover)).Get("/", h.handleListEmployees)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreateEmployee)
		r.Get("/{employeeID}", h.handleGetEmployee)
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	emp, err := h.Store.EmployeeFor(r.Context(), user.UserID)
	if err != nil {
		h.fail(w, r, err, "employee_lookup_failed")
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	out, err := h.Store.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, err, "employee_list_failed")
		return
	}
	if out == nil {
		out = []employee.Employee{}
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	emp, err := h.Store.FindByID(r.Context(), employee.ID(chi.URLParam(r, "employeeID")))
	if err != nil {
		h.fail(w, r, err, "employee_lookup_failed")
		return
	}
	if !user.IsPrivileged() && emp.UserID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

type createEmployeeResponse struct {
	Employee          employee.Employee `json:"employee"`
	BalancesAllocated int               `json:"balancesAllocated"`
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var payload employee.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	emp, err := employee.Register(r.Context(), h.Store, payload)
	if err != nil {
		h.fail(w, r, err, "employee_create_failed")
		return
	}

	allocated := 0
	if h.Ledger != nil {
		// The profile exists either way; missing rows can be allocated later.
		allocated, err = h.Ledger.Onboard(r.Context(), emp)
		if err != nil {
			slog.Warn("employee onboarding allocation failed", "employeeId", emp.ID, "err", err)
		}
	}
	api.Created(w, createEmployeeResponse{Employee: emp, BalancesAllocated: allocated}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, employee.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, employee.ErrInvalidManager):
		api.Fail(w, http.StatusBadRequest, "invalid_manager", err.Error(), requestID)
	case errors.Is(err, employee.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", requestID)
	case errors.Is(err, employee.ErrDuplicateEmail):
		api.Fail(w, http.StatusConflict, "duplicate_email", err.Error(), requestID)
	default:
		slog.Error("employee handler failed", "code", code, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, "internal server error", requestID)
	}
}
