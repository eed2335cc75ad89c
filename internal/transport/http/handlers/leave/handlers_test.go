package leavehandler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/leave"
	"hrerp/internal/domain/leave/leavetest"
	"hrerp/internal/transport/http/middleware"
)

const testSecret = "leave-handler-secret"

type rig struct {
	t      *testing.T
	f      *leavetest.Fixture
	router http.Handler
}

func newRig(t *testing.T) *rig {
	t.Helper()
	f := leavetest.NewFixture()
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret))
	NewHandler(f.Service, f.Registry, nil).RegisterRoutes(r)
	return &rig{t: t, f: f, router: r}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (g *rig) do(who auth.Identity, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	g.t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if who.UserID != "" {
		token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: string(who.UserID), RoleName: who.Role, ApprovalLevel: who.ApprovalLevel}, time.Hour)
		require.NoError(g.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(g.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeRequest(t *testing.T, env envelope) leave.Request {
	t.Helper()
	var req leave.Request
	require.NoError(t, json.Unmarshal(env.Data, &req))
	return req
}

func TestDatedRequestApprovalFlow(t *testing.T) {
	g := newRig(t)
	key := g.f.Allocate(g.f.EmployeeEmp, 2026, 10)

	rec, env := g.do(g.f.Employee, http.MethodPost, "/time-off/requests",
		`{"leaveTypeId":"`+g.f.Annual.ID+`","reason":"family trip","startDate":"2026-03-09","endDate":"2026-03-11"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeRequest(t, env)
	assert.Equal(t, leave.StatusSubmitted, created.Status)
	require.NotNil(t, created.Dated)
	assert.Equal(t, 3.0, created.Dated.TotalDays)
	assert.Equal(t, 3.0, g.f.Balance(key).Pending)

	approvePath := "/time-off/requests/" + created.ID + "/approve"
	rec, env = g.do(g.f.Manager, http.MethodPost, approvePath, `{"status":"approved","comment":"ok"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, leave.StatusApprovedLvl1, decodeRequest(t, env).Status)

	rec, env = g.do(g.f.Manager, http.MethodPost, approvePath, `{"status":"approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "final_approval_admin_only", env.Code)

	rec, env = g.do(g.f.Admin, http.MethodPost, approvePath, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, leave.StatusApprovedFinal, decodeRequest(t, env).Status)

	rec, env = g.do(g.f.Employee, http.MethodGet, "/time-off/balances/me?year=2026", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var balances []leave.Balance
	require.NoError(t, json.Unmarshal(env.Data, &balances))
	require.Len(t, balances, 1)
	assert.Equal(t, 3.0, balances[0].Used)
	assert.Zero(t, balances[0].Pending)

	rec, env = g.do(g.f.Admin, http.MethodPost, "/time-off/requests/"+created.ID+"/undo-final", `{"comment":"booked twice"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, leave.StatusApprovedLvl1, decodeRequest(t, env).Status)
	assert.Equal(t, 3.0, g.f.Balance(key).Pending)
	assert.Zero(t, g.f.Balance(key).Used)
}

func TestRequestErrorsMapToStatusCodes(t *testing.T) {
	g := newRig(t)
	g.f.Allocate(g.f.EmployeeEmp, 2026, 1)

	tests := []struct {
		name   string
		who    auth.Identity
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"anonymous", auth.Identity{}, http.MethodGet, "/time-off/requests", "", http.StatusUnauthorized, "unauthorized"},
		{"malformed body", g.f.Employee, http.MethodPost, "/time-off/requests", `{`, http.StatusBadRequest, "invalid_payload"},
		{"bad date", g.f.Employee, http.MethodPost, "/time-off/requests", `{"leaveTypeId":"` + g.f.Annual.ID + `","reason":"x","startDate":"03/09/2026"}`, http.StatusBadRequest, "validation_error"},
		{"insufficient balance", g.f.Employee, http.MethodPost, "/time-off/requests", `{"leaveTypeId":"` + g.f.Annual.ID + `","reason":"x","startDate":"2026-03-09","endDate":"2026-03-11"}`, http.StatusBadRequest, "insufficient_balance"},
		{"unknown type", g.f.Employee, http.MethodPost, "/time-off/requests", `{"leaveTypeId":"missing","reason":"x","startDate":"2026-03-09","endDate":"2026-03-09"}`, http.StatusNotFound, "leave_type_not_found"},
		{"unknown request", g.f.Admin, http.MethodGet, "/time-off/requests/missing", "", http.StatusNotFound, "not_found"},
		{"bad decision", g.f.Manager, http.MethodPost, "/time-off/requests/missing/approve", `{"status":"maybe"}`, http.StatusBadRequest, "validation_error"},
		{"employee creates type", g.f.Employee, http.MethodPost, "/time-off/leave-types", `{"name":"Study"}`, http.StatusForbidden, "forbidden"},
		{"duplicate type", g.f.Admin, http.MethodPost, "/time-off/leave-types", `{"name":"annual"}`, http.StatusConflict, "duplicate_leave_type"},
		{"outsider balances", g.f.Outsider, http.MethodGet, "/time-off/balances/employee/e-emp", "", http.StatusForbidden, "forbidden"},
		{"bad year", g.f.Employee, http.MethodGet, "/time-off/balances/me?year=26x", "", http.StatusBadRequest, "validation_error"},
		{"bad status filter", g.f.Employee, http.MethodGet, "/time-off/requests?status=bogus", "", http.StatusBadRequest, "validation_error"},
		{"undo by approver", g.f.Manager, http.MethodPost, "/time-off/requests/missing/undo-final", "", http.StatusForbidden, "forbidden"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := g.do(tc.who, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, env.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestDecidedRequestIsNotActionable(t *testing.T) {
	g := newRig(t)
	g.f.Allocate(g.f.EmployeeEmp, 2026, 10)

	rec, env := g.do(g.f.Employee, http.MethodPost, "/time-off/requests",
		`{"leaveTypeId":"`+g.f.Annual.ID+`","reason":"trip","startDate":"2026-03-09","endDate":"2026-03-10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeRequest(t, env)

	approvePath := "/time-off/requests/" + created.ID + "/approve"
	rec, _ = g.do(g.f.Manager, http.MethodPost, approvePath, `{"status":"rejected","comment":"busy week"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = g.do(g.f.Manager, http.MethodPost, approvePath, `{"status":"approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "request_not_actionable", env.Code)

	rec, env = g.do(g.f.Employee, http.MethodPut, "/time-off/requests/"+created.ID, `{"reason":"another try"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "request_not_actionable", env.Code)
}

func TestBalancesReportRemaining(t *testing.T) {
	g := newRig(t)
	g.f.Allocate(g.f.EmployeeEmp, 2026, 10)

	rec, _ := g.do(g.f.Employee, http.MethodPost, "/time-off/requests",
		`{"leaveTypeId":"`+g.f.Annual.ID+`","reason":"trip","startDate":"2026-03-09","endDate":"2026-03-11"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = g.do(g.f.Employee, http.MethodGet, "/time-off/balances/me?year=2026", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remaining":7`)
}

func TestOpenEndedReportIsClosedByApprover(t *testing.T) {
	g := newRig(t)

	rec, env := g.do(g.f.Employee, http.MethodPost, "/time-off/requests",
		`{"leaveTypeId":"`+g.f.Sick.ID+`","reason":"flu","occurredOn":"2026-03-02","isOpenEnded":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeRequest(t, env)
	assert.Equal(t, leave.StatusReported, created.Status)

	closePath := "/time-off/requests/" + created.ID + "/close"
	rec, env = g.do(g.f.Employee, http.MethodPost, closePath, `{"closedOn":"2026-03-03"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = g.do(g.f.Manager, http.MethodPost, closePath, `{"closedOn":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Code)

	rec, env = g.do(g.f.Manager, http.MethodPost, closePath, `{"closedOn":"2026-03-03"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decodeRequest(t, env)
	require.NotNil(t, closed.Reported)
	assert.False(t, closed.Reported.IsOpenEnded)
	require.NotNil(t, closed.Reported.DurationDays)
	assert.Equal(t, 2.0, *closed.Reported.DurationDays)
}

func TestListUpdateAndCancel(t *testing.T) {
	g := newRig(t)
	key := g.f.Allocate(g.f.EmployeeEmp, 2026, 10)

	_, env := g.do(g.f.Employee, http.MethodPost, "/time-off/requests",
		`{"leaveTypeId":"`+g.f.Annual.ID+`","reason":"trip","startDate":"2026-03-09","endDate":"2026-03-09"}`)
	created := decodeRequest(t, env)

	rec, env := g.do(g.f.Employee, http.MethodPut, "/time-off/requests/"+created.ID, `{"endDate":"2026-03-10","reason":"longer trip"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeRequest(t, env)
	assert.Equal(t, "longer trip", updated.Reason)
	assert.Equal(t, 2.0, updated.Dated.TotalDays)
	assert.Equal(t, 2.0, g.f.Balance(key).Pending)

	rec, _ = g.do(g.f.Manager, http.MethodGet, "/time-off/requests/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec, _ = g.do(g.f.Outsider, http.MethodGet, "/time-off/requests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Total-Count"))
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	rec, _ = g.do(g.f.Employee, http.MethodGet, "/time-off/requests?status=submitted", "")
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec, env = g.do(g.f.Employee, http.MethodDelete, "/time-off/requests/"+created.ID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, leave.StatusCancelled, decodeRequest(t, env).Status)
	assert.Zero(t, g.f.Balance(key).Pending)

	rec, _ = g.do(g.f.Employee, http.MethodGet, "/time-off/requests/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveTypeAdministration(t *testing.T) {
	g := newRig(t)

	rec, env := g.do(g.f.Admin, http.MethodPost, "/time-off/leave-types", `{"name":"Study","defaultDays":3,"maxConsecutiveDays":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result leave.CreateTypeResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 4, result.AllocatedEmployees)

	rec, _ = g.do(g.f.Admin, http.MethodPut, "/time-off/leave-types/"+result.LeaveType.ID, `{"defaultDays":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = g.do(g.f.Admin, http.MethodDelete, "/time-off/leave-types/"+result.LeaveType.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = g.do(g.f.Employee, http.MethodGet, "/time-off/leave-types?includeInactive=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var visible []leave.LeaveType
	require.NoError(t, json.Unmarshal(env.Data, &visible))
	assert.Len(t, visible, 2)

	rec, _ = g.do(g.f.Employee, http.MethodGet, "/time-off/leave-types/"+result.LeaveType.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = g.do(g.f.Admin, http.MethodGet, "/time-off/leave-types/"+result.LeaveType.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBalanceAdministration(t *testing.T) {
	g := newRig(t)

	rec, env := g.do(g.f.Admin, http.MethodPost, "/time-off/balances/allocate",
		`{"employeeId":"e-emp","leaveTypeId":"`+g.f.Annual.ID+`","year":2026,"days":5,"carryOver":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bal leave.Balance
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	assert.Equal(t, 5.0, bal.Allocated)
	assert.Equal(t, 2.0, bal.CarryOver)

	rec, _ = g.do(g.f.Admin, http.MethodPost, "/time-off/balances/allocate", `{"days":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = g.do(g.f.Admin, http.MethodPost, "/time-off/balances/rollover", `{"year":2026}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary leave.RolloverSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 4, summary.EmployeesScanned)

	rec, _ = g.do(g.f.Manager, http.MethodGet, "/time-off/balances/employee/e-emp?year=2026", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = g.do(g.f.Admin, http.MethodGet, "/time-off/balances/export?year=2026", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leave-balances-2026.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec, _ = g.do(g.f.Employee, http.MethodGet, "/time-off/balances/export", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestSlip(t *testing.T) {
	g := newRig(t)
	g.f.Allocate(g.f.EmployeeEmp, 2026, 10)
	_, env := g.do(g.f.Employee, http.MethodPost, "/time-off/requests",
		`{"leaveTypeId":"`+g.f.Annual.ID+`","reason":"trip","startDate":"2026-03-09","endDate":"2026-03-09"}`)
	created := decodeRequest(t, env)

	rec, _ := g.do(g.f.Employee, http.MethodGet, "/time-off/requests/"+created.ID+"/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec, _ = g.do(g.f.Outsider, http.MethodGet, "/time-off/requests/"+created.ID+"/pdf", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
