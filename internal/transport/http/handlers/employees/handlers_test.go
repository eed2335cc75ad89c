package employeehandler

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
	"hrerp/internal/domain/leave/leavetest"
	"hrerp/internal/transport/http/middleware"
)

const testSecret = "employee-handler-secret"

func serve(t *testing.T, f *leavetest.Fixture, who auth.Identity, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(middleware.Auth(testSecret))
	NewHandler(f.Directory, f.Service).RegisterRoutes(r)

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if who.UserID != "" {
		token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: string(who.UserID), RoleName: who.Role}, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateEmployeeOnboardsLedger(t *testing.T) {
	f := leavetest.NewFixture()
	body := `{"email":"New.Hire@example.com","password":"password123","name":"Nia New","managerId":"e-mgr"}`

	rec := serve(t, f, f.Admin, http.MethodPost, "/employees", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var env struct {
		Data createEmployeeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "new.hire@example.com", env.Data.Employee.Email)
	assert.Equal(t, 2, env.Data.BalancesAllocated)

	rows, err := f.Service.EmployeeBalances(t.Context(), f.Admin, env.Data.Employee.ID, leavetest.Now.Year())
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rec = serve(t, f, f.Admin, http.MethodPost, "/employees", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateEmployeeRejects(t *testing.T) {
	f := leavetest.NewFixture()
	tests := []struct {
		name string
		who  auth.Identity
		body string
		want int
	}{
		{"not admin", f.Manager, `{}`, http.StatusForbidden},
		{"malformed", f.Admin, `{`, http.StatusBadRequest},
		{"short password", f.Admin, `{"email":"a@example.com","password":"short","name":"A"}`, http.StatusBadRequest},
		{"bad role", f.Admin, `{"email":"a@example.com","password":"password123","name":"A","role":"owner"}`, http.StatusBadRequest},
		{"unknown manager", f.Admin, `{"email":"a@example.com","password":"password123","name":"A","managerId":"e-none"}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, f, tc.who, http.MethodPost, "/employees", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestEmployeeLookups(t *testing.T) {
	f := leavetest.NewFixture()

	rec := serve(t, f, f.Employee, http.MethodGet, "/employees/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"e-emp"`)

	assert.Equal(t, http.StatusOK, serve(t, f, f.Employee, http.MethodGet, "/employees/e-emp", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(t, f, f.Employee, http.MethodGet, "/employees/e-mgr", "").Code)
	assert.Equal(t, http.StatusOK, serve(t, f, f.Manager, http.MethodGet, "/employees/e-emp", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, f, f.Admin, http.MethodGet, "/employees/e-none", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(t, f, f.Employee, http.MethodGet, "/employees", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, f, auth.Identity{}, http.MethodGet, "/employees/me", "").Code)

	rec = serve(t, f, f.Admin, http.MethodGet, "/employees", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Len(t, env.Data, 4)
}
