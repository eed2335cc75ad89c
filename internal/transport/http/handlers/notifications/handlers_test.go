package notificationshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrerp/internal/domain/auth"
	"hrerp/internal/domain/notifications"
	"hrerp/internal/transport/http/middleware"
)

const testSecret = "notifications-secret"

type memoryStore struct {
	items []notifications.Notification
	owner map[string]auth.UserID
}

func (m *memoryStore) CreateNotification(_ context.Context, userID auth.UserID, ntype, title, body string, payload map[string]any) error {
	id := "n" + strconv.Itoa(len(m.items)+1)
	m.items = append(m.items, notifications.Notification{ID: id, Type: ntype, Title: title, Body: body, Payload: payload})
	m.owner[id] = userID
	return nil
}

func (m *memoryStore) visible(userID auth.UserID, unreadOnly bool) []notifications.Notification {
	var out []notifications.Notification
	for _, n := range m.items {
		if m.owner[n.ID] == userID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out
}

func (m *memoryStore) ListNotifications(_ context.Context, userID auth.UserID, unreadOnly bool, _, _ int) ([]notifications.Notification, error) {
	return m.visible(userID, unreadOnly), nil
}

func (m *memoryStore) CountNotifications(_ context.Context, userID auth.UserID, unreadOnly bool) (int, error) {
	return len(m.visible(userID, unreadOnly)), nil
}

func (m *memoryStore) MarkRead(_ context.Context, userID auth.UserID, id string) error {
	for i, n := range m.items {
		if n.ID == id && m.owner[id] == userID {
			now := time.Now()
			m.items[i].ReadAt = &now
			return nil
		}
	}
	return notifications.ErrNotFound
}

func (m *memoryStore) MarkAllRead(_ context.Context, userID auth.UserID) (int64, error) {
	var n int64
	for i, item := range m.items {
		if m.owner[item.ID] == userID && item.ReadAt == nil {
			now := time.Now()
			m.items[i].ReadAt = &now
			n++
		}
	}
	return n, nil
}

func TestNotificationRoutes(t *testing.T) {
	store := &memoryStore{owner: map[string]auth.UserID{}}
	svc := notifications.New(store, nil, "")
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, "u1", "leave_approved", map[string]any{"leaveTypeName": "Annual"}))
	require.NoError(t, svc.Create(ctx, "u1", "leave_rejected", map[string]any{"leaveTypeName": "Annual"}))
	require.NoError(t, svc.Create(ctx, "u2", "leave_submitted", nil))

	r := chi.NewRouter()
	r.Use(middleware.Auth(testSecret))
	NewHandler(svc).RegisterRoutes(r)
	token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: "u1", RoleName: auth.RoleEmployee}, time.Hour)
	require.NoError(t, err)

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/notifications")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/notifications/n1/read").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/notifications/n3/read").Code)

	rec = do(http.MethodGet, "/notifications/unread-count")
	var env struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, 1, env.Data["unread"])

	rec = do(http.MethodPost, "/notifications/read-all")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated":1`)

	rec = do(http.MethodGet, "/notifications?unread=true")
	assert.Equal(t, "0", rec.Header().Get("X-Total-Count"))
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	anon := httptest.NewRecorder()
	r.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, anon.Code)
}
