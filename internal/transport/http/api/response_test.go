package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailWritesErrorString(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, http.StatusForbidden, "not_authorized_approver", "not authorized to approve this request", "req-1")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "not authorized to approve this request", body["error"])
	assert.Equal(t, "not_authorized_approver", body["code"])
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "req-1", body["requestId"])
}

func TestCreatedWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]string{"id": "x"}, "")

	assert.Equal(t, http.StatusCreated, rec.Code)
	var body Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Empty(t, body.Error)
	assert.Equal(t, map[string]any{"id": "x"}, body.Data)
}
