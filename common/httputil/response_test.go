package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		data   any
		want   string
	}{
		{name: "map", status: http.StatusAccepted, data: map[string]string{"message": "ok"}, want: `{"message":"ok"}`},
		{name: "struct", status: http.StatusCreated, data: struct {
			ID string `json:"id"`
		}{"123"}, want: `{"id":"123"}`},
		{name: "slice", status: http.StatusOK, data: []int{1, 2}, want: `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.status, tt.data)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusUnauthorized, "Authorization header missing")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Authorization header missing"}`, w.Body.String())
}

func TestWriteFieldError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteFieldError(w, http.StatusBadRequest, "Invalid event format", []string{"name", "body"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Invalid event format", resp.Error)
	assert.Equal(t, []string{"name", "body"}, resp.Fields)
}
