package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		want       string
		wantErr    bool
		wantMissing bool
	}{
		{name: "valid bearer", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "missing header", header: "", wantErr: true, wantMissing: true},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "no token", header: "Bearer ", wantErr: true},
		{name: "no separator", header: "Bearerabc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			got, err := BearerToken(r)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantMissing, errors.Is(err, ErrMissingAuthorization))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name     string
		body     string
		maxBytes int64
		wantErr  bool
	}{
		{name: "valid object", body: `{"name":"x"}`},
		{name: "malformed", body: `{"name":`, wantErr: true},
		{name: "trailing data", body: `{"name":"x"} {"name":"y"}`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
		{name: "too large", body: `{"name":"` + strings.Repeat("a", 64) + `"}`, maxBytes: 16, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var dst payload
			err := DecodeJSON(w, r, tt.maxBytes, &dst)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", dst.Name)
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, remoteAddr: "10.0.0.1:1234", want: "203.0.113.195"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remoteAddr: "10.0.0.1:1234", want: "198.51.100.7"},
		{name: "remote addr", remoteAddr: "10.0.0.1:1234", want: "10.0.0.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}

func TestParseIntParam(t *testing.T) {
	assert.Equal(t, 10, ParseIntParam("10", 5))
	assert.Equal(t, 5, ParseIntParam("", 5))
	assert.Equal(t, 5, ParseIntParam("abc", 5))
	assert.Equal(t, -1, ParseIntParam("-1", 5))
}
