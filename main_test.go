package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestRouter(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"healthy", http.MethodGet, "/healthz", nil, http.StatusOK, `"healthy"`},
		{"unhealthy", http.MethodGet, "/healthz", errors.New("database is closed"), http.StatusServiceUnavailable, `"unhealthy"`},
		{"head health", http.MethodHead, "/healthz", nil, http.StatusOK, ""},
		{"metrics", http.MethodGet, "/metrics", nil, http.StatusOK, "asset_store_"},
		{"version", http.MethodGet, "/version", nil, http.StatusOK, `"goVersion"`},
		{"wrong method", http.MethodPost, "/healthz", nil, http.StatusMethodNotAllowed, ""},
		{"unknown", http.MethodGet, "/api/assets", nil, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(fakePinger{err: tt.pingErr})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	versionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["version"] == "" || info["os"] == "" {
		t.Errorf("version response = %v, want version and os", info)
	}
}
