package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticChecker struct {
	check Check
}

func (c staticChecker) Check() Check { return c.check }

func TestWorseStatus(t *testing.T) {
	cases := []struct {
		current, candidate, want Status
	}{
		{StatusHealthy, StatusHealthy, StatusHealthy},
		{StatusHealthy, StatusDegraded, StatusDegraded},
		{StatusDegraded, StatusHealthy, StatusDegraded},
		{StatusHealthy, StatusUnhealthy, StatusUnhealthy},
		{StatusDegraded, StatusUnhealthy, StatusUnhealthy},
		{StatusUnhealthy, StatusHealthy, StatusUnhealthy},
	}

	for _, tc := range cases {
		if got := worseStatus(tc.current, tc.candidate); got != tc.want {
			t.Errorf("worseStatus(%s, %s) = %s, want %s", tc.current, tc.candidate, got, tc.want)
		}
	}
}

func TestSimpleChecker(t *testing.T) {
	ok := NewSimpleChecker("storage", func() error { return nil })
	check := ok.Check()
	if check.Status != StatusHealthy || check.Name != "storage" || check.Message != "" {
		t.Errorf("unexpected healthy check: %+v", check)
	}

	failing := NewSimpleChecker("redis", func() error { return errors.New("connection refused") })
	check = failing.Check()
	if check.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy status, got %s", check.Status)
	}
	if check.Message != "connection refused" {
		t.Errorf("unexpected message: %s", check.Message)
	}
}

func TestHandlerServeHTTP(t *testing.T) {
	handler := NewHandler("1.2.3")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}

	var response Response
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if response.Service != "shopcore" {
		t.Errorf("unexpected service: %s", response.Service)
	}
	if response.Status != StatusHealthy {
		t.Errorf("unexpected overall status: %s", response.Status)
	}
	if response.Version != "1.2.3" {
		t.Errorf("unexpected version: %s", response.Version)
	}
	if len(response.Checks) != 1 {
		t.Errorf("unexpected checks: %+v", response.Checks)
	}
}

func TestHandlerServeHTTPUnhealthy(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))
	handler.RegisterChecker("kafka", NewSimpleChecker("kafka", func() error { return errors.New("broker down") }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var response Response
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if response.Status != StatusUnhealthy {
		t.Errorf("unexpected overall status: %s", response.Status)
	}
}

func TestHandlerDegradedStaysServing(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("redis", staticChecker{Check{Name: "redis", Status: StatusDegraded}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded must keep 200 on /healthz, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded must stay ready, got %d", rec.Code)
	}
}

func TestReadinessHandlerUnhealthy(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec.Body.String() != "not ready" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRegisterCheckerReplaces(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return errors.New("down") }))
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))

	rec := httptest.NewRecorder()
	handler.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("replacement checker must win, got %d", rec.Code)
	}
}
