package healthsrv

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler_HealthyReturns200(t *testing.T) {
	h := Handler(func() bool { return true })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != `{"status":"healthy"}` {
		t.Errorf("body = %q, want healthy body", rec.Body.String())
	}
}

func TestHandler_UnhealthyReturns503(t *testing.T) {
	h := Handler(func() bool { return false })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Body.String() != `{"status":"unhealthy"}` {
		t.Errorf("body = %q, want unhealthy body", rec.Body.String())
	}
}
