package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"chatrelay/pkg/config"
)

func gatewayFor(t *testing.T, cfg SecConfig) (http.Handler, *string) {
	t.Helper()
	config.SetRuntime(&config.RuntimeConfig{})
	t.Cleanup(func() { config.SetRuntime(&config.RuntimeConfig{}) })

	var seenUser string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return GatewayMiddleware(cfg)(inner), &seenUser
}

func TestGatewayInjectsIdentityOnV1(t *testing.T) {
	h, seenUser := gatewayFor(t, SecConfig{})
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	r.Header.Set("X-User-ID", "alice")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if *seenUser != "alice" {
		t.Fatalf("identity not injected: %q", *seenUser)
	}
}

func TestGatewayRejectsAnonymousV1(t *testing.T) {
	h, _ := gatewayFor(t, SecConfig{})
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing identity, got %d", w.Code)
	}
}

func TestGatewaySkipsIdentityOutsideV1(t *testing.T) {
	h, seenUser := gatewayFor(t, SecConfig{})
	r := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("health must pass without identity, got %d", w.Code)
	}
	if *seenUser != "" {
		t.Fatalf("unexpected identity outside /v1: %q", *seenUser)
	}
}

func TestGatewayCORSPreflight(t *testing.T) {
	h, _ := gatewayFor(t, SecConfig{AllowedOrigins: []string{"https://app.example.com"}})
	r := httptest.NewRequest(http.MethodOptions, "/v1/peers", nil)
	r.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin header missing: %q", got)
	}

	// Disallowed origin gets no CORS headers.
	r = httptest.NewRequest(http.MethodOptions, "/v1/peers", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin echoed: %q", got)
	}
}

func TestGatewayIPWhitelist(t *testing.T) {
	h, _ := gatewayFor(t, SecConfig{IPWhitelist: []string{"10.0.0.1"}})
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	r.RemoteAddr = "192.0.2.7:4242"
	r.Header.Set("X-User-ID", "alice")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 off-whitelist, got %d", w.Code)
	}

	r = httptest.NewRequest("GET", "/v1/peers", nil)
	r.RemoteAddr = "10.0.0.1:4242"
	r.Header.Set("X-User-ID", "alice")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("whitelisted ip rejected: %d", w.Code)
	}
}

func TestGatewayRateLimitPerUser(t *testing.T) {
	h, _ := gatewayFor(t, SecConfig{RPS: 1, Burst: 2})

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		r := httptest.NewRequest("GET", "/v1/peers", nil)
		r.Header.Set("X-User-ID", "alice")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests rejected: %v", codes)
	}
	if codes[3] != http.StatusTooManyRequests {
		t.Fatalf("limit never hit: %v", codes)
	}

	// A different user holds an independent bucket.
	r := httptest.NewRequest("GET", "/v1/peers", nil)
	r.Header.Set("X-User-ID", "bob")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("second user throttled by first user's bucket: %d", w.Code)
	}
}
