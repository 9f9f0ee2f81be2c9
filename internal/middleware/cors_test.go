package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCORS(origins []string, method, origin string) *httptest.ResponseRecorder {
	h := CORS(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/chat", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORSExplicitOrigin(t *testing.T) {
	rec := serveCORS([]string{"https://quest.example.com"}, http.MethodPost, "https://quest.example.com")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://quest.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials for explicit origin, got %q", got)
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	rec := serveCORS([]string{"*"}, http.MethodGet, "https://anywhere.example")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("wildcard must not allow credentials, got %q", got)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	rec := serveCORS([]string{"https://quest.example.com"}, http.MethodGet, "https://evil.example")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected Allow-Origin %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("request should still reach the handler, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := serveCORS([]string{"*"}, http.MethodOptions, "https://quest.example.com")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Fatal("expected Allow-Methods on preflight")
	}
}
