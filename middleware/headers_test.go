package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mnehpets/httprpc/endpoint"
)

func runHeaders(t *testing.T, p *APIHeadersProcessor, req *http.Request) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	called := false
	err := p.Process(rec, req, func(w http.ResponseWriter, r *http.Request) error {
		called = true
		return nil
	})
	return rec, called, err
}

func TestAPIHeadersProcessor_Defaults(t *testing.T) {
	rec, called, err := runHeaders(t, NewAPIHeadersProcessor(nil), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	want := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"Referrer-Policy":           "no-referrer",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s: got %q want %q", k, got, v)
		}
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected CORS header %q", got)
	}
}

func TestAPIHeadersProcessor_NoHSTS(t *testing.T) {
	rec, _, _ := runHeaders(t, &APIHeadersProcessor{}, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("Strict-Transport-Security: got %q want empty", got)
	}
}

func TestAPIHeadersProcessor_CORS(t *testing.T) {
	tests := []struct {
		name        string
		cors        CORSConfig
		origin      string
		wantOrigin  string
		wantCreds   string
		wantExposed string
	}{
		{"listed origin", CORSConfig{AllowedOrigins: []string{"https://a.example"}}, "https://a.example", "https://a.example", "", RequestIDHeader},
		{"unlisted origin", CORSConfig{AllowedOrigins: []string{"https://a.example"}}, "https://evil.example", "", "", ""},
		{"wildcard", CORSConfig{AllowedOrigins: []string{"*"}}, "https://b.example", "*", "", RequestIDHeader},
		{"wildcard with credentials", CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, "https://b.example", "", "", ""},
		{"credentials", CORSConfig{AllowedOrigins: []string{"https://a.example"}, AllowCredentials: true}, "https://a.example", "https://a.example", "true", RequestIDHeader},
		{"exposed", CORSConfig{AllowedOrigins: []string{"*"}, ExposedHeaders: []string{"X-A", "X-B"}}, "https://b.example", "*", "", "X-A, X-B"},
		{"no origin", CORSConfig{AllowedOrigins: []string{"*"}}, "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			cors := tt.cors
			rec, called, err := runHeaders(t, NewAPIHeadersProcessor(&cors), req)
			if err != nil || !called {
				t.Fatalf("Process: err=%v called=%v", err, called)
			}
			h := rec.Header()
			if got := h.Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin: got %q want %q", got, tt.wantOrigin)
			}
			if got := h.Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Errorf("Allow-Credentials: got %q want %q", got, tt.wantCreds)
			}
			if got := h.Get("Access-Control-Expose-Headers"); got != tt.wantExposed {
				t.Errorf("Expose-Headers: got %q want %q", got, tt.wantExposed)
			}
			if got := h.Get("Vary"); got != "Origin" {
				t.Errorf("Vary: got %q want Origin", got)
			}
			if got := h.Get("Access-Control-Allow-Methods"); got != "" {
				t.Errorf("Allow-Methods on simple request: %q", got)
			}
		})
	}
}

func TestAPIHeadersProcessor_Preflight(t *testing.T) {
	p := NewAPIHeadersProcessor(&CORSConfig{AllowedOrigins: []string{"https://a.example"}, MaxAge: 600})
	req := httptest.NewRequest(http.MethodOptions, "/rpc/Items", nil)
	req.Header.Set("Origin", "https://a.example")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec, called, err := runHeaders(t, p, req)
	if called {
		t.Fatalf("preflight reached the endpoint")
	}
	if got := endpoint.StatusOf(err); got != http.StatusNoContent {
		t.Fatalf("status: got %d want %d", got, http.StatusNoContent)
	}
	want := map[string]string{
		"Access-Control-Allow-Origin":  "https://a.example",
		"Access-Control-Allow-Methods": "GET, POST",
		"Access-Control-Allow-Headers": "Accept, Content-Type, X-Request-ID",
		"Access-Control-Max-Age":       "600",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s: got %q want %q", k, got, v)
		}
	}
}
