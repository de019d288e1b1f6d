package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const corsTestOrigin = "https://campushub.example.com"

// corsRequest はCORSミドルウェア配下にOriginヘッダー付きリクエストを送る。
func corsRequest(t *testing.T, method, origin string) (*http.Response, bool) {
	t.Helper()

	mw := NewCORSMiddleware(corsTestOrigin)
	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/channels", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Result(), handlerCalled
}

func TestCORSMiddleware_AllowedOrigin_SetsHeaders(t *testing.T) {
	resp, called := corsRequest(t, http.MethodGet, corsTestOrigin)

	if !called {
		t.Fatal("next handler should be called for GET request")
	}

	tests := []struct {
		header string
		want   string
	}{
		{"Access-Control-Allow-Origin", corsTestOrigin},
		{"Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS"},
		{"Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token, Last-Event-ID"},
		{"Access-Control-Allow-Credentials", "true"},
		{"Access-Control-Max-Age", "86400"},
		{"Vary", "Origin"},
	}
	for _, tt := range tests {
		if got := resp.Header.Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestCORSMiddleware_UnknownOrigin_NoCORSHeaders(t *testing.T) {
	resp, called := corsRequest(t, http.MethodGet, "https://evil.example.net")

	if !called {
		t.Fatal("next handler should still be called; CORS enforcement is the browser's job")
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for unknown origin", got)
	}
	// キャッシュ汚染を避けるためVaryは常に付与する
	if got := resp.Header.Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want %q", got, "Origin")
	}
}

func TestCORSMiddleware_NoOriginHeader_NoCORSHeaders(t *testing.T) {
	resp, called := corsRequest(t, http.MethodGet, "")

	if !called {
		t.Fatal("next handler should be called for same-origin request")
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty without Origin header", got)
	}
}

func TestCORSMiddleware_Preflight_Returns204(t *testing.T) {
	resp, called := corsRequest(t, http.MethodOptions, corsTestOrigin)

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if called {
		t.Error("next handler should not be called for OPTIONS preflight")
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != corsTestOrigin {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, corsTestOrigin)
	}
}

func TestCORSMiddleware_POSTRequest_PassesThroughWithHeaders(t *testing.T) {
	resp, called := corsRequest(t, http.MethodPost, corsTestOrigin)

	if !called {
		t.Error("next handler should be called for POST request")
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != corsTestOrigin {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, corsTestOrigin)
	}
}
