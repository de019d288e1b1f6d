package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/campushub/internal/model"
)

// logEntry はロギングミドルウェア配下でハンドラーを実行し、
// 出力されたJSONログを1件パースして返す。
func logEntry(t *testing.T, handlerFn http.HandlerFunc, mutate func(*http.Request)) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	handler := NewLoggingMiddleware(logger)(handlerFn)

	req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func writeOK(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// TestLoggingMiddleware_LogsRequestFields はリクエストログに必要なフィールドが含まれることを検証する。
func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	entry := logEntry(t, writeOK, nil)

	if entry["method"] != "GET" {
		t.Errorf("method = %q, want %q", entry["method"], "GET")
	}
	if entry["path"] != "/api/channels" {
		t.Errorf("path = %q, want %q", entry["path"], "/api/channels")
	}
	if status, ok := entry["status"].(float64); !ok || status != 200 {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if duration, ok := entry["duration_ms"].(float64); !ok || duration < 0 {
		t.Errorf("duration_ms = %v, should be >= 0", entry["duration_ms"])
	}
	if _, ok := entry["bytes"]; !ok {
		t.Error("expected 'bytes' field in log entry")
	}
}

// TestLoggingMiddleware_UserID は認証済みの場合のみユーザーIDがログに含まれることを検証する。
func TestLoggingMiddleware_UserID(t *testing.T) {
	entry := logEntry(t, writeOK, func(req *http.Request) {
		ctx := ContextWithAccount(req.Context(), &model.UserAccount{UID: "user-123"})
		*req = *req.WithContext(ctx)
	})
	if entry["user_id"] != "user-123" {
		t.Errorf("user_id = %q, want %q", entry["user_id"], "user-123")
	}

	entry = logEntry(t, writeOK, nil)
	if val, ok := entry["user_id"]; ok && val != "" {
		t.Errorf("user_id should be absent for unauthenticated request, got %q", val)
	}
}

// TestLoggingMiddleware_CapturesStatusCode はステータスコードごとのキャプチャと
// ログレベルの切り替えを検証する。
func TestLoggingMiddleware_CapturesStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantLevel  string
	}{
		{"200 OK", http.StatusOK, "INFO"},
		{"201 Created", http.StatusCreated, "INFO"},
		{"400 Bad Request", http.StatusBadRequest, "WARN"},
		{"404 Not Found", http.StatusNotFound, "WARN"},
		{"500 Internal Server Error", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := logEntry(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}, nil)

			if status := int(entry["status"].(float64)); status != tt.statusCode {
				t.Errorf("status = %d, want %d", status, tt.statusCode)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %q, want %q", entry["level"], tt.wantLevel)
			}
		})
	}
}

// TestLoggingMiddleware_ImplicitStatusAndBytes はWriteHeaderを呼ばない書き込みで
// 暗黙の200と送信バイト数が記録されることを検証する。
func TestLoggingMiddleware_ImplicitStatusAndBytes(t *testing.T) {
	entry := logEntry(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}, nil)

	if status := int(entry["status"].(float64)); status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
	if b := int(entry["bytes"].(float64)); b != len("hello") {
		t.Errorf("bytes = %d, want %d", b, len("hello"))
	}
}

// TestLoggingMiddleware_PreservesFlusher はラップ後もSSEハンドラーが
// http.Flusherを利用できることを検証する。
func TestLoggingMiddleware_PreservesFlusher(t *testing.T) {
	flushed := false
	entry := logEntry(t, func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped ResponseWriter should implement http.Flusher")
		}
		w.Write([]byte("data: {}\n\n"))
		f.Flush()
		flushed = true
	}, nil)

	if !flushed {
		t.Fatal("Flush was not reached")
	}
	if status := int(entry["status"].(float64)); status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
}
