package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// responseRecorder はhttp.ResponseWriterをラップし、ステータスコードと
// 送信バイト数を記録する。SSEハンドラーが動作できるよう、元のWriterが
// http.Flusherを実装している場合はFlushを委譲する。
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.written {
		rr.statusCode = code
		rr.written = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.written {
		rr.statusCode = http.StatusOK
		rr.written = true
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、bytes、user_id（認証済みの場合）を含む。
// ログレベルはステータスコードに応じて変える（5xx=Error、4xx=Warn、それ以外=Info）。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
				slog.Int("bytes", rec.bytes),
			}

			// 認証済みアカウントがコンテキストにある場合はユーザーIDを追加
			if account, err := AccountFromContext(r.Context()); err == nil {
				args = append(args, slog.String("user_id", account.UID))
			}

			level := slog.LevelInfo
			switch {
			case rec.statusCode >= 500:
				level = slog.LevelError
			case rec.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
