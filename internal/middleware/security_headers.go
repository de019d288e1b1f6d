package middleware

import "net/http"

// securityHeaders はAPI全体に付与するセキュリティ関連ヘッダー。
// 本サーバーはJSON APIとSSEのみを配信するため、フレーム埋め込みと
// コンテンツタイプ推測を一律に拒否する。
var securityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
	"Permissions-Policy":     "camera=(), microphone=(), geolocation=()",
	"Cache-Control":          "no-store",
}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for name, value := range securityHeaders {
				w.Header().Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
