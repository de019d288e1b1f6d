package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/middleware"
	"github.com/hitoshi/campushub/internal/news"
	"github.com/hitoshi/campushub/internal/question"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	Identity   *identity.Service
	AuthConfig AuthHandlerConfig

	// 同期ストリーム依存
	Store    store.Store
	Recorder syncstate.Recorder

	// サニタイザ・フィード検出
	QuestionSanitizer question.Sanitizer
	NewsSanitizer     news.Sanitizer
	NewsDetector      *news.FeedDetector
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → CSRF → Session → RateLimit(General)
//
// 認証ルート（/auth/signin等）と/healthはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.Identity, deps.AuthConfig)
	channelHandler := NewChannelHandler(deps.Store, deps.Identity, deps.Recorder, deps.Logger)
	questionHandler := NewQuestionHandler(deps.Store, deps.Identity, deps.QuestionSanitizer, deps.Recorder, deps.Logger)
	newsHandler := NewNewsHandler(deps.Store, deps.Identity, deps.NewsSanitizer, deps.NewsDetector, deps.Recorder, deps.Logger)
	scheduleHandler := NewScheduleHandler(deps.Store, deps.Identity, deps.Recorder, deps.Logger)
	calendarHandler := NewCalendarHandler(deps.Store, deps.Identity, deps.Recorder, deps.Logger)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signin", authHandler.SignIn)
		r.Post("/signup", authHandler.SignUp)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)、書き込みはさらにRateLimit(Write)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Identity))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		write := deps.RateLimiter.WriteMiddleware()

		// 管理者判定
		r.Get("/auth/me/admin", authHandler.Admin)
		r.Get("/auth/me/admin/stream", NewAdminStreamHandler(deps.Identity, deps.Logger))

		// チャンネル
		r.Route("/api/channels", func(r chi.Router) {
			r.Get("/stream", channelHandler.Stream)
			r.With(write).Post("/", channelHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.With(write).Put("/", channelHandler.Update)
				r.With(write).Delete("/", channelHandler.Delete)
			})

			// チャンネル配下の質問
			r.Route("/{channelID}/questions", func(r chi.Router) {
				r.Get("/stream", questionHandler.StreamQuestions)
				r.With(write).Post("/", questionHandler.CreateQuestion)

				r.Route("/{id}", func(r chi.Router) {
					r.With(write).Delete("/", questionHandler.DeleteQuestion)
					r.With(write).Post("/accept", questionHandler.AcceptAnswer)
					r.With(write).Post("/lock", questionHandler.LockQuestion)
				})
			})
		})

		// 質問配下の回答と既読メタ
		r.Route("/api/questions/{questionID}", func(r chi.Router) {
			r.Get("/answers/stream", questionHandler.StreamAnswers)
			r.With(write).Post("/answers", questionHandler.CreateAnswer)
			r.With(write).Delete("/answers/{id}", questionHandler.DeleteAnswer)
			r.With(write).Put("/seen", questionHandler.MarkSeen)
		})
		r.Get("/api/question-meta/stream", questionHandler.StreamMeta)

		// お知らせ
		r.Route("/api/news", func(r chi.Router) {
			r.Get("/stream", newsHandler.Stream)
			r.With(write).Post("/", newsHandler.Create)
			r.With(write).Post("/feed/detect", newsHandler.DetectFeed)
			r.With(write).Put("/{id}", newsHandler.Update)
			r.With(write).Delete("/{id}", newsHandler.Delete)
		})

		// 時間割
		r.Route("/api/schedule", func(r chi.Router) {
			r.Get("/stream", scheduleHandler.Stream)
			r.Get("/today", scheduleHandler.Today)
			r.With(write).Post("/", scheduleHandler.Create)
			r.With(write).Put("/{id}", scheduleHandler.Update)
			r.With(write).Delete("/{id}", scheduleHandler.Delete)
		})

		// 全体カレンダー
		r.Route("/api/calendar", func(r chi.Router) {
			r.Get("/stream", calendarHandler.Stream)
			r.Get("/upcoming", calendarHandler.Upcoming)
			r.With(write).Post("/", calendarHandler.Create)
			r.With(write).Put("/{id}", calendarHandler.Update)
			r.With(write).Delete("/{id}", calendarHandler.Delete)
		})
	})

	return r
}
