package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/campushub/internal/config"
	"github.com/hitoshi/campushub/internal/database"
	"github.com/hitoshi/campushub/internal/handler"
	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/logger"
	"github.com/hitoshi/campushub/internal/metrics"
	"github.com/hitoshi/campushub/internal/middleware"
	"github.com/hitoshi/campushub/internal/news"
	"github.com/hitoshi/campushub/internal/security"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/worker/cleanup"
	"github.com/hitoshi/campushub/internal/worker/newsimport"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続とリアルタイムストアのリスナーを開き、全依存関係をワイヤリングし、
// HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, 10*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. リアルタイムドキュメントストアの起動
	docStore := store.NewPostgresStore(db, cfg.DatabaseURL, slog.Default())
	go func() {
		if err := docStore.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("document store listener stopped", slog.String("error", err.Error()))
		}
	}()

	// 3. 認証サービスの初期化
	idClient := identity.NewHTTPClient(identity.HTTPClientConfig{
		BaseURL: cfg.IdentityBaseURL,
		APIKey:  cfg.IdentityAPIKey,
	})
	sessions := identity.NewPostgresSessionRepo(db)
	hub := identity.NewHub()
	profiles := identity.NewStoreProfileFinder(docStore)
	identityService := identity.NewService(idClient, sessions, hub, profiles,
		identity.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})

	// 4. 計測とサニタイザの初期化
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	questionSanitizer := security.NewTextSanitizer()
	newsSanitizer := security.NewContentSanitizer()
	newsDetector := news.NewFeedDetector(security.NewSSRFGuard())

	// 5. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		WriteRate:       rate.Limit(float64(cfg.RateLimitWrite) / 60.0),
		WriteBurst:      cfg.RateLimitWrite,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: slog.Default(),

		Identity: identityService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Store:    docStore,
		Recorder: collector,

		QuestionSanitizer: questionSanitizer,
		NewsSanitizer:     newsSanitizer,
		NewsDetector:      newsDetector,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))
	mux.Handle("/", handler.NewRouter(deps))

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// SSEストリームを切断しないようWriteTimeoutは設定しない
		IdleTimeout: 60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	// ストアのリスナーとSSEストリームを先に止めてからHTTPサーバーを閉じる
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// お知らせフィード取り込みスケジューラとセッションクリーンアップを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, 10*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. ストアとセキュリティサービスの初期化
	docStore := store.NewPostgresStore(db, cfg.DatabaseURL, slog.Default())
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 3. お知らせ取り込みの初期化
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	importer := news.NewImporter(
		docStore, sanitizer, ssrfGuard,
		slog.Default(), cfg.NewsImportTimeout, cfg.NewsImportMaxSize, cfg.NewsTopic,
	)
	scheduler := newsimport.NewScheduler(importer, collector, slog.Default(), cfg.NewsFeedURL)

	// 4. セッションクリーンアップの初期化
	sessions := identity.NewPostgresSessionRepo(db)
	cleanupJob := cleanup.NewCleanupJob(sessions, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("import_interval", cfg.NewsImportInterval),
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// お知らせ取り込みスケジューラをバックグラウンドで起動
	go scheduler.Start(ctx, cfg.NewsImportInterval)

	// セッションクリーンアップをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
