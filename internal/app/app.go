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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/mealbox/internal/cart"
	"github.com/hitoshi/mealbox/internal/config"
	"github.com/hitoshi/mealbox/internal/content"
	"github.com/hitoshi/mealbox/internal/database"
	"github.com/hitoshi/mealbox/internal/device"
	"github.com/hitoshi/mealbox/internal/favorite"
	"github.com/hitoshi/mealbox/internal/handler"
	"github.com/hitoshi/mealbox/internal/identity"
	"github.com/hitoshi/mealbox/internal/logger"
	"github.com/hitoshi/mealbox/internal/metrics"
	"github.com/hitoshi/mealbox/internal/middleware"
	"github.com/hitoshi/mealbox/internal/repository"
	"github.com/hitoshi/mealbox/internal/security"
	"github.com/hitoshi/mealbox/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
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
		slog.String("cms_dataset", cfg.CMSDataset),
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
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリとメトリクスの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	subRepo := repository.NewPostgresUserSubscriptionRepo(db)
	favRepo := repository.NewPostgresFavoriteRepo(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. 外部サービスクライアントの初期化
	identityClient := identity.NewClient(identity.Config{
		URL:     cfg.IdentityURL,
		AnonKey: cfg.IdentityAnonKey,
		Timeout: cfg.IdentityTimeout,
	}, collector)

	cmsClient := content.NewClient(content.Config{
		ProjectID:  cfg.CMSProjectID,
		Dataset:    cfg.CMSDataset,
		APIVersion: cfg.CMSAPIVersion,
		Token:      cfg.CMSToken,
		UseCDN:     cfg.CMSUseCDN,
		APIHost:    cfg.CMSAPIHost,
	}, ssrfGuard.NewSafeClient(cfg.CMSTimeout), collector)

	// 5. ドメインサービスの初期化
	contentService := content.NewService(cmsClient, sanitizer, content.ServiceConfig{
		CacheSize: cfg.CMSCacheSize,
		CacheTTL:  cfg.CMSCacheTTL,
	}, slog.Default())
	favoriteService := favorite.NewService(favRepo, contentService)

	deviceDeps := device.Deps{
		Identity:      identityClient,
		JWTSecret:     cfg.IdentityJWTSecret,
		Profiles:      profileRepo,
		Subscriptions: subRepo,
		Tiers:         contentService,
		Metrics:       collector,
		Logger:        slog.Default(),
	}

	// REDIS_URLが未設定の場合、カートはデバイスのメモリ上にのみ保持する
	if cfg.RedisURL != "" {
		redisClient, err := cart.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to configure redis: %w", err)
		}
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		deviceDeps.CartSnapshots = cart.NewRedisSnapshotStore(redisClient, cfg.CartSnapshotTTL)
		slog.Info("cart snapshot store enabled", slog.Duration("ttl", cfg.CartSnapshotTTL))
	}

	devices := device.NewRegistry(deviceDeps, device.RegistryConfig{
		IdleTimeout:     cfg.DeviceIdleTimeout,
		CleanupInterval: time.Minute,
	})
	defer devices.Stop()

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Devices:           devices,
		CookieSecure:      cfg.CookieSecure,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		HealthChecker: db,
		Gatherer:      registry,

		Profiles:       profileRepo,
		Content:        contentService,
		Favorites:      favoriteService,
		ImageValidator: ssrfGuard,
	})

	// 7. HTTPサーバーの起動
	// WebSocketの長時間接続はハイジャック後のためWriteTimeoutの影響を受けない
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 先にデバイスを破棄し、WebSocketストリームへ切断を通知する
	devices.Stop()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れお気に入りのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	favRepo := repository.NewPostgresFavoriteRepo(db)
	cleanupJob := cleanup.NewCleanupJob(favRepo, slog.Default())

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
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

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
