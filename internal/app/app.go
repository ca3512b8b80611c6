// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
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

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/config"
	"github.com/hitoshi/digestman/internal/database"
	"github.com/hitoshi/digestman/internal/enrich"
	"github.com/hitoshi/digestman/internal/handler"
	"github.com/hitoshi/digestman/internal/logger"
	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/middleware"
	"github.com/hitoshi/digestman/internal/opml"
	"github.com/hitoshi/digestman/internal/repository"
	"github.com/hitoshi/digestman/internal/security"
	"github.com/hitoshi/digestman/internal/summary"
	"github.com/hitoshi/digestman/internal/worker/cleanup"
	"github.com/hitoshi/digestman/internal/worker/digestgen"
	"github.com/hitoshi/digestman/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
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
		return fmt.Errorf("初期化に失敗しました: %w", err)
	}

	slog.Info("アプリケーションを起動します",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
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
		return fmt.Errorf("データベース接続のオープンに失敗しました: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("データベースへの接続に失敗しました: %w", err)
	}

	slog.Info("データベース接続を確立しました")

	location, err := cfg.Location()
	if err != nil {
		return err
	}

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	sourceRepo := repository.NewPostgresSourceRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)
	digestRepo := repository.NewPostgresDigestRepo(db)
	prefRepo := repository.NewPostgresPreferenceRepo(db)

	// 3. セキュリティ・メトリクス・時刻
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	clk := clock.SystemClock{}

	// 4. 取り込みパイプラインの構築
	fetcher := refresh.NewFetcher(ssrfGuard, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize)
	enricher := enrich.NewReadabilityEnricher(
		ssrfGuard, enrich.ReadabilityExtract,
		slog.Default(), cfg.EnrichTimeout, cfg.FetchMaxSize,
	)

	refreshScheduler := refresh.NewScheduler(
		sourceRepo, itemRepo, fetcher, enricher, sanitizer,
		refresh.NewDeduplicator(nil), clk, slog.Default(), collector,
		cfg.StalenessThreshold,
		time.Duration(cfg.RecencyHorizonDays)*24*time.Hour,
		cfg.FetchMaxConcurrent, cfg.EnrichMaxConcurrent,
	)

	// 5. ダイジェスト生成・クリーンアップパスの構築
	digestScheduler := digestgen.NewScheduler(
		prefRepo, itemRepo, digestRepo,
		summary.NewFactory(cfg.SummaryModel, cfg.SummaryTimeout),
		clk, slog.Default(), collector, location,
	)

	sweeper := cleanup.NewSweeper(prefRepo, itemRepo, clk, slog.Default(), collector)

	// 6. OPMLインポートサービス
	importer := opml.NewImporter(sourceRepo, ssrfGuard, refreshScheduler, clk, slog.Default())

	// 7. ルーターの構築
	rlConfig := middleware.DefaultRateLimiterConfig()
	rlConfig.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rlConfig.GeneralBurst = cfg.RateLimitGeneral
	rateLimiter := middleware.NewRateLimiter(rlConfig)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		RefreshRunner: refreshScheduler,
		DigestRunner:  digestScheduler,
		CleanupRunner: sweeper,
		CronSecret:    cfg.CronSecret,

		SourceRepo:   sourceRepo,
		URLValidator: ssrfGuard,
		Ingester:     refreshScheduler,

		ItemRepo:   itemRepo,
		DigestRepo: digestRepo,
		PrefRepo:   prefRepo,

		OPMLImporter: importer,

		Gatherer: registry,
		Clock:    clk,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // cronパスは外部フェッチを伴い長時間かかりうる
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("APIサーバーを起動します",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("サーバーの起動に失敗しました", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("APIサーバーをシャットダウンします...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗しました: %w", err)
	}

	slog.Info("APIサーバーを正常に停止しました")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("データベースマイグレーションを実行します",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("マイグレーションに失敗しました: %w", err)
	}

	slog.Info("データベースマイグレーションが完了しました")
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
		return fmt.Errorf("ヘルスチェックに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ヘルスチェックがステータス %d を返しました", resp.StatusCode)
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
