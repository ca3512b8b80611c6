package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/middleware"
	"github.com/hitoshi/digestman/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// バッチパス
	RefreshRunner CronRefresh
	DigestRunner  DigestRunner
	CleanupRunner CleanupRunner
	CronSecret    string

	// ソース管理
	SourceRepo   repository.SourceRepository
	URLValidator URLValidator
	Ingester     SourceIngester

	// 記事・ダイジェスト・設定
	ItemRepo   repository.ItemRepository
	DigestRepo repository.DigestRepository
	PrefRepo   repository.PreferenceRepository

	// OPML
	OPMLImporter OPMLImporter

	// メトリクス
	Gatherer prometheus.Gatherer

	Clock clock.Clock
}

// CronRefresh はRefreshRunnerとSourceIngesterの両方を満たすインターフェース。
// 更新スケジューラは一括パスと単一ソース更新の両方を提供する。
type CronRefresh interface {
	RefreshRunner
	SourceIngester
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (認証ルートのみ) Session → RateLimit
//
// /health、/metrics、/internal/cron/* はセッション認証の外に配置する。
// cronエンドポイントはBearerトークンで独立に保護される。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	cronHandler := NewCronHandler(deps.RefreshRunner, deps.DigestRunner, deps.CleanupRunner, deps.CronSecret, deps.Logger)
	sourceHandler := NewSourceHandler(deps.SourceRepo, deps.URLValidator, deps.Ingester, deps.Clock, deps.Logger)
	itemHandler := NewItemHandler(deps.ItemRepo)
	digestHandler := NewDigestHandler(deps.DigestRepo)
	prefHandler := NewPreferenceHandler(deps.PrefRepo)
	opmlHandler := NewOPMLHandler(deps.OPMLImporter, deps.SourceRepo, deps.Clock)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// バッチパス（Bearerトークン保護）
	r.Route("/internal/cron", func(r chi.Router) {
		r.Post("/refresh-sources", cronHandler.RefreshSources)
		r.Post("/generate-digests", cronHandler.GenerateDigests)
		r.Post("/cleanup-items", cronHandler.CleanupItems)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ソース管理
		r.Route("/api/sources", func(r chi.Router) {
			// ソース登録は外部フェッチを伴うため登録専用レート制限を追加
			r.With(deps.RateLimiter.SourceRegistrationMiddleware()).Post("/", sourceHandler.CreateSource)
			r.Get("/", sourceHandler.ListSources)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", sourceHandler.DeleteSource)
				r.Post("/refresh", sourceHandler.RefreshSource)
			})
		})

		// 記事管理
		r.Route("/api/items", func(r chi.Router) {
			r.Get("/", itemHandler.ListItems)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", itemHandler.GetItem)
				r.Patch("/", itemHandler.UpdateItemFlags)
				r.Delete("/", itemHandler.DeleteItem)
			})
		})

		// ダイジェスト閲覧
		r.Route("/api/digests", func(r chi.Router) {
			r.Get("/", digestHandler.ListDigests)
			r.Get("/{date}", digestHandler.GetDigestByDate)
		})

		// ユーザー設定
		r.Route("/api/preferences", func(r chi.Router) {
			r.Get("/", prefHandler.GetPreference)
			r.Patch("/", prefHandler.UpdatePreference)
		})

		// OPMLインポート・エクスポート
		r.Route("/api/opml", func(r chi.Router) {
			r.With(deps.RateLimiter.SourceRegistrationMiddleware()).Post("/", opmlHandler.ImportOPML)
			r.Get("/", opmlHandler.ExportOPML)
		})
	})

	return r
}
