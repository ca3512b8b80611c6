package handler

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/digestman/internal/worker/cleanup"
	"github.com/hitoshi/digestman/internal/worker/digestgen"
	"github.com/hitoshi/digestman/internal/worker/refresh"
)

// RefreshRunner はソース更新パスの実行インターフェース。
type RefreshRunner interface {
	RunOnce(ctx context.Context) (*refresh.Result, error)
}

// DigestRunner はダイジェスト生成パスの実行インターフェース。
type DigestRunner interface {
	RunOnce(ctx context.Context) (*digestgen.Result, error)
}

// CleanupRunner は記事クリーンアップパスの実行インターフェース。
type CleanupRunner interface {
	RunOnce(ctx context.Context) (*cleanup.Result, error)
}

// CronHandler は外部スケジューラから起動されるバッチパスのHTTPハンドラー。
// 全エンドポイントはBearerトークンで保護され、トークン不一致の場合は
// 副作用なしで401を返す。
type CronHandler struct {
	refresh RefreshRunner
	digest  DigestRunner
	cleanup CleanupRunner
	secret  string
	logger  *slog.Logger
}

// NewCronHandler はCronHandlerを生成する。
func NewCronHandler(refresh RefreshRunner, digest DigestRunner, cleanup CleanupRunner, secret string, logger *slog.Logger) *CronHandler {
	return &CronHandler{
		refresh: refresh,
		digest:  digest,
		cleanup: cleanup,
		secret:  secret,
		logger:  logger,
	}
}

// authorize はAuthorizationヘッダーのBearerトークンを検証する。
// タイミング攻撃を防ぐため定数時間比較を使用する。
func (h *CronHandler) authorize(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

// RefreshSources はソース更新パスを実行する。
// POST /internal/cron/refresh-sources
func (h *CronHandler) RefreshSources(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		writeUnauthorized(w)
		return
	}

	result, err := h.refresh.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("更新パスの実行に失敗しました", slog.String("error", err.Error()))
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GenerateDigests はダイジェスト生成パスを実行する。
// POST /internal/cron/generate-digests
func (h *CronHandler) GenerateDigests(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		writeUnauthorized(w)
		return
	}

	result, err := h.digest.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("ダイジェスト生成パスの実行に失敗しました", slog.String("error", err.Error()))
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CleanupItems は記事クリーンアップパスを実行する。
// POST /internal/cron/cleanup-items
func (h *CronHandler) CleanupItems(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		writeUnauthorized(w)
		return
	}

	result, err := h.cleanup.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("クリーンアップパスの実行に失敗しました", slog.String("error", err.Error()))
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
