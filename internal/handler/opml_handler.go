package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/middleware"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/opml"
	"github.com/hitoshi/digestman/internal/repository"
)

// maxOPMLSize はインポートで受け付けるOPMLファイルの最大サイズ。
const maxOPMLSize = 1 << 20 // 1MB

// OPMLImporter はOPMLインポートサービスのインターフェース。
type OPMLImporter interface {
	Import(ctx context.Context, r io.Reader, userID string) (*opml.ImportResult, error)
}

// OPMLHandler はOPMLインポート・エクスポートのHTTPハンドラー。
type OPMLHandler struct {
	importer   OPMLImporter
	sourceRepo repository.SourceRepository
	clk        clock.Clock
}

// NewOPMLHandler はOPMLHandlerを生成する。
func NewOPMLHandler(importer OPMLImporter, sourceRepo repository.SourceRepository, clk clock.Clock) *OPMLHandler {
	return &OPMLHandler{
		importer:   importer,
		sourceRepo: sourceRepo,
		clk:        clk,
	}
}

// ImportOPML はOPMLファイルからソースを一括登録する。
// リクエストボディにOPML XMLを直接受け取る。
// POST /api/opml
func (h *OPMLHandler) ImportOPML(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.importer.Import(r.Context(), io.LimitReader(r.Body, maxOPMLSize), userID)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, &model.APIError{
			Code:     model.ErrCodeParseFailed,
			Message:  "OPMLの解析に失敗しました。",
			Category: "validation",
			Action:   "有効なOPML 2.0ファイルかどうか確認してください。",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ExportOPML はユーザーの全ソースをOPML形式でダウンロードする。
// GET /api/opml
func (h *OPMLHandler) ExportOPML(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	sources, err := h.sourceRepo.ListByUser(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	entries := make([]opml.Entry, len(sources))
	for i, s := range sources {
		entries[i] = opml.Entry{Title: s.Title, URL: s.URL}
	}

	now := h.clk.Now()
	output, err := opml.Export("Digestman Subscriptions", entries, now)
	if err != nil {
		handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="digestman-%s.opml"`, now.Format("2006-01-02")))
	w.Write(output)
}
