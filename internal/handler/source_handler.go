package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/digestman/internal/clock"
	"github.com/hitoshi/digestman/internal/middleware"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// URLValidator は登録対象URLの安全性を検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// SourceIngester は単一ソースの取り込みを実行する。
type SourceIngester interface {
	RefreshSource(ctx context.Context, source *model.Source) (int, error)
}

// SourceHandler はソース管理のHTTPハンドラー。
type SourceHandler struct {
	sourceRepo repository.SourceRepository
	validator  URLValidator
	ingester   SourceIngester
	clk        clock.Clock
	logger     *slog.Logger
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(
	sourceRepo repository.SourceRepository,
	validator URLValidator,
	ingester SourceIngester,
	clk clock.Clock,
	logger *slog.Logger,
) *SourceHandler {
	return &SourceHandler{
		sourceRepo: sourceRepo,
		validator:  validator,
		ingester:   ingester,
		clk:        clk,
		logger:     logger,
	}
}

// createSourceRequest はソース登録リクエストのボディ。
type createSourceRequest struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// sourceResponse はソース情報のAPIレスポンス。
type sourceResponse struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// refreshResultResponse は手動更新のレスポンス。
type refreshResultResponse struct {
	SourceID   string `json:"source_id"`
	ItemsAdded int    `json:"items_added"`
}

// CreateSource はソース登録を処理する。登録後は即座に初回取り込みが
// 実行される。取り込みの失敗は登録自体を取り消さない。
// POST /api/sources
func (h *SourceHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	if err := h.validator.ValidateURL(req.URL); err != nil {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
		return
	}

	existing, err := h.sourceRepo.FindByURLAndUser(r.Context(), req.URL, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if existing != nil {
		writeAPIErrorResponse(w, http.StatusConflict, model.NewDuplicateSourceError())
		return
	}

	now := h.clk.Now()
	title := req.Title
	if title == "" {
		title = req.URL
	}
	source := &model.Source{
		ID:        uuid.New().String(),
		UserID:    userID,
		URL:       req.URL,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.sourceRepo.Create(r.Context(), source); err != nil {
		handleError(w, err)
		return
	}

	// 初回取り込みの失敗は登録を取り消さない。次回の定期更新パスで再試行される。
	if _, err := h.ingester.RefreshSource(r.Context(), source); err != nil {
		h.logger.Warn("初回取り込みに失敗しました",
			slog.String("source_id", source.ID),
			slog.String("url", source.URL),
			slog.String("error", err.Error()),
		)
	}

	// 取り込みでタイトルが更新されている可能性があるため再読する
	created, err := h.sourceRepo.FindByID(r.Context(), source.ID, userID)
	if err != nil || created == nil {
		created = source
	}

	writeJSON(w, http.StatusCreated, toSourceResponse(created, 0))
}

// ListSources はユーザーのソース一覧を未読件数付きで取得する。
// GET /api/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
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

	responses := make([]sourceResponse, len(sources))
	for i, s := range sources {
		responses[i] = toSourceResponse(&s.Source, s.UnreadCount)
	}

	writeJSON(w, http.StatusOK, map[string][]sourceResponse{"sources": responses})
}

// RefreshSource は単一ソースの手動更新を実行する。
// POST /api/sources/{id}/refresh
func (h *SourceHandler) RefreshSource(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	sourceID := chi.URLParam(r, "id")

	source, err := h.sourceRepo.FindByID(r.Context(), sourceID, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if source == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(sourceID))
		return
	}

	added, err := h.ingester.RefreshSource(r.Context(), source)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewFetchFailedError(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, refreshResultResponse{
		SourceID:   sourceID,
		ItemsAdded: added,
	})
}

// DeleteSource はソースの購読を解除する。関連記事も削除される。
// DELETE /api/sources/{id}
func (h *SourceHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	sourceID := chi.URLParam(r, "id")

	deleted, err := h.sourceRepo.Delete(r.Context(), sourceID, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if !deleted {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSourceNotFoundError(sourceID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toSourceResponse はmodel.SourceからAPIレスポンスに変換する。
func toSourceResponse(source *model.Source, unreadCount int) sourceResponse {
	return sourceResponse{
		ID:            source.ID,
		URL:           source.URL,
		Title:         source.Title,
		LastFetchedAt: source.LastFetchedAt,
		UnreadCount:   unreadCount,
		CreatedAt:     source.CreatedAt,
	}
}
