package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/digestman/internal/middleware"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// DigestHandler はダイジェスト閲覧のHTTPハンドラー。
type DigestHandler struct {
	digestRepo repository.DigestRepository
}

// NewDigestHandler はDigestHandlerを生成する。
func NewDigestHandler(digestRepo repository.DigestRepository) *DigestHandler {
	return &DigestHandler{digestRepo: digestRepo}
}

// digestSummaryResponse はダイジェスト一覧のサマリーレスポンス。
type digestSummaryResponse struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	ItemCount int       `json:"item_count"`
	CreatedAt time.Time `json:"created_at"`
}

// digestDetailResponse はダイジェスト詳細のレスポンス。
type digestDetailResponse struct {
	digestSummaryResponse
	Body string `json:"body"`
}

// ListDigests はユーザーのダイジェスト一覧を新しい順に取得する。
// GET /api/digests
func (h *DigestHandler) ListDigests(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	digests, err := h.digestRepo.ListByUser(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	responses := make([]digestSummaryResponse, len(digests))
	for i, d := range digests {
		responses[i] = toDigestSummaryResponse(d)
	}

	writeJSON(w, http.StatusOK, map[string][]digestSummaryResponse{"digests": responses})
}

// GetDigestByDate は指定日付のダイジェストを取得する。
// GET /api/digests/{date}
func (h *DigestHandler) GetDigestByDate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	date := chi.URLParam(r, "date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_DATE",
			Message:  "日付の形式が不正です。",
			Category: "validation",
			Action:   "日付は YYYY-MM-DD 形式（例: 2025-06-14）で指定してください。",
		})
		return
	}

	digest, err := h.digestRepo.FindByUserAndDate(r.Context(), userID, date)
	if err != nil {
		handleError(w, err)
		return
	}
	if digest == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewDigestNotFoundError(date))
		return
	}

	writeJSON(w, http.StatusOK, digestDetailResponse{
		digestSummaryResponse: toDigestSummaryResponse(digest),
		Body:                  digest.Body,
	})
}

// toDigestSummaryResponse はmodel.DigestからAPIレスポンスに変換する。
func toDigestSummaryResponse(d *model.Digest) digestSummaryResponse {
	return digestSummaryResponse{
		ID:        d.ID,
		Date:      d.Date,
		Title:     d.Title,
		ItemCount: d.ItemCount,
		CreatedAt: d.CreatedAt,
	}
}
