package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/digestman/internal/middleware"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// ItemHandler は記事管理のHTTPハンドラー。
type ItemHandler struct {
	itemRepo repository.ItemRepository
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(itemRepo repository.ItemRepository) *ItemHandler {
	return &ItemHandler{itemRepo: itemRepo}
}

// itemSummaryResponse は記事一覧のサマリーレスポンス。
type itemSummaryResponse struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	SourceTitle string    `json:"source_title"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	IsRead      bool      `json:"is_read"`
	IsPinned    bool      `json:"is_pinned"`
}

// itemDetailResponse は記事詳細のレスポンス。
type itemDetailResponse struct {
	itemSummaryResponse
	Content     string `json:"content"`      // サニタイズ済みHTML
	FullContent string `json:"full_content"` // 本文抽出で得た全文。抽出失敗時は空
}

// updateItemFlagsRequest は記事フラグ更新リクエストのボディ。
type updateItemFlagsRequest struct {
	IsRead   *bool `json:"is_read,omitempty"`
	IsPinned *bool `json:"is_pinned,omitempty"`
}

// itemFlagsResponse は記事フラグのレスポンス。
type itemFlagsResponse struct {
	ID       string `json:"id"`
	IsRead   bool   `json:"is_read"`
	IsPinned bool   `json:"is_pinned"`
}

// ListItems は記事一覧をフィルタ付きで取得する。
// GET /api/items?filter=all|unread|pinned&source_id=xxx
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	filterStr := r.URL.Query().Get("filter")
	filter := model.ItemFilterAll
	if filterStr != "" {
		filter = model.ItemFilter(filterStr)
	}

	switch filter {
	case model.ItemFilterAll, model.ItemFilterUnread, model.ItemFilterPinned:
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilterError(filterStr))
		return
	}

	sourceID := r.URL.Query().Get("source_id")

	items, err := h.itemRepo.ListByUser(r.Context(), userID, filter, sourceID)
	if err != nil {
		handleError(w, err)
		return
	}

	responses := make([]itemSummaryResponse, len(items))
	for i, item := range items {
		responses[i] = toItemSummaryResponse(&item)
	}

	writeJSON(w, http.StatusOK, map[string][]itemSummaryResponse{"items": responses})
}

// GetItem は記事詳細を取得する。
// GET /api/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	itemID := chi.URLParam(r, "id")

	item, err := h.itemRepo.FindByID(r.Context(), itemID, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if item == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewItemNotFoundError(itemID))
		return
	}

	writeJSON(w, http.StatusOK, itemDetailResponse{
		itemSummaryResponse: toItemSummaryResponse(item),
		Content:             item.Content,
		FullContent:         item.FullContent,
	})
}

// UpdateItemFlags は記事の既読・ピン留めフラグを部分更新する。
// nilフィールドは変更されない。
// PATCH /api/items/{id}
func (h *ItemHandler) UpdateItemFlags(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	itemID := chi.URLParam(r, "id")

	var req updateItemFlagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.IsRead == nil && req.IsPinned == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "is_readまたはis_pinnedのいずれかを指定してください。",
			Category: "validation",
			Action:   "更新するフィールドを指定してください。",
		})
		return
	}

	item, err := h.itemRepo.UpdateFlags(r.Context(), itemID, userID, req.IsRead, req.IsPinned)
	if err != nil {
		handleError(w, err)
		return
	}
	if item == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewItemNotFoundError(itemID))
		return
	}

	writeJSON(w, http.StatusOK, itemFlagsResponse{
		ID:       item.ID,
		IsRead:   item.IsRead,
		IsPinned: item.IsPinned,
	})
}

// DeleteItem は記事を削除する。
// DELETE /api/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	itemID := chi.URLParam(r, "id")

	deleted, err := h.itemRepo.Delete(r.Context(), itemID, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if !deleted {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewItemNotFoundError(itemID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toItemSummaryResponse はmodel.ItemWithSourceからAPIレスポンスに変換する。
func toItemSummaryResponse(item *model.ItemWithSource) itemSummaryResponse {
	return itemSummaryResponse{
		ID:          item.ID,
		SourceID:    item.SourceID,
		SourceTitle: item.SourceTitle,
		Title:       item.Title,
		Link:        item.Link,
		PublishedAt: item.PublishedAt,
		IsRead:      item.IsRead,
		IsPinned:    item.IsPinned,
	}
}
