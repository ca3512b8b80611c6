package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/digestman/internal/middleware"
	"github.com/hitoshi/digestman/internal/model"
	"github.com/hitoshi/digestman/internal/repository"
)

// maskedAPIKey はAPIキーのレスポンス上の表現。生のキーは返さない。
const maskedAPIKey = "********"

// PreferenceHandler はユーザー設定のHTTPハンドラー。
type PreferenceHandler struct {
	prefRepo repository.PreferenceRepository
}

// NewPreferenceHandler はPreferenceHandlerを生成する。
func NewPreferenceHandler(prefRepo repository.PreferenceRepository) *PreferenceHandler {
	return &PreferenceHandler{prefRepo: prefRepo}
}

// updatePreferenceRequest は設定更新リクエストのボディ。
// nilフィールドは変更されない部分更新を行う。
type updatePreferenceRequest struct {
	RetentionDays *int    `json:"retention_days,omitempty"`
	AutoCleanup   *bool   `json:"auto_cleanup,omitempty"`
	DigestEnabled *bool   `json:"digest_enabled,omitempty"`
	DigestTime    *string `json:"digest_time,omitempty"`
	DigestPrompt  *string `json:"digest_prompt,omitempty"`
	APIKey        *string `json:"api_key,omitempty"`
	APIEndpoint   *string `json:"api_endpoint,omitempty"`
}

// preferenceResponse はユーザー設定のAPIレスポンス。
// APIキーは設定済みの場合のみマスク表現で返す。
type preferenceResponse struct {
	RetentionDays int    `json:"retention_days"`
	AutoCleanup   bool   `json:"auto_cleanup"`
	DigestEnabled bool   `json:"digest_enabled"`
	DigestTime    string `json:"digest_time"`
	DigestPrompt  string `json:"digest_prompt"`
	APIKey        string `json:"api_key"`
	APIEndpoint   string `json:"api_endpoint"`
}

// GetPreference はユーザー設定を取得する。未作成の場合はデフォルト値で
// 遅延生成される。
// GET /api/preferences
func (h *PreferenceHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	pref, err := h.prefRepo.FindOrCreate(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferenceResponse(pref))
}

// UpdatePreference はユーザー設定を部分更新する。
// PATCH /api/preferences
func (h *PreferenceHandler) UpdatePreference(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updatePreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.RetentionDays != nil && *req.RetentionDays < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_RETENTION_DAYS",
			Message:  "保持日数は1以上で指定してください。",
			Category: "validation",
			Action:   "retention_daysに1以上の整数を指定してください。",
		})
		return
	}

	if req.DigestTime != nil {
		if _, _, err := model.ParseClockTime(*req.DigestTime); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTimeError(*req.DigestTime))
			return
		}
	}

	pref, err := h.prefRepo.FindOrCreate(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	if req.RetentionDays != nil {
		pref.RetentionDays = *req.RetentionDays
	}
	if req.AutoCleanup != nil {
		pref.AutoCleanup = *req.AutoCleanup
	}
	if req.DigestEnabled != nil {
		pref.DigestEnabled = *req.DigestEnabled
	}
	if req.DigestTime != nil {
		pref.DigestTime = *req.DigestTime
	}
	if req.DigestPrompt != nil {
		pref.DigestPrompt = *req.DigestPrompt
	}
	// マスク表現がそのまま送り返されてきた場合は既存キーを保持する
	if req.APIKey != nil && *req.APIKey != maskedAPIKey {
		pref.APIKey = *req.APIKey
	}
	if req.APIEndpoint != nil {
		pref.APIEndpoint = *req.APIEndpoint
	}

	if err := h.prefRepo.Update(r.Context(), pref); err != nil {
		handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPreferenceResponse(pref))
}

// toPreferenceResponse はmodel.PreferenceからAPIレスポンスに変換する。
// APIキーは生の値を返さず、設定有無のみをマスク表現で伝える。
func toPreferenceResponse(pref *model.Preference) preferenceResponse {
	apiKey := ""
	if pref.APIKey != "" {
		apiKey = maskedAPIKey
	}

	return preferenceResponse{
		RetentionDays: pref.RetentionDays,
		AutoCleanup:   pref.AutoCleanup,
		DigestEnabled: pref.DigestEnabled,
		DigestTime:    pref.DigestTime,
		DigestPrompt:  pref.DigestPrompt,
		APIKey:        apiKey,
		APIEndpoint:   pref.APIEndpoint,
	}
}
