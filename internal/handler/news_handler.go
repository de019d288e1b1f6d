package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/middleware"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/news"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// NewsHandler はお知らせのHTTPハンドラー。
// 閲覧は全ユーザー、書き込みは管理者のみに許可する。
type NewsHandler struct {
	store     store.Store
	identity  *identity.Service
	sanitizer news.Sanitizer
	detector  *news.FeedDetector
	recorder  syncstate.Recorder
	logger    *slog.Logger
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(st store.Store, svc *identity.Service, sanitizer news.Sanitizer, detector *news.FeedDetector, rec syncstate.Recorder, logger *slog.Logger) *NewsHandler {
	return &NewsHandler{
		store:     st,
		identity:  svc,
		sanitizer: sanitizer,
		detector:  detector,
		recorder:  rec,
		logger:    logger,
	}
}

// newsRequest はお知らせ作成・更新リクエストのボディ。
type newsRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Topic    string `json:"topic"`
	IsUrgent bool   `json:"is_urgent"`
}

// newsResponse はお知らせ情報のAPIレスポンス。
type newsResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Topic          string `json:"topic,omitempty"`
	IsUrgent       bool   `json:"is_urgent"`
	CreatedAt      string `json:"created_at"`
	AuthorID       string `json:"author_id,omitempty"`
	AuthorLabel    string `json:"author_label,omitempty"`
	AuthorPhotoURL string `json:"author_photo_url,omitempty"`
}

// repoFor はリクエストのセッションに紐づいたお知らせリポジトリを生成する。
func (h *NewsHandler) repoFor(r *http.Request) *news.Repo {
	sessionID, _ := middleware.SessionIDFromContext(r.Context())
	auth := h.identity.SessionStream(sessionID)
	return news.NewRepo(h.store, auth, h.sanitizer, h.recorder, h.logger)
}

// requireAdmin は管理者権限を検証し、管理者アカウントを返す。
// 非管理者にはnilを返し、レスポンスを書き込み済みにする。
func (h *NewsHandler) requireAdmin(w http.ResponseWriter, r *http.Request) *model.UserAccount {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return nil
	}

	isAdmin, err := h.identity.IsAdmin(r.Context(), account.UID)
	if err != nil {
		h.logger.Warn("管理者権限の確認に失敗しました",
			slog.String("uid", account.UID),
			slog.String("error", err.Error()),
		)
		isAdmin = false
	}
	if !isAdmin {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewAdminOnlyError())
		return nil
	}

	return account
}

// Stream はお知らせ一覧の同期状態をSSEで配信する。
// GET /api/news/stream
func (h *NewsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	states := h.repoFor(r).Observe(r.Context())
	streamSyncStates(w, r, states, toNewsResponse)
}

// Create はお知らせを作成する（管理者のみ）。
// POST /api/news
func (h *NewsHandler) Create(w http.ResponseWriter, r *http.Request) {
	account := h.requireAdmin(w, r)
	if account == nil {
		return
	}

	var req newsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("title is required"))
		return
	}

	item := model.NewsItem{
		Title:    req.Title,
		Body:     req.Body,
		Topic:    req.Topic,
		IsUrgent: req.IsUrgent,
	}

	id, err := h.repoFor(r).Create(r.Context(), account, item)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Update はお知らせ全体を置き換え更新する（管理者のみ）。
// PUT /api/news/{id}
func (h *NewsHandler) Update(w http.ResponseWriter, r *http.Request) {
	account := h.requireAdmin(w, r)
	if account == nil {
		return
	}

	var req newsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	item := model.NewsItem{
		ID:       chi.URLParam(r, "id"),
		Title:    req.Title,
		Body:     req.Body,
		Topic:    req.Topic,
		IsUrgent: req.IsUrgent,
	}

	if err := h.repoFor(r).Update(r.Context(), account, item); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete はお知らせを削除する（管理者のみ）。
// DELETE /api/news/{id}
func (h *NewsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account := h.requireAdmin(w, r)
	if account == nil {
		return
	}

	if err := h.repoFor(r).Delete(r.Context(), account, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// detectFeedRequest はフィード検出リクエストのボディ。
type detectFeedRequest struct {
	URL string `json:"url"`
}

// DetectFeed は学校サイトURLからお知らせフィードURLを検出する（管理者のみ）。
// 入力がフィードそのものならそのURL、HTMLならalternateリンクから検出する。
// POST /api/news/feed/detect
func (h *NewsHandler) DetectFeed(w http.ResponseWriter, r *http.Request) {
	account := h.requireAdmin(w, r)
	if account == nil {
		return
	}

	var req detectFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	feedURL, err := h.detector.DetectFeedURL(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"feed_url": feedURL})
}

// toNewsResponse はmodel.NewsItemからAPIレスポンスに変換する。
func toNewsResponse(item model.NewsItem) newsResponse {
	return newsResponse{
		ID:             item.ID,
		Title:          item.Title,
		Body:           item.Body,
		Topic:          item.Topic,
		IsUrgent:       item.IsUrgent,
		CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
		AuthorID:       item.AuthorID,
		AuthorLabel:    item.AuthorLabel,
		AuthorPhotoURL: item.AuthorPhotoURL,
	}
}
