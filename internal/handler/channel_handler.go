package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campushub/internal/channel"
	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/middleware"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// ChannelHandler はチャンネル管理のHTTPハンドラー。
// 同期状態リポジトリはリクエストのセッションに紐づけて生成する
// （リポジトリインスタンスごとにID連携と購読を専有するため）。
type ChannelHandler struct {
	store    store.Store
	identity *identity.Service
	recorder syncstate.Recorder
	logger   *slog.Logger
}

// NewChannelHandler はChannelHandlerを生成する。
func NewChannelHandler(st store.Store, svc *identity.Service, rec syncstate.Recorder, logger *slog.Logger) *ChannelHandler {
	return &ChannelHandler{
		store:    st,
		identity: svc,
		recorder: rec,
		logger:   logger,
	}
}

// channelRequest はチャンネル作成・更新リクエストのボディ。
type channelRequest struct {
	Title       string `json:"title"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	IconKey     string `json:"icon_key"`
}

// channelResponse はチャンネル情報のAPIレスポンス。
type channelResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Topic       string `json:"topic"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	IconKey     string `json:"icon_key,omitempty"`
}

// repoFor はリクエストのセッションに紐づいたチャンネルリポジトリを生成する。
func (h *ChannelHandler) repoFor(r *http.Request) *channel.Repo {
	sessionID, _ := middleware.SessionIDFromContext(r.Context())
	auth := h.identity.SessionStream(sessionID)
	return channel.NewRepo(h.store, auth, h.recorder, h.logger)
}

// Stream はチャンネル一覧の同期状態をSSEで配信する。
// GET /api/channels/stream
func (h *ChannelHandler) Stream(w http.ResponseWriter, r *http.Request) {
	states := h.repoFor(r).Observe(r.Context())
	streamSyncStates(w, r, states, toChannelResponse)
}

// Create はチャンネルを作成する。
// POST /api/channels
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("title is required"))
		return
	}

	ch := model.Channel{
		Title:       req.Title,
		Topic:       req.Topic,
		Description: req.Description,
		IconKey:     req.IconKey,
	}

	id, err := h.repoFor(r).Create(r.Context(), account, ch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ch.ID = id
	ch.CreatedBy = account.UID
	writeJSON(w, http.StatusCreated, toChannelResponse(ch))
}

// Update はチャンネル全体を置き換え更新する。
// PUT /api/channels/{id}
func (h *ChannelHandler) Update(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	ch := model.Channel{
		ID:          chi.URLParam(r, "id"),
		Title:       req.Title,
		Topic:       req.Topic,
		Description: req.Description,
		IconKey:     req.IconKey,
	}

	if err := h.repoFor(r).Update(r.Context(), account, ch); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChannelResponse(ch))
}

// Delete はチャンネルを削除する。
// DELETE /api/channels/{id}
func (h *ChannelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	if err := h.repoFor(r).Delete(r.Context(), account, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toChannelResponse はmodel.ChannelからAPIレスポンスに変換する。
func toChannelResponse(ch model.Channel) channelResponse {
	return channelResponse{
		ID:          ch.ID,
		Title:       ch.Title,
		Topic:       ch.Topic,
		Description: ch.Description,
		CreatedBy:   ch.CreatedBy,
		IconKey:     ch.IconKey,
	}
}
