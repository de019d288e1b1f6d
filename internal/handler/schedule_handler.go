package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/middleware"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/schedule"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// resultTimeout は一括取得エンドポイントが確定状態を待つ上限時間。
const resultTimeout = 10 * time.Second

// ScheduleHandler はユーザー個人の時間割のHTTPハンドラー。
type ScheduleHandler struct {
	store    store.Store
	identity *identity.Service
	recorder syncstate.Recorder
	logger   *slog.Logger
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(st store.Store, svc *identity.Service, rec syncstate.Recorder, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		store:    st,
		identity: svc,
		recorder: rec,
		logger:   logger,
	}
}

// scheduleEventRequest は時間割イベント作成・更新リクエストのボディ。
type scheduleEventRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"` // "2006-01-02"
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location"`
	Category    string `json:"category"`
	IsEveryWeek bool   `json:"is_every_week"`
}

// scheduleEventResponse は時間割イベントのAPIレスポンス。
type scheduleEventResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location,omitempty"`
	Category    string `json:"category,omitempty"`
	IsEveryWeek bool   `json:"is_every_week"`
}

// repoFor はリクエストのセッションに紐づいた時間割リポジトリを生成する。
func (h *ScheduleHandler) repoFor(r *http.Request) *schedule.Repo {
	sessionID, _ := middleware.SessionIDFromContext(r.Context())
	auth := h.identity.SessionStream(sessionID)
	return schedule.NewRepo(h.store, auth, h.recorder, h.logger)
}

// Stream は時間割の同期状態をSSEで配信する。
// GET /api/schedule/stream
func (h *ScheduleHandler) Stream(w http.ResponseWriter, r *http.Request) {
	states := h.repoFor(r).Observe(r.Context())
	streamSyncStates(w, r, states, toScheduleEventResponse)
}

// Today は指定日（省略時は当日）に該当する時間割イベント一覧を返す。
// GET /api/schedule/today?date=2006-01-02
func (h *ScheduleHandler) Today(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("date must be in YYYY-MM-DD format"))
			return
		}
		day = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), resultTimeout)
	defer cancel()

	state, err := awaitResult(ctx, h.repoFor(r).Observe(ctx))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	switch state.Phase {
	case syncstate.PhaseSignedOut:
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
	case syncstate.PhaseError:
		writeAPIErrorResponse(w, http.StatusBadGateway, &model.APIError{
			Code:     "SYNC_ERROR",
			Message:  state.Message,
			Category: "system",
			Action:   "Check your connection and try again.",
		})
	default:
		today := schedule.TodayEvents(state.Items, day)
		results := make([]scheduleEventResponse, len(today))
		for i, ev := range today {
			results[i] = toScheduleEventResponse(ev)
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": results})
	}
}

// Create は時間割イベントを作成する。
// POST /api/schedule
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	ev, ok := h.decodeEvent(w, r, "")
	if !ok {
		return
	}

	id, err := h.repoFor(r).Create(r.Context(), account, ev)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Update は時間割イベント全体を置き換え更新する。
// PUT /api/schedule/{id}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	ev, ok := h.decodeEvent(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.repoFor(r).Update(r.Context(), account, ev); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete は時間割イベントを削除する。
// DELETE /api/schedule/{id}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// decodeEvent はリクエストボディを検証してScheduleEventに変換する。
func (h *ScheduleHandler) decodeEvent(w http.ResponseWriter, r *http.Request, id string) (model.ScheduleEvent, bool) {
	var req scheduleEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return model.ScheduleEvent{}, false
	}
	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("title is required"))
		return model.ScheduleEvent{}, false
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("date must be in YYYY-MM-DD format"))
		return model.ScheduleEvent{}, false
	}

	return model.ScheduleEvent{
		ID:          id,
		Title:       req.Title,
		Date:        date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		Category:    req.Category,
		IsEveryWeek: req.IsEveryWeek,
	}, true
}

// toScheduleEventResponse はmodel.ScheduleEventからAPIレスポンスに変換する。
func toScheduleEventResponse(ev model.ScheduleEvent) scheduleEventResponse {
	return scheduleEventResponse{
		ID:          ev.ID,
		Title:       ev.Title,
		Date:        ev.Date.Format(time.DateOnly),
		StartTime:   ev.StartTime,
		EndTime:     ev.EndTime,
		Location:    ev.Location,
		Category:    ev.Category,
		IsEveryWeek: ev.IsEveryWeek,
	}
}
