package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campushub/internal/calendar"
	"github.com/hitoshi/campushub/internal/identity"
	"github.com/hitoshi/campushub/internal/middleware"
	"github.com/hitoshi/campushub/internal/model"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// CalendarHandler は全体カレンダーのHTTPハンドラー。
// 閲覧は認証済みユーザー全員、書き込みは管理者のみ。
type CalendarHandler struct {
	store    store.Store
	identity *identity.Service
	recorder syncstate.Recorder
	logger   *slog.Logger
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(st store.Store, svc *identity.Service, rec syncstate.Recorder, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{
		store:    st,
		identity: svc,
		recorder: rec,
		logger:   logger,
	}
}

// calendarEventRequest はカレンダーイベント作成・更新リクエストのボディ。
type calendarEventRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"` // "2006-01-02"
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// calendarEventResponse はカレンダーイベントのAPIレスポンス。
type calendarEventResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// repoFor はリクエストのセッションに紐づいたカレンダーリポジトリを生成する。
func (h *CalendarHandler) repoFor(r *http.Request) *calendar.Repo {
	sessionID, _ := middleware.SessionIDFromContext(r.Context())
	auth := h.identity.SessionStream(sessionID)
	return calendar.NewRepo(h.store, auth, h.recorder, h.logger)
}

// requireAdmin はリクエストの認証ユーザーが管理者であることを検証する。
func (h *CalendarHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (*model.UserAccount, bool) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return nil, false
	}

	isAdmin, err := h.identity.IsAdmin(r.Context(), account.UID)
	if err != nil {
		h.logger.Warn("管理者判定に失敗したため非管理者として扱う",
			slog.String("uid", account.UID),
			slog.String("error", err.Error()))
		isAdmin = false
	}
	if !isAdmin {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewAdminOnlyError())
		return nil, false
	}
	return account, true
}

// Stream はカレンダーイベントの同期状態をSSEで配信する。
// GET /api/calendar/stream
func (h *CalendarHandler) Stream(w http.ResponseWriter, r *http.Request) {
	states := h.repoFor(r).Observe(r.Context())
	streamSyncStates(w, r, states, toCalendarEventResponse)
}

// Upcoming は今日以降のイベント一覧を昇順で返す。
// GET /api/calendar/upcoming?date=2006-01-02
func (h *CalendarHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
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
		upcoming := calendar.Upcoming(state.Items, day)
		results := make([]calendarEventResponse, len(upcoming))
		for i, ev := range upcoming {
			results[i] = toCalendarEventResponse(ev)
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": results})
	}
}

// Create はカレンダーイベントを作成する（管理者のみ）。
// POST /api/calendar
func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	ev, ok := h.decodeEvent(w, r, 0)
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

// Update はカレンダーイベント全体を置き換え更新する（管理者のみ）。
// PUT /api/calendar/{id}
func (h *CalendarHandler) Update(w http.ResponseWriter, r *http.Request) {
	account, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("id must be an integer"))
		return
	}

	ev, ok := h.decodeEvent(w, r, id)
	if !ok {
		return
	}

	if err := h.repoFor(r).Update(r.Context(), account, ev); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete はカレンダーイベントを削除する（管理者のみ）。
// DELETE /api/calendar/{id}
func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("id must be an integer"))
		return
	}

	if err := h.repoFor(r).Delete(r.Context(), account, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeEvent はリクエストボディを検証してCalendarEventに変換する。
func (h *CalendarHandler) decodeEvent(w http.ResponseWriter, r *http.Request, id int64) (model.CalendarEvent, bool) {
	var req calendarEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return model.CalendarEvent{}, false
	}
	if req.Title == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("title is required"))
		return model.CalendarEvent{}, false
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("date must be in YYYY-MM-DD format"))
		return model.CalendarEvent{}, false
	}

	return model.CalendarEvent{
		ID:          id,
		Title:       req.Title,
		Date:        date,
		Time:        req.Time,
		Location:    req.Location,
		Description: req.Description,
	}, true
}

// toCalendarEventResponse はmodel.CalendarEventからAPIレスポンスに変換する。
func toCalendarEventResponse(ev model.CalendarEvent) calendarEventResponse {
	return calendarEventResponse{
		ID:          ev.ID,
		Title:       ev.Title,
		Date:        ev.Date.Format(time.DateOnly),
		Time:        ev.Time,
		Location:    ev.Location,
		Description: ev.Description,
	}
}
