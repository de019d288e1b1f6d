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
	"github.com/hitoshi/campushub/internal/question"
	"github.com/hitoshi/campushub/internal/store"
	"github.com/hitoshi/campushub/internal/syncstate"
)

// QuestionHandler は質問・回答・既読マーカーのHTTPハンドラー。
// 質問リポジトリはチャンネルごと、回答リポジトリは質問ごとに
// リクエストのセッションに紐づけて生成する。
type QuestionHandler struct {
	store     store.Store
	identity  *identity.Service
	sanitizer question.Sanitizer
	recorder  syncstate.Recorder
	logger    *slog.Logger
}

// NewQuestionHandler はQuestionHandlerを生成する。
func NewQuestionHandler(st store.Store, svc *identity.Service, sanitizer question.Sanitizer, rec syncstate.Recorder, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{
		store:     st,
		identity:  svc,
		sanitizer: sanitizer,
		recorder:  rec,
		logger:    logger,
	}
}

// questionRequest は質問作成・更新リクエストのボディ。
type questionRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// answerRequest は回答作成リクエストのボディ。
type answerRequest struct {
	Body string `json:"body"`
}

// acceptRequest は回答採用リクエストのボディ。
type acceptRequest struct {
	AnswerID string `json:"answer_id"`
}

// markSeenRequest は既読マーカー更新リクエストのボディ。
type markSeenRequest struct {
	AnswerCount int `json:"answer_count"`
}

// questionResponse は質問情報のAPIレスポンス。
type questionResponse struct {
	ID               string `json:"id"`
	ChannelID        string `json:"channel_id"`
	Title            string `json:"title"`
	Body             string `json:"body"`
	AuthorID         string `json:"author_id"`
	AuthorLabel      string `json:"author_label,omitempty"`
	AuthorPhotoURL   string `json:"author_photo_url,omitempty"`
	CreatedAt        string `json:"created_at"`
	LastActivityAt   string `json:"last_activity_at"`
	LastMessage      string `json:"last_message,omitempty"`
	AnswerCount      int    `json:"answer_count"`
	Status           string `json:"status"`
	AcceptedAnswerID string `json:"accepted_answer_id,omitempty"`
}

// answerResponse は回答情報のAPIレスポンス。
type answerResponse struct {
	ID             string `json:"id"`
	ChannelID      string `json:"channel_id,omitempty"`
	QuestionID     string `json:"question_id"`
	Body           string `json:"body"`
	AuthorID       string `json:"author_id"`
	AuthorLabel    string `json:"author_label,omitempty"`
	AuthorPhotoURL string `json:"author_photo_url,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// metaResponse は既読マーカーのAPIレスポンス。
type metaResponse struct {
	QuestionID      string `json:"question_id"`
	LastSeenAnswers int    `json:"last_seen_answers"`
}

// authFor はリクエストのセッションに紐づいたID連携ストリームを返す。
func (h *QuestionHandler) authFor(r *http.Request) identity.Stream {
	sessionID, _ := middleware.SessionIDFromContext(r.Context())
	return h.identity.SessionStream(sessionID)
}

func (h *QuestionHandler) questionRepoFor(r *http.Request, channelID string) *question.QuestionRepo {
	return question.NewQuestionRepo(h.store, h.authFor(r), channelID, h.sanitizer, h.recorder, h.logger)
}

func (h *QuestionHandler) answerRepoFor(r *http.Request, questionID string) *question.AnswerRepo {
	return question.NewAnswerRepo(h.store, h.authFor(r), questionID, h.sanitizer, h.recorder, h.logger)
}

func (h *QuestionHandler) metaRepoFor(r *http.Request) *question.MetaRepo {
	return question.NewMetaRepo(h.store, h.authFor(r), h.recorder, h.logger)
}

// StreamQuestions はチャンネル内の質問一覧の同期状態をSSEで配信する。
// GET /api/channels/{channelID}/questions/stream
func (h *QuestionHandler) StreamQuestions(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	states := h.questionRepoFor(r, channelID).Observe(r.Context())
	streamSyncStates(w, r, states, toQuestionResponse)
}

// CreateQuestion は質問を作成する。
// POST /api/channels/{channelID}/questions
func (h *QuestionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.Title == "" || req.Body == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("title and body are required"))
		return
	}

	channelID := chi.URLParam(r, "channelID")
	q := model.Question{
		ChannelID: channelID,
		Title:     req.Title,
		Body:      req.Body,
	}

	id, err := h.questionRepoFor(r, channelID).Create(r.Context(), account, q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteQuestion は質問を削除する。
// DELETE /api/channels/{channelID}/questions/{id}
func (h *QuestionHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	channelID := chi.URLParam(r, "channelID")
	if err := h.questionRepoFor(r, channelID).Delete(r.Context(), account, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AcceptAnswer は質問の回答を採用し、状態をANSWEREDにする。
// POST /api/channels/{channelID}/questions/{id}/accept
func (h *QuestionHandler) AcceptAnswer(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.AnswerID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("answer_id is required"))
		return
	}

	channelID := chi.URLParam(r, "channelID")
	if err := h.questionRepoFor(r, channelID).Accept(r.Context(), account, chi.URLParam(r, "id"), req.AnswerID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LockQuestion は質問をロックし、回答受付を終了する。
// POST /api/channels/{channelID}/questions/{id}/lock
func (h *QuestionHandler) LockQuestion(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	channelID := chi.URLParam(r, "channelID")
	if err := h.questionRepoFor(r, channelID).Lock(r.Context(), account, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamAnswers は質問への回答一覧の同期状態をSSEで配信する。
// GET /api/questions/{questionID}/answers/stream
func (h *QuestionHandler) StreamAnswers(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "questionID")
	states := h.answerRepoFor(r, questionID).Observe(r.Context())
	streamSyncStates(w, r, states, toAnswerResponse)
}

// CreateAnswer は回答を投稿する。
// POST /api/questions/{questionID}/answers
func (h *QuestionHandler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}
	if req.Body == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("body is required"))
		return
	}

	questionID := chi.URLParam(r, "questionID")
	a := model.Answer{
		QuestionID: questionID,
		Body:       req.Body,
	}

	id, err := h.answerRepoFor(r, questionID).Create(r.Context(), account, a)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteAnswer は回答を削除する。
// DELETE /api/questions/{questionID}/answers/{id}
func (h *QuestionHandler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	questionID := chi.URLParam(r, "questionID")
	if err := h.answerRepoFor(r, questionID).Delete(r.Context(), account, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamMeta は閲覧者自身の既読マーカーの同期状態をSSEで配信する。
// GET /api/question-meta/stream
func (h *QuestionHandler) StreamMeta(w http.ResponseWriter, r *http.Request) {
	states := h.metaRepoFor(r).Observe(r.Context())
	streamSyncStates(w, r, states, toMetaResponse)
}

// MarkSeen は質問の既読マーカーを現在の回答数で更新する。
// PUT /api/questions/{questionID}/seen
func (h *QuestionHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	account, err := middleware.AccountFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	var req markSeenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	questionID := chi.URLParam(r, "questionID")
	if err := h.metaRepoFor(r).MarkSeen(r.Context(), account, questionID, req.AnswerCount); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toQuestionResponse はmodel.QuestionからAPIレスポンスに変換する。
func toQuestionResponse(q model.Question) questionResponse {
	return questionResponse{
		ID:               q.ID,
		ChannelID:        q.ChannelID,
		Title:            q.Title,
		Body:             q.Body,
		AuthorID:         q.AuthorID,
		AuthorLabel:      q.AuthorLabel,
		AuthorPhotoURL:   q.AuthorPhotoURL,
		CreatedAt:        q.CreatedAt.UTC().Format(time.RFC3339),
		LastActivityAt:   q.LastActivityAt.UTC().Format(time.RFC3339),
		LastMessage:      q.LastMessage,
		AnswerCount:      q.AnswerCount,
		Status:           string(q.Status),
		AcceptedAnswerID: q.AcceptedAnswerID,
	}
}

// toAnswerResponse はmodel.AnswerからAPIレスポンスに変換する。
func toAnswerResponse(a model.Answer) answerResponse {
	return answerResponse{
		ID:             a.ID,
		ChannelID:      a.ChannelID,
		QuestionID:     a.QuestionID,
		Body:           a.Body,
		AuthorID:       a.AuthorID,
		AuthorLabel:    a.AuthorLabel,
		AuthorPhotoURL: a.AuthorPhotoURL,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// toMetaResponse はmodel.QuestionMetaからAPIレスポンスに変換する。
func toMetaResponse(m model.QuestionMeta) metaResponse {
	return metaResponse{
		QuestionID:      m.QuestionID,
		LastSeenAnswers: m.LastSeenAnswers,
	}
}
