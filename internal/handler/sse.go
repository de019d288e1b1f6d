package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hitoshi/campushub/internal/syncstate"
)

// syncStatePayload はSSEで配信する同期状態のペイロード。
type syncStatePayload[R any] struct {
	Phase   string `json:"phase"`
	Items   []R    `json:"items,omitempty"`
	Message string `json:"message,omitempty"`
}

// streamSyncStates は同期状態のライブシーケンスをServer-Sent Eventsとして配信する。
// クライアントの切断（リクエストコンテキストのキャンセル）まで配信を継続する。
// toResponseは各ドメインのモデルをAPIレスポンス型に変換する。
func streamSyncStates[T, R any](w http.ResponseWriter, r *http.Request, states <-chan syncstate.State[T], toResponse func(T) R) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}

			payload := syncStatePayload[R]{Phase: state.Phase.String()}
			if state.Phase == syncstate.PhaseSuccess {
				payload.Items = make([]R, len(state.Items))
				for i, item := range state.Items {
					payload.Items[i] = toResponse(item)
				}
			}
			if state.Phase == syncstate.PhaseError {
				payload.Message = state.Message
			}

			if err := writeSSEEvent(w, "state", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// streamBoolStates は真偽値のライブシーケンス（管理者権限など）を
// Server-Sent Eventsとして配信する。
func streamBoolStates(w http.ResponseWriter, r *http.Request, event string, states <-chan bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-states:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event, map[string]bool{"value": v}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// awaitResult は同期状態シーケンスから最初の確定状態
// （Success/Error/SignedOut）を待って返す。
func awaitResult[T any](ctx context.Context, states <-chan syncstate.State[T]) (syncstate.State[T], error) {
	for {
		select {
		case <-ctx.Done():
			return syncstate.State[T]{}, ctx.Err()
		case state, ok := <-states:
			if !ok {
				return syncstate.State[T]{}, context.Canceled
			}
			if state.Phase != syncstate.PhaseLoading {
				return state, nil
			}
		}
	}
}

// writeSSEEvent は1件のSSEイベントを書き込む。
func writeSSEEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
