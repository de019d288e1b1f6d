package question

import (
	"testing"

	"github.com/hitoshi/campushub/internal/store"
)

func TestDecodeMeta(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		wantOK  bool
		wantQID string
		wantN   int
	}{
		{
			name:    "valid marker",
			data:    map[string]any{"ownerId": "u-1", "questionId": "q-1", "lastSeenAnswers": float64(3)},
			wantOK:  true,
			wantQID: "q-1",
			wantN:   3,
		},
		{
			name:    "missing lastSeenAnswers defaults to zero",
			data:    map[string]any{"ownerId": "u-1", "questionId": "q-2"},
			wantOK:  true,
			wantQID: "q-2",
			wantN:   0,
		},
		{
			name:   "missing questionId",
			data:   map[string]any{"ownerId": "u-1", "lastSeenAnswers": float64(3)},
			wantOK: false,
		},
		{
			name:   "empty questionId",
			data:   map[string]any{"ownerId": "u-1", "questionId": ""},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := decodeMeta(store.Document{ID: "u-1:q-1", Data: tt.data})
			if ok != tt.wantOK {
				t.Fatalf("decodeMeta() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if m.QuestionID != tt.wantQID {
				t.Errorf("QuestionID = %q, want %q", m.QuestionID, tt.wantQID)
			}
			if m.LastSeenAnswers != tt.wantN {
				t.Errorf("LastSeenAnswers = %d, want %d", m.LastSeenAnswers, tt.wantN)
			}
		})
	}
}
