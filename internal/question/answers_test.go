package question

import (
	"strings"
	"testing"

	"github.com/hitoshi/campushub/internal/store"
)

func TestDecodeAnswer_ValidDocument(t *testing.T) {
	doc := store.Document{
		ID: "a-1",
		Data: map[string]any{
			"questionId":  "q-1",
			"channelId":   "ch-1",
			"body":        "ポータルの課題タブから提出できます",
			"authorId":    "u-2",
			"authorLabel": "佐藤",
			"createdAt":   "2024-06-02T10:00:00Z",
		},
	}

	a, ok := decodeAnswer(doc)
	if !ok {
		t.Fatal("decodeAnswer() ok = false, want true")
	}
	if a.ID != "a-1" || a.QuestionID != "q-1" || a.ChannelID != "ch-1" {
		t.Errorf("ID/QuestionID/ChannelID = %q/%q/%q", a.ID, a.QuestionID, a.ChannelID)
	}
	if a.AuthorID != "u-2" || a.AuthorLabel != "佐藤" {
		t.Errorf("AuthorID/AuthorLabel = %q/%q", a.AuthorID, a.AuthorLabel)
	}
}

func TestDecodeAnswer_MissingRequiredFields(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"questionId": "q-1",
			"body":       "回答",
			"authorId":   "u-2",
			"createdAt":  "2024-06-02T10:00:00Z",
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{name: "no questionId", mutate: func(d map[string]any) { delete(d, "questionId") }},
		{name: "no body", mutate: func(d map[string]any) { delete(d, "body") }},
		{name: "empty body", mutate: func(d map[string]any) { d["body"] = "" }},
		{name: "no authorId", mutate: func(d map[string]any) { delete(d, "authorId") }},
		{name: "no createdAt", mutate: func(d map[string]any) { delete(d, "createdAt") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := base()
			tt.mutate(data)
			if _, ok := decodeAnswer(store.Document{ID: "a-1", Data: data}); ok {
				t.Error("decodeAnswer() ok = true, want false")
			}
		})
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "short body unchanged", body: "短い回答です", want: "短い回答です"},
		{name: "exactly at limit", body: strings.Repeat("a", lastMessageMaxRunes), want: strings.Repeat("a", lastMessageMaxRunes)},
		{name: "long body truncated", body: strings.Repeat("b", lastMessageMaxRunes+20), want: strings.Repeat("b", lastMessageMaxRunes)},
		{name: "multibyte truncated by rune count", body: strings.Repeat("あ", lastMessageMaxRunes+1), want: strings.Repeat("あ", lastMessageMaxRunes)},
		{name: "empty", body: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preview(tt.body); got != tt.want {
				t.Errorf("preview() = %q, want %q", got, tt.want)
			}
		})
	}
}
