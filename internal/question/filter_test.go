package question

import (
	"testing"

	"github.com/hitoshi/campushub/internal/model"
)

func ids(qs []model.Question) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func TestFilterState_InitialSelectionIsOpen(t *testing.T) {
	s := NewFilterState()
	if got := s.Active(); got != model.QuestionFilterOpen {
		t.Errorf("Active() = %v, want %v", got, model.QuestionFilterOpen)
	}
}

func TestFilterState_Apply_FiltersByStatus(t *testing.T) {
	questions := []model.Question{
		{ID: "q-open", Status: model.QuestionStatusOpen},
		{ID: "q-ans", Status: model.QuestionStatusAnswered},
		{ID: "q-locked", Status: model.QuestionStatusLocked},
	}

	s := NewFilterState()
	got := ids(s.Apply(questions))
	if len(got) != 1 || got[0] != "q-open" {
		t.Errorf("Apply() with open filter = %v, want [q-open]", got)
	}

	s.Set(model.QuestionFilterAnswered)
	got = ids(s.Apply(questions))
	if len(got) != 2 || got[0] != "q-ans" || got[1] != "q-locked" {
		t.Errorf("Apply() with answered filter = %v, want [q-ans q-locked]", got)
	}
}

func TestFilterState_AutoSwitch_WhenNoOpenQuestions(t *testing.T) {
	questions := []model.Question{
		{ID: "q-1", Status: model.QuestionStatusAnswered},
		{ID: "q-2", Status: model.QuestionStatusLocked},
	}

	s := NewFilterState()
	got := ids(s.Apply(questions))
	if s.Active() != model.QuestionFilterAnswered {
		t.Errorf("Active() after auto switch = %v, want %v", s.Active(), model.QuestionFilterAnswered)
	}
	if len(got) != 2 {
		t.Errorf("Apply() = %v, want both answered questions", got)
	}
}

func TestFilterState_AutoSwitch_FiresOnlyOnce(t *testing.T) {
	answered := []model.Question{{ID: "q-1", Status: model.QuestionStatusAnswered}}

	s := NewFilterState()
	s.Apply(answered)
	if s.Active() != model.QuestionFilterAnswered {
		t.Fatalf("Active() = %v, want auto switch to answered", s.Active())
	}

	// 明示的に未回答へ戻した後は、同じ条件でも再切替しない。
	s.Set(model.QuestionFilterOpen)
	got := s.Apply(answered)
	if s.Active() != model.QuestionFilterOpen {
		t.Errorf("Active() = %v, auto switch fired twice", s.Active())
	}
	if len(got) != 0 {
		t.Errorf("Apply() = %v, want empty open list", ids(got))
	}
}

func TestFilterState_NoAutoSwitch_WhenOpenExists(t *testing.T) {
	questions := []model.Question{
		{ID: "q-open", Status: model.QuestionStatusOpen},
		{ID: "q-ans", Status: model.QuestionStatusAnswered},
	}

	s := NewFilterState()
	s.Apply(questions)
	if s.Active() != model.QuestionFilterOpen {
		t.Errorf("Active() = %v, want open filter to stay", s.Active())
	}
}

func TestFilterState_NoAutoSwitch_WhenListEmpty(t *testing.T) {
	s := NewFilterState()
	s.Apply(nil)
	if s.Active() != model.QuestionFilterOpen {
		t.Errorf("Active() = %v, want open filter to stay on empty list", s.Active())
	}
}

func TestFilterState_NoAutoSwitch_OnAnsweredTab(t *testing.T) {
	s := NewFilterState()
	s.Set(model.QuestionFilterAnswered)
	s.Apply([]model.Question{{ID: "q-1", Status: model.QuestionStatusAnswered}})
	if s.Active() != model.QuestionFilterAnswered {
		t.Errorf("Active() = %v, want answered", s.Active())
	}
}
