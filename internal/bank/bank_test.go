package bank

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"live-quiz-service/internal/domain"
)

func TestDefaultBankLoads(t *testing.T) {
	b := Default()
	if b.Len() != 30 {
		t.Fatalf("expected 30 questions, got %d", b.Len())
	}
	q, ok := b.Lookup(17)
	if !ok || q.ID != 17 || len(q.Options) != 4 {
		t.Fatalf("unexpected question 17: %+v", q)
	}
	if _, err := b.Get(999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserQuestionsMatchesReferenceSequence(t *testing.T) {
	b := Default()
	cases := map[string][]int{
		"alice@example.com": {26, 29, 23, 24, 27, 3, 11, 25, 15, 30},
		"bob@example.com":   {25, 6, 13, 4, 3, 30, 29, 1, 20, 22},
		"235UCS001":         {16, 29, 8, 30, 26, 20, 1, 17, 18, 28},
	}
	for user, want := range cases {
		if got := b.UserQuestions(user, 10); !reflect.DeepEqual(got, want) {
			t.Fatalf("user %q: got %v want %v", user, got, want)
		}
	}
}

func TestUserQuestionsDeterministicAndDistinct(t *testing.T) {
	b := Default()
	first := b.UserQuestions("235UCS042", 10)
	second := b.UserQuestions("235UCS042", 10)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected repeated calls to match: %v vs %v", first, second)
	}
	if len(first) != 10 {
		t.Fatalf("expected 10 ids, got %d", len(first))
	}
	seen := map[int]bool{}
	for _, id := range first {
		if seen[id] {
			t.Fatalf("duplicate id %d in %v", id, first)
		}
		if _, ok := b.Lookup(id); !ok {
			t.Fatalf("id %d not in bank", id)
		}
		seen[id] = true
	}
	if other := b.UserQuestions("235UCS043", 10); reflect.DeepEqual(first, other) {
		t.Fatalf("expected different users to get different sequences")
	}
}

func TestUserQuestionsClampsCount(t *testing.T) {
	b := Default()
	if got := b.UserQuestions("x", 100); len(got) != b.Len() {
		t.Fatalf("expected clamp to %d, got %d", b.Len(), len(got))
	}
	if got := b.UserQuestions("x", 0); len(got) != 0 {
		t.Fatalf("expected empty selection, got %v", got)
	}
}

func TestUserQuestionAt(t *testing.T) {
	b := Default()
	id, ok := b.UserQuestionAt("alice@example.com", 10, 2)
	if !ok || id != 23 {
		t.Fatalf("expected 23 at index 2, got %d ok=%v", id, ok)
	}
	if _, ok := b.UserQuestionAt("alice@example.com", 10, 10); ok {
		t.Fatalf("expected out of range index to fail")
	}
}

func TestNewRejectsMalformedQuestions(t *testing.T) {
	_, err := New([]domain.Question{{ID: 1, Options: []string{"a", "b"}, CorrectAnswer: 0}})
	if err == nil {
		t.Fatalf("expected error for two options")
	}
	_, err = New([]domain.Question{
		{ID: 1, Options: []string{"a", "b", "c", "d"}},
		{ID: 1, Options: []string{"a", "b", "c", "d"}},
	})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	_, err = New([]domain.Question{{ID: 1, Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 4}})
	if err == nil {
		t.Fatalf("expected out of range answer error")
	}
}

func TestRandomReturnsBankQuestion(t *testing.T) {
	b := Default()
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		q := b.Random(rnd)
		if _, ok := b.Lookup(q.ID); !ok {
			t.Fatalf("random returned unknown question %d", q.ID)
		}
	}
}
