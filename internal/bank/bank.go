// Package bank holds the read-only question bank and the per-user question shuffle.
package bank

import (
	_ "embed"
	"fmt"
	"math/rand"
	"unicode/utf16"

	"gopkg.in/yaml.v3"

	"live-quiz-service/internal/domain"
)

//go:embed questions.yaml
var defaultQuestionsYAML []byte

// Bank is an immutable, ordered question collection.
type Bank struct {
	questions []domain.Question
	byID      map[int]int
}

// New validates questions and builds a bank. Order is preserved; it is part of the shuffle contract.
func New(questions []domain.Question) (*Bank, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}
	b := &Bank{
		questions: make([]domain.Question, len(questions)),
		byID:      make(map[int]int, len(questions)),
	}
	for i, q := range questions {
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		if len(q.Options) != domain.OptionsPerQuestion {
			return nil, fmt.Errorf("question %d: expected %d options, got %d", q.ID, domain.OptionsPerQuestion, len(q.Options))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return nil, fmt.Errorf("question %d: correct answer %d out of range", q.ID, q.CorrectAnswer)
		}
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		b.questions[i] = q
		b.byID[q.ID] = i
	}
	return b, nil
}

// ParseYAML decodes a `questions:` document.
func ParseYAML(data []byte) ([]domain.Question, error) {
	var doc struct {
		Questions []domain.Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return doc.Questions, nil
}

// DefaultQuestions returns the embedded question set.
func DefaultQuestions() []domain.Question {
	qs, err := ParseYAML(defaultQuestionsYAML)
	if err != nil {
		panic(err)
	}
	return qs
}

// Default builds a bank from the embedded question set.
func Default() *Bank {
	b, err := New(DefaultQuestions())
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// Questions returns a copy of all questions in bank order.
func (b *Bank) Questions() []domain.Question {
	out := make([]domain.Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// IDs returns question ids in bank order.
func (b *Bank) IDs() []int {
	ids := make([]int, len(b.questions))
	for i, q := range b.questions {
		ids[i] = q.ID
	}
	return ids
}

// Lookup returns the question with the given id.
func (b *Bank) Lookup(id int) (domain.Question, bool) {
	i, ok := b.byID[id]
	if !ok {
		return domain.Question{}, false
	}
	return b.questions[i], true
}

// Get is Lookup returning domain.ErrQuestionNotFound for unknown ids.
func (b *Bank) Get(id int) (domain.Question, error) {
	q, ok := b.Lookup(id)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: id %d", domain.ErrQuestionNotFound, id)
	}
	return q, nil
}

// Random picks a question uniformly; the admin uses it to choose each round's question.
func (b *Bank) Random(rnd *rand.Rand) domain.Question {
	return b.questions[rnd.Intn(len(b.questions))]
}

// UserQuestions derives n distinct question ids for userID. The same userID always yields the
// same sequence for a given bank; n is clamped to the bank size.
func (b *Bank) UserQuestions(userID string, n int) []int {
	if n <= 0 {
		return []int{}
	}
	pool := b.IDs()
	if n > len(pool) {
		n = len(pool)
	}
	rnd := newSeededLCG(hashUserID(userID))
	selected := make([]int, 0, n)
	for len(selected) < n {
		idx := int(rnd.next() * float64(len(pool)))
		selected = append(selected, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return selected
}

// UserQuestionAt returns the id the user sees at position index of a quiz with total questions.
func (b *Bank) UserQuestionAt(userID string, total, index int) (int, bool) {
	if index < 0 || index >= total {
		return 0, false
	}
	ids := b.UserQuestions(userID, total)
	if index >= len(ids) {
		return 0, false
	}
	return ids[index], true
}

// hashUserID folds UTF-16 code units as h = h*31 + c with 32-bit wrap-around.
func hashUserID(userID string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(userID)) {
		h = (h << 5) - h + int32(c)
	}
	return h
}

const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

type seededLCG struct {
	seed int64
}

func newSeededLCG(h int32) *seededLCG {
	seed := int64(h)
	if seed < 0 {
		seed = -seed
	}
	return &seededLCG{seed: seed}
}

// next returns a value in [0, 1).
func (l *seededLCG) next() float64 {
	l.seed = (l.seed*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(l.seed) / lcgModulus
}
