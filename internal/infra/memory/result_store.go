package memory

import (
	"context"
	"sort"
	"sync"

	"live-quiz-service/internal/domain"
)

type answerKey struct {
	userID     string
	questionID int
	round      int
}

type claimKey struct {
	round      int
	questionID int
}

// ResultStore keeps the answer ledger, first-correct claims and participant
// results behind one mutex.
type ResultStore struct {
	mu      sync.Mutex
	answers map[answerKey]domain.AnswerRecord
	claims  map[claimKey]string
	results map[string]domain.ParticipantResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		answers: make(map[answerKey]domain.AnswerRecord),
		claims:  make(map[claimKey]string),
		results: make(map[string]domain.ParticipantResult),
	}
}

func (s *ResultStore) UpsertAnswer(_ context.Context, rec domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answerKey{userID: rec.UserID, questionID: rec.QuestionID, round: rec.Round}] = rec
	return nil
}

func (s *ResultStore) Answers(_ context.Context, userID string, round int) ([]domain.AnswerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AnswerRecord, 0)
	for k, rec := range s.answers {
		if k.userID == userID && k.round == round {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *ResultStore) ClaimFirstCorrect(_ context.Context, round, questionID int, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := claimKey{round: round, questionID: questionID}
	holder, ok := s.claims[key]
	if !ok {
		s.claims[key] = userID
		return true, nil
	}
	return holder == userID, nil
}

func (s *ResultStore) UpdateResult(_ context.Context, userID string, fn func(r *domain.ParticipantResult, exists bool) error) (domain.ParticipantResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.results[userID]
	next := cur.Clone()
	if err := fn(&next, exists); err != nil {
		return domain.ParticipantResult{}, err
	}
	next.UserID = userID
	s.results[userID] = next.Clone()
	return next.Clone(), nil
}

func (s *ResultStore) CreateResult(_ context.Context, r domain.ParticipantResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.UserID]; ok {
		return domain.ErrAlreadyCompleted
	}
	for _, existing := range s.results {
		if r.Identity().Matches(existing.Identity()) {
			return domain.ErrAlreadyCompleted
		}
	}
	s.results[r.UserID] = r.Clone()
	return nil
}

func (s *ResultStore) GetResult(_ context.Context, userID string) (domain.ParticipantResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[userID]
	if !ok {
		return domain.ParticipantResult{}, domain.ErrResultNotFound
	}
	return r.Clone(), nil
}

func (s *ResultStore) FindResult(_ context.Context, identity domain.Identity) (domain.ParticipantResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identity.Empty() {
		return domain.ParticipantResult{}, domain.ErrResultNotFound
	}
	for _, r := range s.sortedLocked() {
		if identity.Matches(r.Identity()) {
			return r.Clone(), nil
		}
	}
	return domain.ParticipantResult{}, domain.ErrResultNotFound
}

func (s *ResultStore) ListResults(_ context.Context) ([]domain.ParticipantResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := s.sortedLocked()
	out := make([]domain.ParticipantResult, len(sorted))
	for i, r := range sorted {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *ResultStore) sortedLocked() []domain.ParticipantResult {
	out := make([]domain.ParticipantResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
