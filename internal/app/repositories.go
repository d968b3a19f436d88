package app

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
)

// StateStore persists the singleton quiz state. Update must be an atomic
// read-modify-write: fn sees the latest stored value (defaults when absent) and
// its mutation is stored only if fn returns nil.
type StateStore interface {
	Load(ctx context.Context) (domain.QuizState, error)
	Update(ctx context.Context, fn func(*domain.QuizState) error) (domain.QuizState, error)
}

// ResultStore holds the answer ledger and participant results.
type ResultStore interface {
	// UpsertAnswer stores rec keyed by (userID, questionID, round), replacing an earlier one.
	UpsertAnswer(ctx context.Context, rec domain.AnswerRecord) error
	// Answers lists a user's answers for one round ordered by question id.
	Answers(ctx context.Context, userID string, round int) ([]domain.AnswerRecord, error)
	// ClaimFirstCorrect atomically claims the first-correct slot of a question in a round.
	// It reports true when userID holds the claim after the call.
	ClaimFirstCorrect(ctx context.Context, round, questionID int, userID string) (bool, error)
	// UpdateResult atomically reads, mutates and stores the result of userID. exists is false
	// when no result is stored yet; fn must then fill r.
	UpdateResult(ctx context.Context, userID string, fn func(r *domain.ParticipantResult, exists bool) error) (domain.ParticipantResult, error)
	// CreateResult inserts r unless a result with the same user id or any identity field exists.
	CreateResult(ctx context.Context, r domain.ParticipantResult) error
	GetResult(ctx context.Context, userID string) (domain.ParticipantResult, error)
	FindResult(ctx context.Context, identity domain.Identity) (domain.ParticipantResult, error)
	ListResults(ctx context.Context) ([]domain.ParticipantResult, error)
}

// UserStore holds registered participants.
type UserStore interface {
	// Create inserts u, failing with domain.ErrUserExists on any identity collision.
	Create(ctx context.Context, u domain.User) error
	Get(ctx context.Context, id string) (domain.User, error)
	Find(ctx context.Context, identity domain.Identity) (domain.User, error)
}

// VisitorStore counts unique visitors.
type VisitorStore interface {
	// Touch records a visit and reports whether visitorID was seen for the first time.
	Touch(ctx context.Context, visitorID string, at time.Time) (bool, error)
	Count(ctx context.Context) (int, error)
}
