package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"live-quiz-service/internal/bank"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
	"live-quiz-service/internal/scoring"
)

// answerGrace tolerates client/server skew (one poll interval plus network) when
// checking the answer window on the server.
const answerGrace = 2 * time.Second

// Ledger records live answers and keeps participant results in sync.
type Ledger struct {
	states  StateStore
	results ResultStore
	users   UserStore
	bank    *bank.Bank
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	enforceWindow bool
	onChange      func()
}

// LedgerOptions configures server side enforcement and hooks.
type LedgerOptions struct {
	// EnforceWindow rejects answers outside the live question and its time window.
	EnforceWindow bool
	Now           func() time.Time
	OnChange      func()
	Metrics       *metrics.Metrics
}

func NewLedger(states StateStore, results ResultStore, users UserStore, questions *bank.Bank, log zerolog.Logger, opts LedgerOptions) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	return &Ledger{
		states:        states,
		results:       results,
		users:         users,
		bank:          questions,
		log:           log.With().Str("component", "ledger").Logger(),
		metrics:       opts.Metrics,
		now:           opts.Now,
		enforceWindow: opts.EnforceWindow,
		onChange:      opts.OnChange,
	}
}

// SubmitAnswer scores a live answer, upserts it and recomputes the participant's result.
func (l *Ledger) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	if sub.UserID == "" {
		return domain.AnswerResult{}, domain.NewValidationError("userId", "userId is required")
	}
	question, err := l.bank.Get(sub.QuestionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if sub.SelectedOption < 0 || sub.SelectedOption >= len(question.Options) {
		return domain.AnswerResult{}, domain.NewValidationError("selectedOption", fmt.Sprintf("must be between 0 and %d", len(question.Options)-1))
	}
	if sub.TimeTaken < 0 || sub.TimeTaken > scoring.DefaultMaxTime {
		return domain.AnswerResult{}, domain.NewValidationError("timeTaken", fmt.Sprintf("must be between 0 and %v", scoring.DefaultMaxTime))
	}

	state, err := l.states.Load(ctx)
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("load quiz state: %w", err)
	}
	if l.enforceWindow {
		if err := l.checkLive(state, sub); err != nil {
			return domain.AnswerResult{}, err
		}
	}

	isCorrect := sub.SelectedOption == question.CorrectAnswer
	isFirst := false
	if isCorrect {
		isFirst, err = l.results.ClaimFirstCorrect(ctx, state.Round, sub.QuestionID, sub.UserID)
		if err != nil {
			return domain.AnswerResult{}, fmt.Errorf("claim first correct: %w", err)
		}
	}
	isCorrect, points := scoring.Score(sub.SelectedOption, question.CorrectAnswer, sub.TimeTaken, isFirst)

	now := l.now()
	rec := domain.AnswerRecord{
		UserID:         sub.UserID,
		QuestionID:     sub.QuestionID,
		SelectedOption: sub.SelectedOption,
		IsCorrect:      isCorrect,
		TimeTaken:      sub.TimeTaken,
		PointsEarned:   points,
		AnsweredAt:     now,
		Round:          state.Round,
	}
	if err := l.results.UpsertAnswer(ctx, rec); err != nil {
		return domain.AnswerResult{}, fmt.Errorf("store answer: %w", err)
	}

	name, rollNo := sub.Name, sub.RollNo
	if name == "" || rollNo == "" {
		if u, err := l.users.Get(ctx, sub.UserID); err == nil {
			name, rollNo = u.Name, u.RollNo
		} else if !errors.Is(err, domain.ErrNotFound) {
			l.log.Warn().Err(err).Str("user_id", sub.UserID).Msg("user lookup failed")
		}
	}

	_, err = l.results.UpdateResult(ctx, sub.UserID, func(r *domain.ParticipantResult, exists bool) error {
		if !exists || r.Round != state.Round {
			*r = newRoundResult(r, exists, sub.UserID, state, now)
		}
		if name != "" {
			r.Name = name
		}
		if rollNo != "" {
			r.RollNo = rollNo
		}
		r.Answers = upsertAnswer(r.Answers, rec)
		recompute(r)
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("update result: %w", err)
	}

	l.metrics.Answer(isCorrect)
	l.log.Debug().
		Str("user_id", sub.UserID).
		Int("question_id", sub.QuestionID).
		Bool("correct", isCorrect).
		Bool("first", isFirst).
		Int("points", points).
		Msg("answer recorded")
	l.onChange()
	return domain.AnswerResult{IsCorrect: isCorrect, PointsEarned: points}, nil
}

// checkLive enforces that a question is active, that the answer targets either the
// broadcast question or the user's own question at the broadcast index, and that the
// window has not closed.
func (l *Ledger) checkLive(state domain.QuizState, sub domain.AnswerSubmission) error {
	if !state.IsActive || state.QuestionStartTime == nil {
		return domain.ErrQuizNotActive
	}
	current := state.CurrentQuestionID != nil && *state.CurrentQuestionID == sub.QuestionID
	if !current {
		own, ok := l.bank.UserQuestionAt(sub.UserID, state.TotalQuestions, state.CurrentQuestionIndex)
		current = ok && own == sub.QuestionID
	}
	if !current {
		return domain.ErrQuestionNotCurrent
	}
	if l.now().Sub(*state.QuestionStartTime) > domain.AnswerWindow+answerGrace {
		return domain.ErrAnswerWindowClosed
	}
	return nil
}

// newRoundResult starts a fresh aggregate for the current round, keeping identity
// fields of a result carried over from an earlier round.
func newRoundResult(prev *domain.ParticipantResult, exists bool, userID string, state domain.QuizState, now time.Time) domain.ParticipantResult {
	r := domain.ParticipantResult{
		UserID:         userID,
		TotalQuestions: state.TotalQuestions,
		Round:          state.Round,
		CompletedAt:    now,
	}
	if exists {
		r.Name = prev.Name
		r.RollNo = prev.RollNo
		r.MobileNo = prev.MobileNo
		r.Email = prev.Email
	}
	if r.TotalQuestions <= 0 {
		r.TotalQuestions = domain.DefaultTotalQuestions
	}
	return r
}

func upsertAnswer(answers []domain.AnswerRecord, rec domain.AnswerRecord) []domain.AnswerRecord {
	out := make([]domain.AnswerRecord, 0, len(answers)+1)
	replaced := false
	for _, a := range answers {
		if a.QuestionID == rec.QuestionID {
			out = append(out, rec)
			replaced = true
			continue
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, rec)
	}
	return out
}

// recompute derives score, points, percentage and reward eligibility from answers.
func recompute(r *domain.ParticipantResult) {
	score, points := 0, 0
	for _, a := range r.Answers {
		if a.IsCorrect {
			score++
		}
		points += a.PointsEarned
	}
	r.Score = score
	r.TotalPoints = points
	r.Percentage = scoring.Percentage(score, r.TotalQuestions)
	r.IsEligibleForReward = r.Percentage >= domain.RewardThreshold
}

// History returns every stored answer of a user for a round, in question id order.
func (l *Ledger) History(ctx context.Context, userID string, round int) ([]domain.AnswerRecord, error) {
	answers, err := l.results.Answers(ctx, userID, round)
	if err != nil {
		return nil, err
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return answers, nil
}

func (l *Ledger) currentResults(ctx context.Context) ([]domain.ParticipantResult, error) {
	state, err := l.states.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quiz state: %w", err)
	}
	all, err := l.results.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return filterRound(all, state.Round), nil
}
