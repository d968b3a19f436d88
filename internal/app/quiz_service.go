package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-quiz-service/internal/bank"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// Stores bundles the repositories the service depends on.
type Stores struct {
	State    StateStore
	Results  ResultStore
	Users    UserStore
	Visitors VisitorStore
}

// Options tunes the service; zero values use production defaults.
type Options struct {
	EnforceWindow     bool
	CountdownTick     time.Duration
	BroadcastInterval time.Duration
	LeaderboardLimit  int
	Admin             AdminCredentials
	Metrics           *metrics.Metrics
	Now               func() time.Time
}

// QuizService wires the live quiz engine: state machine, answer ledger,
// broadcaster, registration and visitor tracking.
type QuizService struct {
	bank        *bank.Bank
	states      StateStore
	machine     *StateMachine
	ledger      *Ledger
	broadcaster *Broadcaster
	registry    *Registry
	visitors    *VisitorCounter
	log         zerolog.Logger
	limit       int

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizService(questions *bank.Bank, stores Stores, log zerolog.Logger, opts Options) *QuizService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LeaderboardLimit <= 0 {
		opts.LeaderboardLimit = DefaultLeaderboardLimit
	}
	s := &QuizService{
		bank:   questions,
		states: stores.State,
		log:    log.With().Str("component", "quiz_service").Logger(),
		limit:  opts.LeaderboardLimit,
		rnd:    rand.New(rand.NewSource(opts.Now().UnixNano())),
	}
	s.broadcaster = NewBroadcaster(s.snapshot, log, BroadcasterOptions{
		Interval: opts.BroadcastInterval,
		Now:      opts.Now,
		Metrics:  opts.Metrics,
	})
	s.machine = NewStateMachine(stores.State, questions, log, StateMachineOptions{
		Now:           opts.Now,
		CountdownTick: opts.CountdownTick,
		OnChange:      s.broadcaster.Notify,
		Metrics:       opts.Metrics,
	})
	s.ledger = NewLedger(stores.State, stores.Results, stores.Users, questions, log, LedgerOptions{
		EnforceWindow: opts.EnforceWindow,
		Now:           opts.Now,
		OnChange:      s.broadcaster.Notify,
		Metrics:       opts.Metrics,
	})
	s.registry = NewRegistry(stores.Users, stores.Results, stores.State, opts.Admin, log)
	s.visitors = NewVisitorCounter(stores.Visitors)
	return s
}

// Run drives periodic snapshot publishing until ctx is done.
func (s *QuizService) Run(ctx context.Context) {
	s.broadcaster.Run(ctx)
}

// Close stops background countdown work.
func (s *QuizService) Close() {
	s.machine.Close()
}

func (s *QuizService) Bank() *bank.Bank { return s.bank }
func (s *QuizService) Registry() *Registry { return s.registry }
func (s *QuizService) Visitors() *VisitorCounter { return s.visitors }
func (s *QuizService) Broadcaster() *Broadcaster { return s.broadcaster }
func (s *QuizService) StateMachine() *StateMachine { return s.machine }
func (s *QuizService) Ledger() *Ledger { return s.ledger }

// State returns the quiz state with the live participant count.
func (s *QuizService) State(ctx context.Context) (domain.QuizState, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return domain.QuizState{}, err
	}
	return snap.QuizState, nil
}

// Apply runs an admin transition.
func (s *QuizService) Apply(ctx context.Context, cmd Command) (domain.QuizState, error) {
	if _, err := s.machine.Apply(ctx, cmd); err != nil {
		return domain.QuizState{}, err
	}
	return s.State(ctx)
}

// SubmitAnswer records a live answer.
func (s *QuizService) SubmitAnswer(ctx context.Context, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	return s.ledger.SubmitAnswer(ctx, sub)
}

// Leaderboard returns the current ranking and, when userID is set, that user's rank.
func (s *QuizService) Leaderboard(ctx context.Context, userID string) ([]domain.LeaderboardEntry, int, error) {
	results, err := s.ledger.currentResults(ctx)
	if err != nil {
		return nil, 0, err
	}
	rank := 0
	if userID != "" {
		rank = RankOf(results, userID)
	}
	return BuildLeaderboard(results, s.limit), rank, nil
}

// Answers returns the user's answers in the current round.
func (s *QuizService) Answers(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "userId is required")
	}
	state, err := s.states.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quiz state: %w", err)
	}
	return s.ledger.History(ctx, userID, state.Round)
}

// Subscribe attaches a live subscriber; see Broadcaster.Subscribe.
func (s *QuizService) Subscribe(ctx context.Context) (<-chan domain.Snapshot, func(), error) {
	return s.broadcaster.Subscribe(ctx)
}

// UserQuestions returns the participant's question sequence without answers.
// A non-positive count uses the quiz's total question count.
func (s *QuizService) UserQuestions(ctx context.Context, userID string, count int) ([]domain.PublicQuestion, error) {
	if userID == "" {
		return nil, domain.NewValidationError("userId", "userId is required")
	}
	if count <= 0 {
		state, err := s.states.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load quiz state: %w", err)
		}
		count = state.TotalQuestions
	}
	if count > domain.MaxTotalQuestions {
		return nil, domain.NewValidationError("count", fmt.Sprintf("must be at most %d", domain.MaxTotalQuestions))
	}
	ids := s.bank.UserQuestions(userID, count)
	out := make([]domain.PublicQuestion, 0, len(ids))
	for _, id := range ids {
		q, _ := s.bank.Lookup(id)
		out = append(out, q.Public())
	}
	return out, nil
}

// RandomQuestion picks a question for the admin to start next.
func (s *QuizService) RandomQuestion() domain.Question {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.bank.Random(s.rnd)
}

func (s *QuizService) snapshot(ctx context.Context) (domain.Snapshot, error) {
	state, err := s.states.Load(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load quiz state: %w", err)
	}
	all, err := s.ledger.results.ListResults(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("list results: %w", err)
	}
	current := filterRound(all, state.Round)
	state.Participants = len(current)
	return domain.Snapshot{
		QuizState:      state,
		QuestionEndsAt: state.QuestionEndsAt(),
		Leaderboard:    BuildLeaderboard(current, s.limit),
	}, nil
}
