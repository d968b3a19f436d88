package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-quiz-service/internal/bank"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// Action names an admin transition.
type Action string

const (
	ActionStartCountdown  Action = "start_countdown"
	ActionStartQuestion   Action = "start_question"
	ActionNextQuestion    Action = "next_question"
	ActionEndQuiz         Action = "end_quiz"
	ActionReset           Action = "reset"
	ActionUpdateCountdown Action = "update_countdown"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionStartCountdown, ActionStartQuestion, ActionNextQuestion, ActionEndQuiz, ActionReset, ActionUpdateCountdown:
		return true
	}
	return false
}

// Command is one admin request against the state machine.
type Command struct {
	Action         Action
	QuestionID     *int
	TotalQuestions *int
	CountdownValue *int
}

// StateMachine owns every transition of the shared quiz state. Transitions are
// serialized by mu and each one is a single StateStore.Update.
type StateMachine struct {
	store    StateStore
	bank     *bank.Bank
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	tick     time.Duration
	onChange func()

	// lifetime of background tasks; independent from any request.
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu              sync.Mutex
	cancelCountdown context.CancelFunc
}

// StateMachineOptions tunes clock and countdown cadence; zero values use production defaults.
type StateMachineOptions struct {
	Now           func() time.Time
	CountdownTick time.Duration
	OnChange      func()
	Metrics       *metrics.Metrics
}

func NewStateMachine(store StateStore, questions *bank.Bank, log zerolog.Logger, opts StateMachineOptions) *StateMachine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CountdownTick <= 0 {
		opts.CountdownTick = time.Second
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &StateMachine{
		store:    store,
		bank:     questions,
		log:      log.With().Str("component", "state_machine").Logger(),
		metrics:  opts.Metrics,
		now:      opts.Now,
		tick:     opts.CountdownTick,
		onChange: opts.OnChange,
		ctx:      ctx,
		stop:     stop,
	}
}

// State returns the current state, creating the default record if absent.
func (m *StateMachine) State(ctx context.Context) (domain.QuizState, error) {
	return m.store.Load(ctx)
}

// Apply validates cmd and runs the matching transition.
func (m *StateMachine) Apply(ctx context.Context, cmd Command) (domain.QuizState, error) {
	state, err := m.apply(ctx, cmd)
	m.metrics.Transition(string(cmd.Action), err)
	if err != nil {
		m.log.Debug().Err(err).Str("action", string(cmd.Action)).Msg("transition rejected")
		return domain.QuizState{}, err
	}
	m.log.Info().
		Str("action", string(cmd.Action)).
		Int("index", state.CurrentQuestionIndex).
		Bool("active", state.IsActive).
		Int("round", state.Round).
		Msg("quiz state changed")
	m.onChange()
	return state, nil
}

func (m *StateMachine) apply(ctx context.Context, cmd Command) (domain.QuizState, error) {
	if !cmd.Action.Valid() {
		return domain.QuizState{}, domain.NewValidationError("action", fmt.Sprintf("invalid action %q", cmd.Action))
	}
	if cmd.TotalQuestions != nil && (*cmd.TotalQuestions < 1 || *cmd.TotalQuestions > domain.MaxTotalQuestions) {
		return domain.QuizState{}, domain.NewValidationError("totalQuestions", fmt.Sprintf("must be between 1 and %d", domain.MaxTotalQuestions))
	}
	if cmd.QuestionID != nil {
		if _, err := m.bank.Get(*cmd.QuestionID); err != nil {
			return domain.QuizState{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch cmd.Action {
	case ActionStartCountdown:
		return m.startCountdownLocked(ctx, cmd)
	case ActionStartQuestion:
		if cmd.QuestionID == nil {
			return domain.QuizState{}, domain.NewValidationError("questionId", "questionId is required")
		}
		return m.transitionLocked(ctx, func(s *domain.QuizState) error {
			if s.IsActive || s.Ended() {
				return domain.ErrInvalidTransition
			}
			if err := applyTotal(s, cmd.TotalQuestions); err != nil {
				return err
			}
			m.activate(s, *cmd.QuestionID)
			return nil
		})
	case ActionNextQuestion:
		return m.transitionLocked(ctx, func(s *domain.QuizState) error {
			if s.Ended() {
				return nil
			}
			next := s.CurrentQuestionIndex + 1
			if next >= s.TotalQuestions {
				m.finish(s)
				return nil
			}
			s.CurrentQuestionIndex = next
			if cmd.QuestionID != nil {
				m.activate(s, *cmd.QuestionID)
				return nil
			}
			s.IsActive = false
			s.CurrentQuestionID = nil
			s.QuestionStartTime = nil
			s.CountdownActive = false
			s.CountdownValue = 0
			return nil
		})
	case ActionEndQuiz:
		return m.transitionLocked(ctx, func(s *domain.QuizState) error {
			m.finish(s)
			return nil
		})
	case ActionReset:
		return m.transitionLocked(ctx, func(s *domain.QuizState) error {
			*s = domain.DefaultQuizState(s.Round + 1)
			if cmd.TotalQuestions != nil {
				s.TotalQuestions = *cmd.TotalQuestions
			}
			return nil
		})
	case ActionUpdateCountdown:
		value := 0
		if cmd.CountdownValue != nil {
			value = *cmd.CountdownValue
		}
		if value < 0 || value > domain.CountdownStart {
			return domain.QuizState{}, domain.NewValidationError("countdownValue", fmt.Sprintf("must be between 0 and %d", domain.CountdownStart))
		}
		state, err := m.transitionLocked(ctx, func(s *domain.QuizState) error {
			if s.IsActive {
				return domain.ErrInvalidTransition
			}
			s.CountdownValue = value
			s.CountdownActive = value > 0
			return nil
		})
		if err == nil && state.CountdownActive {
			m.startTickerLocked()
		}
		return state, err
	}
	return domain.QuizState{}, domain.ErrInvalidTransition
}

// transitionLocked stops any running countdown and stores fn's mutation.
func (m *StateMachine) transitionLocked(ctx context.Context, fn func(*domain.QuizState) error) (domain.QuizState, error) {
	state, err := m.store.Update(ctx, func(s *domain.QuizState) error {
		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = m.now()
		return nil
	})
	if err != nil {
		return domain.QuizState{}, err
	}
	m.stopCountdownLocked()
	return state, nil
}

func (m *StateMachine) startCountdownLocked(ctx context.Context, cmd Command) (domain.QuizState, error) {
	state, err := m.store.Update(ctx, func(s *domain.QuizState) error {
		if s.IsActive || s.CountdownActive || s.Ended() {
			return domain.ErrInvalidTransition
		}
		if err := applyTotal(s, cmd.TotalQuestions); err != nil {
			return err
		}
		s.CountdownActive = true
		s.CountdownValue = domain.CountdownStart
		s.UpdatedAt = m.now()
		return nil
	})
	if err != nil {
		return domain.QuizState{}, err
	}

	m.startTickerLocked()
	return state, nil
}

// startTickerLocked replaces any running countdown task with a fresh one that
// counts down from the stored value.
func (m *StateMachine) startTickerLocked() {
	m.stopCountdownLocked()
	cdCtx, cancel := context.WithCancel(m.ctx)
	m.cancelCountdown = cancel
	m.wg.Add(1)
	go m.runCountdown(cdCtx)
}

// runCountdown decrements the countdown once per tick until it reaches zero.
// It holds mu for each step so a concurrent transition either precedes the step
// or cancels it.
func (m *StateMachine) runCountdown(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		done, err := m.countdownStep(ctx)
		if err != nil {
			m.log.Error().Err(err).Msg("countdown step failed")
			return
		}
		m.onChange()
		if done {
			return
		}
	}
}

func (m *StateMachine) countdownStep(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		return true, nil
	}

	done := false
	_, err := m.store.Update(m.ctx, func(s *domain.QuizState) error {
		if !s.CountdownActive {
			done = true
			return nil
		}
		s.CountdownValue--
		if s.CountdownValue <= 0 {
			s.CountdownValue = 0
			s.CountdownActive = false
			done = true
		}
		s.UpdatedAt = m.now()
		return nil
	})
	if done && err == nil {
		m.stopCountdownLocked()
	}
	return done, err
}

func (m *StateMachine) stopCountdownLocked() {
	if m.cancelCountdown != nil {
		m.cancelCountdown()
		m.cancelCountdown = nil
	}
}

func (m *StateMachine) activate(s *domain.QuizState, questionID int) {
	now := m.now()
	id := questionID
	s.IsActive = true
	s.CurrentQuestionID = &id
	s.QuestionStartTime = &now
	s.CountdownActive = false
	s.CountdownValue = 0
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
}

func (m *StateMachine) finish(s *domain.QuizState) {
	now := m.now()
	s.IsActive = false
	s.CurrentQuestionID = nil
	s.QuestionStartTime = nil
	s.CountdownActive = false
	s.CountdownValue = 0
	if s.EndedAt == nil {
		s.EndedAt = &now
	}
}

// applyTotal sets the question count. Once the quiz has started only the
// current value is accepted.
func applyTotal(s *domain.QuizState, total *int) error {
	if total == nil || *total == s.TotalQuestions {
		return nil
	}
	if s.StartedAt != nil {
		return domain.ErrInvalidTransition
	}
	s.TotalQuestions = *total
	return nil
}

// Close stops background countdown work and waits for it to exit.
func (m *StateMachine) Close() {
	m.stop()
	m.wg.Wait()
}
