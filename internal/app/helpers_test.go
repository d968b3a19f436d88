package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"live-quiz-service/internal/bank"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock   *fakeClock
	bank    *bank.Bank
	states  *memory.StateStore
	results *memory.ResultStore
	users   *memory.UserStore
	machine *StateMachine
	ledger  *Ledger
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()
	f := &fixture{
		clock:   newFakeClock(),
		bank:    bank.Default(),
		states:  memory.NewStateStore(),
		results: memory.NewResultStore(),
		users:   memory.NewUserStore(),
	}
	f.machine = NewStateMachine(f.states, f.bank, zerolog.Nop(), StateMachineOptions{
		Now:           f.clock.Now,
		CountdownTick: 5 * time.Millisecond,
	})
	f.ledger = NewLedger(f.states, f.results, f.users, f.bank, zerolog.Nop(), LedgerOptions{
		EnforceWindow: enforce,
		Now:           f.clock.Now,
	})
	t.Cleanup(f.machine.Close)
	return f
}

func (f *fixture) apply(t *testing.T, cmd Command) domain.QuizState {
	t.Helper()
	state, err := f.machine.Apply(context.Background(), cmd)
	if err != nil {
		t.Fatalf("apply %s: %v", cmd.Action, err)
	}
	return state
}

func (f *fixture) correctAnswer(t *testing.T, questionID int) int {
	t.Helper()
	q, err := f.bank.Get(questionID)
	if err != nil {
		t.Fatalf("question %d: %v", questionID, err)
	}
	return q.CorrectAnswer
}

func intPtr(v int) *int {
	return &v
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
