package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// StateStore keeps the singleton quiz state as JSON under one key. Updates use
// WATCH/MULTI so concurrent writers from several processes never interleave.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

func (s *StateStore) Load(ctx context.Context) (domain.QuizState, error) {
	state, found, err := readState(ctx, s.client)
	if err != nil {
		return domain.QuizState{}, err
	}
	if found {
		return state, nil
	}
	// create the default record; a concurrent creator wins and is read back
	return s.Update(ctx, func(*domain.QuizState) error { return nil })
}

func (s *StateStore) Update(ctx context.Context, fn func(*domain.QuizState) error) (domain.QuizState, error) {
	var out domain.QuizState
	err := watch(ctx, s.client, func(tx *redis.Tx) error {
		state, found, err := readState(ctx, tx)
		if err != nil {
			return err
		}
		if !found {
			state = domain.DefaultQuizState(0)
		}
		if err := fn(&state); err != nil {
			return err
		}
		raw, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode quiz state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, stateKey, raw, 0)
			return nil
		})
		if err != nil {
			return err
		}
		out = state
		return nil
	}, stateKey)
	if err != nil {
		return domain.QuizState{}, err
	}
	return out, nil
}

func readState(ctx context.Context, c getter) (domain.QuizState, bool, error) {
	raw, err := c.Get(ctx, stateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.QuizState{}, false, nil
	}
	if err != nil {
		return domain.QuizState{}, false, fmt.Errorf("read quiz state: %w", err)
	}
	var state domain.QuizState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.QuizState{}, false, fmt.Errorf("decode quiz state: %w", err)
	}
	return state, true, nil
}
