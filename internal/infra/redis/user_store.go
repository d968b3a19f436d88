package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

const userPrefix = "quiz:user"

// UserStore keeps participants as JSON with one index key per identifier so
// uniqueness is checked and claimed in a single transaction.
type UserStore struct {
	client *redis.Client
}

func NewUserStore(client *redis.Client) *UserStore {
	return &UserStore{client: client}
}

func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	key := userKey(u.ID)
	idx := identityKeys(userPrefix, u.RollNo, u.MobileNo, u.Email)
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	watched := append([]string{key}, idx...)
	return watch(ctx, s.client, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, watched...).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrUserExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			for _, k := range idx {
				pipe.Set(ctx, k, u.ID, 0)
			}
			return nil
		})
		return err
	}, watched...)
}

func (s *UserStore) Get(ctx context.Context, id string) (domain.User, error) {
	raw, err := s.client.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("read user: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

func (s *UserStore) Find(ctx context.Context, identity domain.Identity) (domain.User, error) {
	for _, idx := range identityKeys(userPrefix, identity.RollNo, identity.MobileNo, identity.Email) {
		id, err := s.client.Get(ctx, idx).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return domain.User{}, err
		}
		return s.Get(ctx, id)
	}
	return domain.User{}, domain.ErrUserNotFound
}
