package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VisitorStore counts unique visitors.
//
//	HSETNX quiz:visitor:{id} firstVisit, HINCRBY visitCount, HSET lastVisit
//	SADD quiz:visitors {id}
type VisitorStore struct {
	client *redis.Client
}

func NewVisitorStore(client *redis.Client) *VisitorStore {
	return &VisitorStore{client: client}
}

func (s *VisitorStore) Touch(ctx context.Context, visitorID string, at time.Time) (bool, error) {
	key := visitorKey(visitorID)
	stamp := at.UTC().Format(time.RFC3339Nano)

	var first *redis.BoolCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		first = pipe.HSetNX(ctx, key, "firstVisit", stamp)
		pipe.HSet(ctx, key, "lastVisit", stamp)
		pipe.HIncrBy(ctx, key, "visitCount", 1)
		pipe.SAdd(ctx, visitorsSetKey, visitorID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("touch visitor: %w", err)
	}
	return first.Val(), nil
}

func (s *VisitorStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, visitorsSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count visitors: %w", err)
	}
	return int(n), nil
}
