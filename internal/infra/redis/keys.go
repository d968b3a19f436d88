package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	stateKey       = "quiz:state"
	resultsSetKey  = "quiz:results"
	visitorsSetKey = "quiz:visitors"
	questionsKey   = "quiz:questions"
)

func answersKey(round int, userID string) string {
	return fmt.Sprintf("quiz:answers:%d:%s", round, userID)
}

func firstCorrectKey(round, questionID int) string {
	return fmt.Sprintf("quiz:first:%d:%d", round, questionID)
}

func resultKey(userID string) string {
	return "quiz:result:" + userID
}

func userKey(id string) string {
	return "quiz:user:" + id
}

func visitorKey(id string) string {
	return "quiz:visitor:" + id
}

// identityKeys returns index keys for the non-empty identifiers, roll number first.
func identityKeys(prefix, rollNo, mobileNo, email string) []string {
	keys := make([]string, 0, 3)
	if rollNo != "" {
		keys = append(keys, prefix+":idx:roll:"+rollNo)
	}
	if mobileNo != "" {
		keys = append(keys, prefix+":idx:mobile:"+mobileNo)
	}
	if email != "" {
		keys = append(keys, prefix+":idx:email:"+email)
	}
	return keys
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// maxTxRetries bounds optimistic transaction retries under contention.
const maxTxRetries = 32

// ErrContention is returned when an optimistic transaction keeps losing races.
var ErrContention = errors.New("redis: too much contention on watched keys")

// watch runs fn in a WATCH/MULTI transaction over keys, retrying when a watched key changes.
func watch(ctx context.Context, client *redis.Client, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}
