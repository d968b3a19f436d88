package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

const resultPrefix = "quiz:result"

// ResultStore keeps the answer ledger and participant results in Redis.
//
//	HSET quiz:answers:{round}:{userID} {questionID} {answer json}
//	SETNX quiz:first:{round}:{questionID} {userID}
//	SET quiz:result:{userID} {result json}, SADD quiz:results {userID}
//	SET quiz:result:idx:{roll|mobile|email}:{value} {userID}
type ResultStore struct {
	client *redis.Client
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client}
}

func (s *ResultStore) UpsertAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	return s.client.HSet(ctx, answersKey(rec.Round, rec.UserID), strconv.Itoa(rec.QuestionID), raw).Err()
}

func (s *ResultStore) Answers(ctx context.Context, userID string, round int) ([]domain.AnswerRecord, error) {
	fields, err := s.client.HGetAll(ctx, answersKey(round, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	out := make([]domain.AnswerRecord, 0, len(fields))
	for _, raw := range fields {
		var rec domain.AnswerRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode answer: %w", err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s *ResultStore) ClaimFirstCorrect(ctx context.Context, round, questionID int, userID string) (bool, error) {
	key := firstCorrectKey(round, questionID)
	won, err := s.client.SetNX(ctx, key, userID, 0).Result()
	if err != nil {
		return false, err
	}
	if won {
		return true, nil
	}
	holder, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return holder == userID, nil
}

func (s *ResultStore) UpdateResult(ctx context.Context, userID string, fn func(r *domain.ParticipantResult, exists bool) error) (domain.ParticipantResult, error) {
	key := resultKey(userID)
	var out domain.ParticipantResult
	err := watch(ctx, s.client, func(tx *redis.Tx) error {
		cur, exists, err := readResult(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(&cur, exists); err != nil {
			return err
		}
		cur.UserID = userID
		raw, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.SAdd(ctx, resultsSetKey, userID)
			for _, idx := range identityKeys(resultPrefix, cur.RollNo, cur.MobileNo, cur.Email) {
				pipe.SetNX(ctx, idx, userID, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		out = cur
		return nil
	}, key)
	if err != nil {
		return domain.ParticipantResult{}, err
	}
	return out, nil
}

func (s *ResultStore) CreateResult(ctx context.Context, r domain.ParticipantResult) error {
	key := resultKey(r.UserID)
	idx := identityKeys(resultPrefix, r.RollNo, r.MobileNo, r.Email)
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	watched := append([]string{key}, idx...)
	return watch(ctx, s.client, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, watched...).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrAlreadyCompleted
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			pipe.SAdd(ctx, resultsSetKey, r.UserID)
			for _, k := range idx {
				pipe.Set(ctx, k, r.UserID, 0)
			}
			return nil
		})
		return err
	}, watched...)
}

func (s *ResultStore) GetResult(ctx context.Context, userID string) (domain.ParticipantResult, error) {
	r, exists, err := readResult(ctx, s.client, resultKey(userID))
	if err != nil {
		return domain.ParticipantResult{}, err
	}
	if !exists {
		return domain.ParticipantResult{}, domain.ErrResultNotFound
	}
	return r, nil
}

func (s *ResultStore) FindResult(ctx context.Context, identity domain.Identity) (domain.ParticipantResult, error) {
	for _, idx := range identityKeys(resultPrefix, identity.RollNo, identity.MobileNo, identity.Email) {
		userID, err := s.client.Get(ctx, idx).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return domain.ParticipantResult{}, err
		}
		return s.GetResult(ctx, userID)
	}
	return domain.ParticipantResult{}, domain.ErrResultNotFound
}

func (s *ResultStore) ListResults(ctx context.Context) ([]domain.ParticipantResult, error) {
	ids, err := s.client.SMembers(ctx, resultsSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list result ids: %w", err)
	}
	if len(ids) == 0 {
		return []domain.ParticipantResult{}, nil
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = resultKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	out := make([]domain.ParticipantResult, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var r domain.ParticipantResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func readResult(ctx context.Context, c getter, key string) (domain.ParticipantResult, bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ParticipantResult{}, false, nil
	}
	if err != nil {
		return domain.ParticipantResult{}, false, fmt.Errorf("read result: %w", err)
	}
	var r domain.ParticipantResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.ParticipantResult{}, false, fmt.Errorf("decode result: %w", err)
	}
	return r, true, nil
}
