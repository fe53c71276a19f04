package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"trivia-session-service/internal/domain"
)

const questionsKey = "trivia:questions"

// QuestionLoader fetches the question bank from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the question bank in one Redis hash
// (HSET trivia:questions {id} {json}) and refills it from the loader when
// the hash is missing or a requested question is absent.
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) ListQuestionIDs(ctx context.Context) ([]int64, error) {
	fields, err := r.client.HKeys(ctx, questionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	if len(fields) == 0 {
		bank, err := r.refill(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(bank))
		for id := range bank {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids, nil
	}

	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad question id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, ids []int64) (map[int64]domain.Question, error) {
	out := make(map[int64]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.FormatInt(id, 10)
	}

	values, err := r.client.HMGet(ctx, questionsKey, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	missing := false
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = true
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("decode question %d: %w", ids[i], err)
		}
		out[ids[i]] = q
	}
	if !missing {
		return out, nil
	}

	bank, err := r.refill(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if q, ok := bank[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

// refill loads the full bank and rewrites the cache hash. Concurrent misses
// share one load.
func (r *QuestionRepository) refill(ctx context.Context) (map[int64]domain.Question, error) {
	result, err, _ := r.sf.Do(questionsKey, func() (interface{}, error) {
		questions, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		bank := make(map[int64]domain.Question, len(questions))
		values := make(map[string]interface{}, len(questions))
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("encode question %d: %w", q.ID, err)
			}
			bank[q.ID] = q
			values[strconv.FormatInt(q.ID, 10)] = raw
		}
		if len(values) == 0 {
			return bank, nil
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, questionsKey)
		pipe.HSet(ctx, questionsKey, values)
		if ttl > 0 {
			pipe.Expire(ctx, questionsKey, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[int64]domain.Question), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
