package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"trivia-session-service/internal/domain"
)

// QuestionLoader fetches the question bank from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the question bank with TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	bank      map[int64]domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) ListQuestionIDs(ctx context.Context) ([]int64, error) {
	bank, err := r.load(ctx)
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

func (r *QuestionRepository) GetQuestions(ctx context.Context, ids []int64) (map[int64]domain.Question, error) {
	bank, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]domain.Question, len(ids))
	for _, id := range ids {
		if q, ok := bank[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (r *QuestionRepository) load(ctx context.Context) (map[int64]domain.Question, error) {
	if bank, ok := r.cached(); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do("bank", func() (interface{}, error) {
		if bank, ok := r.cached(); ok {
			return bank, nil
		}

		questions, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		bank := make(map[int64]domain.Question, len(questions))
		for _, q := range questions {
			bank[q.ID] = q
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.bank = bank
		r.expiresAt = expiresAt
		r.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[int64]domain.Question), nil
}

func (r *QuestionRepository) cached() (map[int64]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.bank != nil && r.expiresAt.After(r.clock()) {
		return r.bank, true
	}
	return nil, false
}

// ttlWithJitter is only called from inside the singleflight group, which
// serializes access to rnd.
func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a simple loader backed by a slice (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return append([]domain.Question(nil), l.questions...), nil
}
