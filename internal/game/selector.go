package game

import (
	"math/rand"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// Selector samples question IDs for new sessions.
type Selector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector() *Selector {
	return NewSelectorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSelectorWithSource is used by tests that need a reproducible sample.
func NewSelectorWithSource(src rand.Source) *Selector {
	return &Selector{rnd: rand.New(src)}
}

// Select returns min(count, len(ids)) distinct IDs in random order.
func (s *Selector) Select(ids []int64, count int) ([]int64, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptyQuestionBank
	}
	shuffled := make([]int64, len(ids))
	copy(shuffled, ids)

	s.mu.Lock()
	for i := len(shuffled) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	s.mu.Unlock()

	if count < 0 {
		count = 0
	}
	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count], nil
}
