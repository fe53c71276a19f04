package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"trivia-session-service/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	repo := NewQuestionRepository(loader, time.Minute)

	ids, err := repo.ListQuestionIDs(context.Background())
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected sorted ids [1 2], got %v", ids)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	found, err := repo.GetQuestions(context.Background(), []int64{2, 99})
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(found) != 1 || found[2].Text != "What is 2 + 2?" {
		t.Fatalf("expected only question 2, got %+v", found)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestQuestionRepositoryReloadsAfterTTL(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	repo := NewQuestionRepository(loader, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.ListQuestionIDs(context.Background()); err != nil {
		t.Fatalf("list ids: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.ListQuestionIDs(context.Background()); err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls.Load())
	}
}

type countingLoader struct {
	QuestionLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls.Add(1)
	return l.QuestionLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:           1,
			Text:         "What is 1 + 1?",
			Answers:      [4]string{"2", "3", "4", "5"},
			CorrectIndex: 0,
			Difficulty:   "easy",
			Category:     "math",
		},
		{
			ID:           2,
			Text:         "What is 2 + 2?",
			Answers:      [4]string{"3", "4", "5", "6"},
			CorrectIndex: 1,
			Difficulty:   "easy",
			Category:     "math",
		},
	}
}
