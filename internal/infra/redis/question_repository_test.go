package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions())}
	repo := NewQuestionRepository(client, loader, time.Minute)

	ids, err := repo.ListQuestionIDs(context.Background())
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected [1 2], got %v", ids)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists(questionsKey) {
		t.Fatalf("expected questions hash to be cached")
	}

	// Second call should hit cache, loader not incremented.
	found, err := repo.GetQuestions(context.Background(), []int64{1, 2})
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if found[2].Answers[1] != "4" || found[2].CorrectIndex != 1 {
		t.Fatalf("unexpected cached question %+v", found[2])
	}
}

func TestQuestionRepositoryRefillsOnMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions())}
	repo := NewQuestionRepository(client, loader, time.Minute)

	if _, err := repo.GetQuestions(context.Background(), []int64{1}); err != nil {
		t.Fatalf("get questions: %v", err)
	}
	mr.HDel(questionsKey, "2")

	found, err := repo.GetQuestions(context.Background(), []int64{2, 99})
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected refill on miss, loader calls=%d", loader.calls)
	}
	if _, ok := found[2]; !ok {
		t.Fatalf("expected question 2 after refill")
	}
	if _, ok := found[99]; ok {
		t.Fatalf("expected unknown question to stay missing")
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What is 1 + 1?", Answers: [4]string{"2", "3", "4", "5"}, CorrectIndex: 0, Difficulty: "easy", Category: "math"},
		{ID: 2, Text: "What is 2 + 2?", Answers: [4]string{"3", "4", "5", "6"}, CorrectIndex: 1, Difficulty: "easy", Category: "math"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
