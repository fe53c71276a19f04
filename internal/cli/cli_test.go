package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trivia-session-service/internal/config"
)

func TestBuiltinQuestionBank(t *testing.T) {
	questions, err := loadQuestionFile("")
	if err != nil {
		t.Fatalf("load builtin: %v", err)
	}
	if len(questions) < 10 {
		t.Fatalf("expected at least 10 builtin questions, got %d", len(questions))
	}
	seen := make(map[int64]bool)
	for _, q := range questions {
		if seen[q.ID] {
			t.Fatalf("duplicate question id %d", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestLoadQuestionFileValidates(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	body := "- text: Short\n  answers: [a, b, c]\n  correct: 0\n"
	if err := os.WriteFile(bad, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadQuestionFile(bad); err == nil {
		t.Fatalf("expected error for three answers")
	}

	outOfRange := filepath.Join(dir, "range.yaml")
	body = "- text: Range\n  answers: [a, b, c, d]\n  correct: 4\n"
	if err := os.WriteFile(outOfRange, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadQuestionFile(outOfRange); err == nil {
		t.Fatalf("expected error for correct index 4")
	}

	good := filepath.Join(dir, "good.yaml")
	body = "- text: Good\n  answers: [a, b, c, d]\n  correct: 3\n"
	if err := os.WriteFile(good, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	questions, err := loadQuestionFile(good)
	if err != nil {
		t.Fatalf("load good: %v", err)
	}
	if len(questions) != 1 || questions[0].ID != 1 || questions[0].Answers[3] != "d" {
		t.Fatalf("unexpected questions %+v", questions)
	}
}

func TestBuildServiceInMemory(t *testing.T) {
	cfg := config.Config{Game: config.DefaultGame()}
	service, err := buildService(cfg, nil, nil, time.Minute)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	rules := service.Rules()
	if rules.QuestionTimeLimit != 20*time.Second || rules.PollInterval != 2*time.Second || rules.Scoring.BasePoints != 10 {
		t.Fatalf("unexpected rules %+v", rules)
	}

	history, err := service.History(context.Background(), 10)
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %v %v", history, err)
	}
}
