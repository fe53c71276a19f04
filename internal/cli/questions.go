package cli

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"trivia-session-service/internal/domain"
)

//go:embed questions.yaml
var builtinQuestions []byte

// loadQuestionFile reads a YAML question list, or the built-in bank when
// path is empty. Missing IDs are numbered by position.
func loadQuestionFile(path string) ([]domain.Question, error) {
	data := builtinQuestions
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	var questions []domain.Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	for i := range questions {
		q := &questions[i]
		if q.ID == 0 {
			q.ID = int64(i + 1)
		}
		if q.Text == "" {
			return nil, fmt.Errorf("question %d: missing text", i)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= domain.AnswerCount {
			return nil, fmt.Errorf("question %d: correct index %d out of range", i, q.CorrectIndex)
		}
		for j, a := range q.Answers {
			if a == "" {
				return nil, fmt.Errorf("question %d: answer %d is empty", i, j)
			}
		}
	}
	return questions, nil
}
