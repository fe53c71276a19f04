package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-session-service/internal/domain"
)

// QuestionLoader loads the question bank from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, text, answers, correct_index, difficulty, category FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &raw, &q.CorrectIndex, &q.Difficulty, &q.Category); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		answers, err := decodeAnswers(raw)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		q.Answers = answers
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func decodeAnswers(raw []byte) ([domain.AnswerCount]string, error) {
	var out [domain.AnswerCount]string
	var answers []string
	if err := json.Unmarshal(raw, &answers); err != nil {
		return out, fmt.Errorf("unmarshal answers: %w", err)
	}
	if len(answers) != domain.AnswerCount {
		return out, fmt.Errorf("expected %d answers, got %d", domain.AnswerCount, len(answers))
	}
	copy(out[:], answers)
	return out, nil
}
