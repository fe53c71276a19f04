package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"trivia-session-service/internal/domain"
)

type questionModel struct {
	bun.BaseModel `bun:"table:questions"`

	ID           int64    `bun:"id,pk,autoincrement"`
	Text         string   `bun:"text,notnull"`
	Answers      []string `bun:"answers,type:jsonb"`
	CorrectIndex int      `bun:"correct_index"`
	Difficulty   string   `bun:"difficulty"`
	Category     string   `bun:"category"`
}

// SeedQuestions inserts questions that are not in the bank yet, matching on
// text. It returns how many rows were inserted.
func SeedQuestions(ctx context.Context, db *bun.DB, questions []domain.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	models := make([]questionModel, 0, len(questions))
	for _, q := range questions {
		if q.CorrectIndex < 0 || q.CorrectIndex >= domain.AnswerCount {
			return 0, fmt.Errorf("question %q: correct index %d out of range", q.Text, q.CorrectIndex)
		}
		models = append(models, questionModel{
			Text:         q.Text,
			Answers:      q.Answers[:],
			CorrectIndex: q.CorrectIndex,
			Difficulty:   q.Difficulty,
			Category:     q.Category,
		})
	}

	res, err := db.NewInsert().
		Model(&models).
		ExcludeColumn("id").
		On("CONFLICT (text) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed questions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
