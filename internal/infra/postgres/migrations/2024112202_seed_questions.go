package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/bank"
)

// QuestionRow maps the questions table.
type QuestionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID            int      `bun:"id,pk"`
	Position      int      `bun:"position,notnull"`
	Question      string   `bun:"question,notnull"`
	Options       []string `bun:"options,type:jsonb,notnull"`
	CorrectAnswer int      `bun:"correct_answer,notnull"`
	Category      string   `bun:"category,notnull"`
}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			questions := bank.DefaultQuestions()
			rows := make([]QuestionRow, len(questions))
			for i, q := range questions {
				rows[i] = QuestionRow{
					ID:            q.ID,
					Position:      i,
					Question:      q.Question,
					Options:       q.Options,
					CorrectAnswer: q.CorrectAnswer,
					Category:      q.Category,
				}
			}
			_, err := db.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			ids := bank.Default().IDs()
			_, err := db.NewDelete().Model((*QuestionRow)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx)
			return err
		},
	)
}
