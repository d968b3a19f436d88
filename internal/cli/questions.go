package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/logger"
)

// NewQuestionsCmd prints the question bank, or one participant's question order.
func NewQuestionsCmd(configPath *string) *cobra.Command {
	var (
		userID string
		count  int
	)
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Print the question bank or a participant's shuffled questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

			b, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			qb, err := loadBank(cmd.Context(), cfg, b, log)
			if err != nil {
				return err
			}

			out := qb.Questions()
			if userID != "" {
				if count < 1 || count > domain.MaxTotalQuestions {
					return fmt.Errorf("--count must be between 1 and %d", domain.MaxTotalQuestions)
				}
				ids := qb.UserQuestions(userID, count)
				out = make([]domain.Question, 0, len(ids))
				for _, id := range ids {
					q, _ := qb.Lookup(id)
					out = append(out, q)
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "participant id to shuffle for")
	cmd.Flags().IntVar(&count, "count", domain.DefaultTotalQuestions, "number of questions for --user")
	return cmd
}
