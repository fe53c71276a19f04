package cli

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/infra/postgres"
)

// NewSeedCmd inserts questions into Postgres, skipping ones already present.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load questions into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Questions.SeedFile
			}
			return runSeed(cmd.Context(), cfg, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML question file (default: built-in bank)")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, file string) error {
	questions, err := loadQuestionFile(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	db, err := openBunDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	inserted, err := postgres.SeedQuestions(ctx, db, questions)
	if err != nil {
		return err
	}
	log.Printf("seeded %d questions (%d skipped as duplicates)", inserted, len(questions)-inserted)
	return nil
}
