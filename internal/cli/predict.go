package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/habit-ml/internal/models"
	"github.com/miradorstack/habit-ml/internal/services"
)

// PredictOptions holds flags for the predict command.
type PredictOptions struct {
	Model string
	Input string
	User  string
	AsOf  string
}

// NewPredictCommand creates the predict command.
func NewPredictCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PredictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score habits with a saved model",
		Long: `Score every habit in --input, or every active habit of --user loaded from the
database, and print success probability, risk category and recommendations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "saved model name (e.g. habit_success_model_20240615)")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "JSON file with habit history")
	cmd.Flags().StringVar(&opts.User, "user", "", "score the active habits of this user from the database")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "reference time (defaults to now)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runPredict(cmd *cobra.Command, rootOpts *RootOptions, opts *PredictOptions) error {
	if (opts.Input == "") == (opts.User == "") {
		return errors.New("exactly one of --input or --user is required")
	}
	reference, err := parseReference(opts.AsOf)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg, logger := rootOpts.cfg, rootOpts.logger

	pred, release, err := loadModel(ctx, cfg, logger, opts.Model)
	if err != nil {
		return err
	}
	defer release()

	rules, err := newRules(cfg, logger)
	if err != nil {
		return err
	}
	provider := openCache(ctx, cfg, logger)
	defer provider.Close()

	svc := services.NewScoringService(logger, newEngineer(cfg), pred, rules, provider, cfg.Cache.ScoreTTL)

	var scores []models.HabitScore
	if opts.User != "" {
		habits, closeDB, err := openRepository(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB()
		lookback := time.Duration(cfg.Training.LookbackDays) * 24 * time.Hour
		scores, err = svc.WithHabitSource(habits, lookback).ScoreUser(ctx, opts.User, reference)
		if err != nil {
			return err
		}
	} else {
		in, err := readHabitInput(opts.Input)
		if err != nil {
			return err
		}
		for _, record := range in.Habits {
			score, err := svc.ScoreHabit(ctx, record, in.userContext(record.UserID), reference)
			if err != nil {
				return err
			}
			scores = append(scores, score)
		}
	}
	return writeJSON(cmd.OutOrStdout(), scores)
}
