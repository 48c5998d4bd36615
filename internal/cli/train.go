package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miradorstack/habit-ml/internal/dataset"
	"github.com/miradorstack/habit-ml/internal/trainer"
	"github.com/miradorstack/habit-ml/internal/validation"
)

// TrainOptions holds flags for the train command.
type TrainOptions struct {
	Input  string
	FromDB bool
}

// NewTrainCommand creates the train command.
func NewTrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrainOptions{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and save a habit success model",
		Long: `Build a training dataset from habit history, fit the classifier, save the
versioned model pair and run the deployment gates when validation is enabled.

History comes from --input (a JSON document with "habits" and optional
"contexts") or, with --from-db, from the configured Postgres database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "JSON file with habit history")
	cmd.Flags().BoolVar(&opts.FromDB, "from-db", false, "load habit history from the database")

	return cmd
}

func runTrain(cmd *cobra.Command, rootOpts *RootOptions, opts *TrainOptions) error {
	if (opts.Input == "") == !opts.FromDB {
		return errors.New("exactly one of --input or --from-db is required")
	}
	ctx := cmd.Context()
	cfg, logger := rootOpts.cfg, rootOpts.logger

	store, release, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	var validator *validation.Validator
	if cfg.Validation.Enabled {
		validator = validation.New(logger, cfg.Validation.Config)
	}
	publisher := openPublisher(cfg, logger)
	defer publisher.Close()

	pipeline := trainer.NewPipeline(
		logger,
		dataset.NewBuilder(logger, newEngineer(cfg), cfg.Features.Workers),
		newPredictor(cfg, logger),
		store,
		validator,
		publisher,
		trainer.Options{
			Train:        trainOptions(cfg),
			Balance:      cfg.Training.Balance,
			Seed:         cfg.Training.Params.Seed,
			ModelName:    cfg.Storage.ModelName,
			LookbackDays: cfg.Training.LookbackDays,
		},
	)

	var res trainer.Result
	if opts.FromDB {
		habits, closeDB, err := openRepository(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB()
		res, err = pipeline.TrainFromSource(ctx, habits)
		if err != nil {
			return err
		}
	} else {
		in, err := readHabitInput(opts.Input)
		if err != nil {
			return err
		}
		res, err = pipeline.Run(ctx, in.Habits, in.Contexts)
		if err != nil {
			return err
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if res.Report != nil && !res.Report.Passed {
		return fmt.Errorf("model %s failed validation: %v", res.Name, res.Report.Issues())
	}
	return nil
}
