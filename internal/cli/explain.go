package cli

import (
	"github.com/spf13/cobra"

	"github.com/miradorstack/habit-ml/internal/models"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	Model string
	Input string
	Top   int
	AsOf  string
}

// ExplainedHabit pairs a habit with the explanation of its prediction.
type ExplainedHabit struct {
	HabitID     string             `json:"habit_id"`
	Explanation models.Explanation `json:"explanation"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain predictions for habits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "saved model name")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "JSON file with habit history")
	cmd.Flags().IntVarP(&opts.Top, "top", "n", 5, "number of contributing features to report")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "reference time (defaults to now)")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runExplain(cmd *cobra.Command, rootOpts *RootOptions, opts *ExplainOptions) error {
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

	in, err := readHabitInput(opts.Input)
	if err != nil {
		return err
	}
	engineer := newEngineer(cfg)
	out := make([]ExplainedHabit, 0, len(in.Habits))
	for _, record := range in.Habits {
		v, err := engineer.Compute(record, in.userContext(record.UserID), reference)
		if err != nil {
			return err
		}
		explanation, err := pred.Explain(v, opts.Top)
		if err != nil {
			return err
		}
		out = append(out, ExplainedHabit{HabitID: record.ID, Explanation: explanation})
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
