package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miradorstack/habit-ml/internal/dataset"
	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/registry"
	"github.com/miradorstack/habit-ml/internal/validation"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	Model string
	Input string
	AsOf  string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run deployment gates against a saved model",
		Long: `Check a saved model's recorded test metrics, feature importance and artifact
size against the configured gates. With --input, prediction latency and data
quality are measured on the habits it contains.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "saved model name")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "JSON file with habit history for latency and data checks")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "reference time (defaults to now)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, opts *ValidateOptions) error {
	ctx := cmd.Context()
	cfg, logger := rootOpts.cfg, rootOpts.logger

	store, release, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	pred := newPredictor(cfg, logger)
	if err := pred.Load(ctx, store, opts.Model); err != nil {
		return err
	}
	meta, err := pred.Metadata()
	if err != nil {
		return err
	}
	size, err := registry.ArtifactSize(ctx, store, registry.ModelArtifact(opts.Model))
	if err != nil {
		return err
	}

	validator := validation.New(logger, cfg.Validation.Config)
	input := validation.Input{
		Metrics:           &meta.Metrics,
		FeatureImportance: meta.FeatureImportance,
		ModelSizeBytes:    size,
	}

	if opts.Input != "" {
		reference, err := parseReference(opts.AsOf)
		if err != nil {
			return err
		}
		in, err := readHabitInput(opts.Input)
		if err != nil {
			return err
		}
		ds, err := dataset.NewBuilder(logger, newEngineer(cfg), cfg.Features.Workers).Build(ctx, in.Habits, in.Contexts, reference)
		if err != nil {
			return err
		}
		summary := dataset.Describe(ds)
		input.Data = &summary
		if ds.Len() > 0 {
			samples := make([]features.Vector, 0, ds.Len())
			for _, row := range ds.Rows {
				samples = append(samples, row.Features)
			}
			latency, err := validator.MeasureLatency(pred, samples)
			if err != nil {
				return err
			}
			input.Latency = &latency
		}
	}

	report := validator.Validate(input)
	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if !report.Passed {
		return fmt.Errorf("model %s failed validation: %v", opts.Model, report.Issues())
	}
	return nil
}
