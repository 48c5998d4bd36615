package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/habit-ml/internal/features"
	"github.com/miradorstack/habit-ml/internal/models"
)

// Builder turns habit records into a labelled dataset.
type Builder struct {
	logger   *slog.Logger
	engineer *features.Engineer
	workers  int
}

// NewBuilder constructs a Builder. workers bounds concurrent feature computation; values
// below 1 compute sequentially.
func NewBuilder(logger *slog.Logger, engineer *features.Engineer, workers int) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if engineer == nil {
		engineer = features.NewEngineer()
	}
	if workers < 1 {
		workers = 1
	}
	return &Builder{logger: logger, engineer: engineer, workers: workers}
}

// Build produces one row per record in input order. contexts is keyed by user id and may be
// nil. The label is 1 when the habit is active or completed. The first feature error aborts
// the build and names the offending habit.
func (b *Builder) Build(ctx context.Context, records []models.HabitRecord, contexts map[string]models.UserContext, reference time.Time) (Dataset, error) {
	rows := make([]Row, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range records {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec := records[i]
			var userCtx *models.UserContext
			if uc, ok := contexts[rec.UserID]; ok {
				userCtx = &uc
			}
			vector, err := b.engineer.Compute(rec, userCtx, reference)
			if err != nil {
				return fmt.Errorf("build dataset: habit %s: %w", rec.ID, err)
			}
			label := 0
			if rec.Maintained() {
				label = 1
			}
			rows[i] = Row{HabitID: rec.ID, UserID: rec.UserID, Features: vector, Label: label}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	ds := Dataset{LabelColumn: LabelColumn, Rows: rows}
	b.logger.Debug("dataset built", "rows", ds.Len(), "positives", ds.Positives())
	return ds, nil
}
