package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/miradorstack/habit-ml/internal/config"
	"github.com/miradorstack/habit-ml/internal/metrics"
	"github.com/miradorstack/habit-ml/internal/utils"
)

// RootOptions holds global flags and the state bootstrapped from them.
type RootOptions struct {
	ConfigPath string
	LogLevel   string

	cfg           *config.Config
	logger        *slog.Logger
	metricsServer *http.Server
}

// NewRootCommand creates the root command for the habit-ml CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "habit-ml",
		Short: "Habit success prediction",
		Long:  "Feature engineering, training and scoring for the habit success model.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.bootstrap(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			opts.shutdown()
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to configuration file (defaults to $HABIT_ML_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(NewTrainCommand(opts))
	cmd.AddCommand(NewPredictCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

func (o *RootOptions) bootstrap(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	o.cfg = cfg
	o.logger = utils.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.JSON)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	if cfg.Metrics.Address != "" {
		o.startMetrics(cfg.Metrics.Address)
	}
	return nil
}

func (o *RootOptions) startMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	o.metricsServer = &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	server := o.metricsServer
	go func() {
		o.logger.Info("metrics server listening", slog.String("address", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.logger.Error("metrics server exited", slog.Any("error", err))
		}
	}()
}

func (o *RootOptions) shutdown() {
	if o.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.metricsServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		o.logger.Warn("metrics server shutdown", slog.Any("error", err))
	}
	o.metricsServer = nil
}
