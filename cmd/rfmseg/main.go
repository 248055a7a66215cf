// Command rfmseg segments customers by recency, frequency and monetary value.
//
// It runs the whole pipeline (cleaning, rfm, features, evaluation, clustering,
// profiling) or a single step reading its input from the configured files.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rfmseg/internal/config"
	"rfmseg/internal/infrastructure"
	"rfmseg/internal/operations"
	httptransport "rfmseg/internal/transport/http"
	"rfmseg/pkg/contracts"
)

type runOptions struct {
	configPath  string
	step        string
	kMin        int
	kMax        int
	k           int
	seed        int64
	restarts    int
	metricsAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	rootCmd := &cobra.Command{
		Use:          "rfmseg",
		Short:        "RFM customer segmentation",
		Version:      contracts.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, cmd.Flags(), opts, cmd.OutOrStdout())
		},
	}
	rootCmd.SetVersionTemplate(contracts.GetFullVersionString() + "\n")

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	flags.StringVar(&opts.step, "step", "", "run a single step (cleaning, rfm, features, evaluation, clustering, profiling)")
	flags.IntVar(&opts.kMin, "k-min", 0, "smallest cluster count of the sweep")
	flags.IntVar(&opts.kMax, "k-max", 0, "largest cluster count of the sweep")
	flags.IntVar(&opts.k, "k", 0, "cluster count of the final model")
	flags.Int64Var(&opts.seed, "seed", 0, "random seed of the k-means restarts")
	flags.IntVar(&opts.restarts, "restarts", 0, "k-means restarts per fit")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /status on this address while running")

	rootCmd.AddCommand(stepsCmd(opts))
	return rootCmd
}

func stepsCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the steps of the configured pipeline in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			manager, err := operations.NewPipeline(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
			if err != nil {
				return err
			}
			steps, err := manager.GetRegistry().GetDependencyOrder()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range steps {
				fmt.Fprintf(w, "%s\t%s\n", s.ID(), s.Name())
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	return cmd
}

// loadConfig layers explicitly set flags over defaults, file and environment
func loadConfig(flags *pflag.FlagSet, opts *runOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if flags.Changed("k-min") {
		cfg.Clustering.KMin = opts.kMin
	}
	if flags.Changed("k-max") {
		cfg.Clustering.KMax = opts.kMax
	}
	if flags.Changed("k") {
		cfg.Clustering.FinalK = opts.k
	}
	if flags.Changed("seed") {
		cfg.Clustering.Seed = opts.seed
	}
	if flags.Changed("restarts") {
		cfg.Clustering.Restarts = opts.restarts
	}
	if flags.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = opts.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func runPipeline(ctx context.Context, flags *pflag.FlagSet, opts *runOptions, out io.Writer) error {
	cfg, err := loadConfig(flags, opts)
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}()

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	manager, err := operations.NewPipeline(cfg, logger, metrics)
	if err != nil {
		return err
	}

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		router := httptransport.NewRouter(httptransport.RouterOptions{
			Metrics:   providers.PrometheusHTTP,
			Reporter:  manager,
			Telemetry: cfg.Telemetry,
			Logger:    logger,
		})
		server := httptransport.NewServer(addr, router, logger)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Shutdown(context.Background())
	}

	ctx = infrastructure.EnsureRunID(ctx)
	logger.InfoContext(ctx, "Starting segmentation run",
		slog.String("version", contracts.Version),
		slog.String("step", opts.step),
		slog.Int("k_min", cfg.Clustering.KMin),
		slog.Int("k_max", cfg.Clustering.KMax),
		slog.Int("final_k", cfg.Clustering.FinalK),
		slog.Int64("seed", cfg.Clustering.Seed))

	report, err := manager.Execute(ctx, operations.Request{
		ID:   infrastructure.GetRunID(ctx),
		Step: opts.step,
	})
	writeSummary(out, report)
	return err
}

func writeSummary(out io.Writer, report *operations.RunReport) {
	if report == nil {
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run %s\t%s\t%dms\n", report.RunID, report.Status, report.DurationMS)
	for _, s := range report.Steps {
		line := fmt.Sprintf("  %s\t%s\t%dms", s.ID, s.Status, s.DurationMS)
		if s.Error != "" {
			line += "\t" + s.Error
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
}
