package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jzx17/roundrobin/internal/config"
	rrerrors "github.com/jzx17/roundrobin/internal/errors"
	"github.com/jzx17/roundrobin/internal/server"
	promexp "github.com/jzx17/roundrobin/pkg/observability/prometheus"
	"github.com/jzx17/roundrobin/pkg/retry"
	"github.com/jzx17/roundrobin/pkg/scheduler"
	"github.com/jzx17/roundrobin/pkg/types"
	"github.com/jzx17/roundrobin/pkg/worker"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type runFlags struct {
	configPath    string
	quantum       time.Duration
	errorPolicy   string
	body          string
	sleepInterval time.Duration
	retryAttempts int
	retryDelay    time.Duration
	metricsAddr   string
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run [num_workers queue_size quanta...]",
		Short: "Run workers round-robin and print their timing report",
		Long: `Runs num_workers workers, at most queue_size of them queued at once, where
worker i is resumed quanta[i] times. Positional arguments override the
config file; flags override both.

The report is printed to stdout; logs go to stderr.`,
		Example: `  rrsched run 3 2 1 2 3
  rrsched run --config rrsched.yaml --quantum 200ms --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, opts, args)
			if err != nil {
				return err
			}
			logger := opts.newLogger(cmd, cfg)
			return runScheduler(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}

	f.register(cmd)
	return cmd
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	cmd.Flags().DurationVar(&f.quantum, "quantum", time.Second, "Time slice length")
	cmd.Flags().StringVar(&f.errorPolicy, "error-policy", "continue", "Task failure policy (continue, fail-fast)")
	cmd.Flags().StringVar(&f.body, "body", "spin", "Worker task body (spin, sleep, block)")
	cmd.Flags().DurationVar(&f.sleepInterval, "sleep-interval", 10*time.Millisecond, "Per-call pause of the sleep body")
	cmd.Flags().IntVar(&f.retryAttempts, "retry-attempts", 1, "Attempts per task body call before the error policy applies")
	cmd.Flags().DurationVar(&f.retryDelay, "retry-delay", 10*time.Millisecond, "First retry backoff delay")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
}

// resolve merges defaults, the config file, positional arguments and flags, in that order.
func (f *runFlags) resolve(cmd *cobra.Command, opts *rootOptions, args []string) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyArgs(args); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("quantum") {
		cfg.Quantum = f.quantum
	}
	if flags.Changed("error-policy") {
		cfg.ErrorPolicy = f.errorPolicy
	}
	if flags.Changed("body") {
		cfg.Body = f.body
	}
	if flags.Changed("sleep-interval") {
		cfg.SleepInterval = f.sleepInterval
	}
	if flags.Changed("retry-attempts") {
		cfg.RetryAttempts = f.retryAttempts
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay = f.retryDelay
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	opts.applyLogFlags(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runScheduler(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	handler, err := rrerrors.NewHandlerRegistry(logger).Policy(cfg.ErrorPolicy)
	if err != nil {
		return err
	}
	bodies, err := worker.BodyFactoryByName(cfg.Body, cfg.SleepInterval)
	if err != nil {
		return err
	}
	if cfg.RetryAttempts > 1 {
		bodies = withRetries(bodies, cfg, logger)
	}

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	exporter, err := promexp.NewMetricsExporter("rrsched", reg, promexp.ExporterOptions{})
	if err != nil {
		return fmt.Errorf("create metrics exporter: %w", err)
	}

	s, err := scheduler.NewScheduler(&scheduler.Config{
		Workers:       cfg.Workers,
		QueueCapacity: cfg.QueueCapacity,
		Quanta:        cfg.Quanta,
		Quantum:       cfg.Quantum,
		BodyFactory:   bodies,
		ErrorHandler:  handler,
		Logger:        logger,
		Metrics:       exporter,
	})
	if err != nil {
		return err
	}

	logger.Info("running workers",
		"run_id", s.RunID(),
		"workers", len(cfg.Quanta),
		"queue_capacity", cfg.QueueCapacity,
		"quanta", cfg.Quanta)

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()

	g, gctx := errgroup.WithContext(serveCtx)
	if cfg.MetricsAddr != "" {
		srv := server.New(reg, s, logger)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.MetricsAddr, nil)
		})
	}

	var report types.Report
	g.Go(func() error {
		defer stopServing()
		rep, err := s.Run(gctx)
		if err != nil {
			return err
		}
		report = rep
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	printReport(out, report)
	return nil
}

func withRetries(bodies worker.BodyFactory, cfg config.Config, logger *slog.Logger) worker.BodyFactory {
	policy := retry.NewExponentialBackoff(cfg.RetryAttempts, cfg.RetryDelay)
	return func(id int) types.TaskBody {
		return retry.NewBody(bodies(id), policy,
			retry.WithLogger(logger.With("component", "retry", "worker", id))).TaskBody()
	}
}

func printReport(w io.Writer, rep types.Report) {
	fmt.Fprintf(w, "The total wait time is %f seconds.\n", rep.TotalWaitTime.Seconds())
	fmt.Fprintf(w, "The total run time is %f seconds.\n", rep.TotalRunTime.Seconds())
	fmt.Fprintf(w, "The average wait time is %f seconds.\n", rep.AverageWaitTime.Seconds())
	fmt.Fprintf(w, "The average run time is %f seconds.\n", rep.AverageRunTime.Seconds())
}
