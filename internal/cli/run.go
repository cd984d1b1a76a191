package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/awareness/internal/config"
	"github.com/roach88/awareness/internal/engine"
	"github.com/roach88/awareness/internal/journal"
	"github.com/roach88/awareness/internal/metrics"
	"github.com/roach88/awareness/internal/roster"
	"github.com/roach88/awareness/internal/snapshot"
	"github.com/roach88/awareness/internal/textgen"
	"github.com/roach88/awareness/internal/world"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath  string
	Roster      string
	Snapshots   string
	Journal     string
	Interval    time.Duration
	Once        bool
	MetricsAddr string

	// RunIDs overrides run id generation (for testing).
	RunIDs engine.RunIDGenerator
	// Environ replaces the process environment for config (for testing).
	Environ map[string]string
}

// RunResult is the JSON payload of a --once run.
type RunResult struct {
	RunID         string               `json:"run_id"`
	Subscribers   int                  `json:"subscribers"`
	Cycles        []world.CycleSummary `json:"cycles"`
	Notifications []world.Notification `json:"notifications"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the awareness engine over a snapshot directory",
		Long: `Register a subscriber roster, then run awareness cycles over the
snapshots in a directory, oldest version first.

By default the engine runs one cycle per interval until interrupted,
printing notifications as they are delivered. With --once it runs one
cycle per snapshot and exits.

Configuration comes from defaults, then --config, then AWARENESS_*
environment variables, then flags.

Examples:
  awareness run --roster roster.yaml --snapshots ./snapshots --once
  awareness run --config awareness.yaml --roster roster.cue --snapshots ./snapshots --journal ./awareness.db
  awareness run --roster roster.yaml --snapshots ./snapshots --interval 5s --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Roster, "roster", "", "path to subscriber roster, YAML or CUE (required)")
	cmd.Flags().StringVar(&opts.Snapshots, "snapshots", "", "directory of snapshot files (required)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (overrides config)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "cycle interval (overrides config)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "run one cycle per snapshot, then exit")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("roster")
	_ = cmd.MarkFlagRequired("snapshots")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := config.LoadWithEnv(opts.ConfigPath, opts.Environ)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Interval != 0 {
		cfg.Interval = opts.Interval
	}
	if opts.Journal != "" {
		cfg.JournalPath = opts.Journal
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	r, err := roster.LoadFile(opts.Roster)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load roster", err)
	}
	src, err := snapshot.NewDirSource(opts.Snapshots)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load snapshots", err)
	}

	reg := prometheus.NewRegistry()
	engOpts, err := engineOptions(cfg, logger, metrics.New(reg))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure engine", err)
	}
	engOpts = append(engOpts, engine.WithSource(src))
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	if cfg.JournalPath != "" {
		logger.Info("opening journal", "path", cfg.JournalPath)
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		engOpts = append(engOpts, engine.WithRecorder(j))
	}

	eng := engine.New(engOpts...)
	defer eng.Close()

	n, err := roster.RegisterAll(eng, r)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register roster", err)
	}
	logger.Info("roster registered", "subscribers", n, "run_id", eng.RunID())

	if opts.MetricsAddr != "" {
		stop := serveMetrics(opts.MetricsAddr, reg, logger)
		defer stop()
	}

	if opts.Once {
		return runOnce(opts, cmd, eng, src, n)
	}
	return runScheduled(opts, cmd, eng, cfg.Interval, logger)
}

// engineOptions maps configuration onto engine options.
func engineOptions(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) ([]engine.Option, error) {
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithHistoryDepth(cfg.HistoryDepth),
		engine.WithWorkers(cfg.Workers),
		engine.WithWeights(cfg.Relevance),
	}
	if cfg.Augment.Enabled {
		gen, err := textgen.NewOpenAI(cfg.Augment.OpenAI, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			engine.WithGenerator(gen, cfg.Augment.Timeout),
			engine.WithAugmentMinPriority(cfg.Augment.MinPriority),
		)
	}
	return opts, nil
}

// runOnce runs one cycle per pending snapshot.
func runOnce(opts *RunOptions, cmd *cobra.Command, eng *engine.Engine, src *snapshot.SliceSource, subscribers int) error {
	ctx := cmd.Context()
	out := RunResult{
		RunID:         eng.RunID(),
		Subscribers:   subscribers,
		Cycles:        []world.CycleSummary{},
		Notifications: []world.Notification{},
	}

	for src.Remaining() > 0 {
		sum, err := eng.TriggerNow(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "cycle failed", err)
		}
		out.Cycles = append(out.Cycles, sum)
		out.Notifications = append(out.Notifications, drainOutboxes(eng)...)
	}

	return opts.formatter(cmd).Emit(out, func(w io.Writer) {
		if len(out.Cycles) == 0 {
			fmt.Fprintln(w, "No snapshots found.")
			return
		}
		for _, c := range out.Cycles {
			fmt.Fprintf(w, "cycle %d v%d: %d change(s), %d notification(s)\n",
				c.Cycle, c.Version, c.ChangeCount, c.NotificationCount)
		}
		for _, n := range out.Notifications {
			writeNotificationText(w, n)
		}
	})
}

// runScheduled runs the scheduler until SIGINT/SIGTERM or the command
// context ends, printing notifications after each cycle.
func runScheduled(opts *RunOptions, cmd *cobra.Command, eng *engine.Engine, interval time.Duration, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sums, unsubscribe := eng.Summaries(16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w := cmd.OutOrStdout()
		enc := json.NewEncoder(w)
		for range sums {
			for _, n := range drainOutboxes(eng) {
				if opts.Format == "json" {
					_ = enc.Encode(n)
					continue
				}
				writeNotificationText(w, n)
			}
		}
	}()

	logger.Info("engine starting", "interval", interval)
	fmt.Fprintln(cmd.ErrOrStderr(), "Engine started. Press Ctrl-C to stop.")

	err := eng.Run(ctx, interval)
	unsubscribe()
	<-done
	if err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	st := eng.Status()
	logger.Info("engine stopped gracefully",
		"cycles", st.LastCycle, "errors", st.ErrorCount, "skipped", st.SkippedCount)
	return nil
}

// drainOutboxes collects pending notifications, subscribers in id order.
func drainOutboxes(eng *engine.Engine) []world.Notification {
	var out []world.Notification
	for _, p := range eng.Subscribers() {
		if box, ok := eng.Outbox(p.ID); ok {
			out = append(out, box.Drain()...)
		}
	}
	return out
}

// serveMetrics exposes reg over HTTP until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
