// Package cli wires the configuration, logging and status surface into the
// crisisbench command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crisisbench/internal/config"
	"crisisbench/internal/statusapi"
)

// Main executes the command tree and maps errors to the exit code.
func Main(ctx context.Context) int {
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// app carries the state shared by every subcommand, built once in the
// persistent pre-run.
type app struct {
	cfgPath     string
	resultsDir  string
	logLevel    string
	metricsAddr string

	cfg     config.Config
	log     zerolog.Logger
	tracker *statusapi.Tracker
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "crisisbench",
		Short:         "Benchmark local models on crisis questions and grade the answers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Config file (.toml, .yaml or .json)")
	root.PersistentFlags().StringVar(&a.resultsDir, "results-dir", "", "Override the results directory")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve /status and /metrics on this address")
	root.PersistentPreRunE = a.setup

	root.AddCommand(newRunCmd(a), newGradeCmd(a), newBatchesCmd(a), newDiscoverCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Context(), a.cfgPath)
	if err != nil {
		return err
	}
	// Flags beat both file and environment.
	if a.resultsDir != "" {
		cfg.ResultsDir = a.resultsDir
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.MetricsAddr = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = newLogger(cfg.LogLevel)
	a.tracker = statusapi.NewTracker()
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// serveStatus starts the status server when an address is configured. The
// returned stop function is always safe to call.
func (a *app) serveStatus() func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	srv := statusapi.New(a.cfg.MetricsAddr, a.tracker, a.log)
	srv.Start()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
