package cli

import (
	"log/slog"

	"github.com/jzx17/roundrobin/internal/config"
	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	debug     bool
	logLevel  string
	logFormat string
}

// NewRootCmd creates the root cobra command for the rrsched CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "rrsched",
		Short: "Preemptive round-robin worker scheduler",
		Long: `rrsched runs a fixed set of workers on a single running slot, switching
between them every quantum in round-robin order, and reports their run and
wait times once every worker has used up its quanta.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(opts),
		newConfigCmd(opts),
	)

	return root
}

// applyLogFlags lets explicitly set logging flags override the config file.
func (o *rootOptions) applyLogFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
}

func (o *rootOptions) newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
}
