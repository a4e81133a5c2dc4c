package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"notiontimer/internal/config"
	"notiontimer/internal/logging"
)

const appName = "NotionTimer"

type options struct {
	configPath    string
	host          string
	port          int
	logLevel      string
	natsURL       string
	headless      bool
	remoteControl bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "notiontimer:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "notiontimer",
		Short:         "Status-bar stopwatch that broadcasts elapsed time over WebSocket",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.LogLevel, cfg.LogFormat == "console"); err != nil {
				return err
			}
			if cfg.Headless {
				return runHeadless(cmd.Context(), cfg)
			}
			return runDesktop(cmd.Context(), cfg, cmd.Flags().Changed("port"))
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .json or .toml)")
	flags.StringVar(&opts.host, "host", "", "Broadcast listen host (default 127.0.0.1)")
	flags.IntVar(&opts.port, "port", 0, "Broadcast listen port (default 8080)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	flags.StringVar(&opts.natsURL, "nats-url", "", "Relay descriptions to this NATS server")
	flags.BoolVar(&opts.headless, "headless", false, "Run without tray and overlay")
	flags.BoolVar(&opts.remoteControl, "remote-control", false, "Accept start/pause/stop/reset commands from clients")
	return root
}

// loadConfig layers defaults, the config file, NOTIONTIMER_* env and flags.
func loadConfig(flags *pflag.FlagSet, opts *options) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	applyFlags(flags, &cfg, opts)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyFlags(flags *pflag.FlagSet, cfg *config.Config, opts *options) {
	if flags.Changed("host") {
		cfg.Broadcast.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Broadcast.Port = opts.port
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("nats-url") {
		cfg.Relay.URL = opts.natsURL
	}
	if flags.Changed("headless") {
		cfg.Headless = opts.headless
	}
	if flags.Changed("remote-control") {
		cfg.RemoteControl = opts.remoteControl
	}
}
