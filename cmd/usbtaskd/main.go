// Command usbtaskd drives a usbtask executor from line commands on stdin,
// the way a hardware wallet drives it from USB packets.
//
// Commands:
//
//	new <hex>   send a request; the first payload byte picks the API
//	retry       poll for the response of the running request
//	cancel      cancel the running request
//	yes, no     answer the confirmation prompt
//	status      show the executor state
//
// Responses are written to stdout in hex, status byte first.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/iidesho/bragi/sbragi"
	"github.com/urfave/cli/v3"

	"github.com/b97tsk/usbtask/internal/config"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		sbragi.WithError(err).Error("usbtaskd failed")
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "usbtaskd",
		Usage: "Serve long-running requests over a request/response protocol",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "usbtaskd.yaml",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Path to .env files to load",
				Value: []string{".env"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "How often the running request is advanced",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Address to serve /metrics on, empty to disable",
			},
		},
		Action: run,
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if err := config.LoadDotenv(cmd.StringSlice("env-file")...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	// CLI flags override config
	if cmd.Bool("debug") {
		cfg.LogLevel = "debug"
	}
	if cmd.IsSet("poll-interval") && cmd.Duration("poll-interval") > 0 {
		cfg.PollInterval = cmd.Duration("poll-interval")
	}
	if cmd.IsSet("metrics-addr") {
		cfg.MetricsAddr = cmd.String("metrics-addr")
	}
	return cfg, nil
}

func setupLogger(level string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}
	dl, err := sbragi.NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: sbragi.ReplaceAttr,
	}))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	dl.SetDefault()
	return nil
}

func parseLevel(s string) (slog.Leveler, error) {
	switch strings.ToLower(s) {
	case "trace":
		return sbragi.LevelTrace, nil
	case "debug":
		return sbragi.LevelDebug, nil
	case "info":
		return sbragi.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return sbragi.LevelError, nil
	default:
		return nil, fmt.Errorf("unknown log level %q", s)
	}
}
