package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkessler-dev/pantrysync/cmd"
	"github.com/mkessler-dev/pantrysync/internal/conf"
	"github.com/mkessler-dev/pantrysync/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	if settings.Main.Log.Enabled {
		fileLogger, closeLogger, err := logging.NewFileLogger(settings.Main.Log.Path, settings.Main.Name, slog.LevelInfo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
			}
		}()
		slog.SetDefault(fileLogger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
