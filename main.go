package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tcpsweep/api"
	"tcpsweep/cli"
	"tcpsweep/config"
	"tcpsweep/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "serve" {
		logger := logging.Configure(cfg.LoggingOptions())
		if err := api.Run(ctx, cfg, logger); err != nil {
			logger.Error("api server stopped", "error", err)
			return 1
		}
		return 0
	}

	return cli.Run(ctx, cfg, os.Args[1:], cli.IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
}
