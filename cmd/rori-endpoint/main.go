package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/rorilink/internal/config"
	"github.com/danmuck/rorilink/internal/endpoint"
	"github.com/danmuck/rorilink/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "rori-endpoint: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath string
	flagSet := pflag.NewFlagSet("rori-endpoint", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "config/endpoint.toml", "endpoint config file (.toml, .yaml, .json)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logging.ConfigureRuntime("rori-endpoint")

	cfg, err := config.LoadEndpoint(configPath)
	if err != nil {
		log.Error().Str("path", configPath).Err(err).Msg("empty or invalid config for the connection to the server")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := endpoint.NewQueue()
	svc, err := endpoint.NewService(cfg.ServiceConfig(), queue)
	if err != nil {
		return err
	}
	go drain(ctx, queue)
	return svc.Run(ctx)
}

// drain stands in for the downstream consumer: it logs delivered text.
func drain(ctx context.Context, queue *endpoint.Queue) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-queue.Ready():
			for _, text := range queue.Drain() {
				log.Info().Str("text", text).Msg("delivered")
			}
		}
	}
}
