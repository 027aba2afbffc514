package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/capstan/adapter/cli"
	cliEvent "github.com/felixgeelhaar/capstan/adapter/cli/event"
	"github.com/felixgeelhaar/capstan/adapter/cli/schedule"
	cliTx "github.com/felixgeelhaar/capstan/adapter/cli/tx"
	"github.com/felixgeelhaar/capstan/internal/app"
	"github.com/felixgeelhaar/capstan/pkg/config"
	"github.com/felixgeelhaar/capstan/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		cfg = &config.Config{AppEnv: "development"}
	}
	cli.SetLogger(logger)

	var cliApp *cli.App
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("failed to initialize container, running in limited mode", "error", err)
		} else {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
	} else {
		defer container.Close()

		cliApp = &cli.App{
			ScheduleEventHandler:  container.ScheduleEventHandler,
			ScheduleSeriesHandler: container.ScheduleSeriesHandler,
			TransactionManager:    container.TransactionManager,
			Sweeper:               container.Sweeper,
			CalendarBuilder:       container.CalendarBuilder,
			MutationCoordinator:   container.MutationCoordinator,
			CommentStore:          container.CommentStore,
		}
	}

	cli.SetApp(cliApp)

	cli.AddCommand(schedule.Cmd)
	cli.AddCommand(cliTx.Cmd)
	cli.AddCommand(cliEvent.Cmd)

	cli.Execute()
}
