// Package main provides the reminder daemon. It periodically scans pending
// approval requests and re-notifies their assignees. Reminders never touch
// instance state; transitions stay request-triggered.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/stagio/stagio/pkg/cmd"
	"github.com/stagio/stagio/pkg/log"
)

func main() {
	logger := log.WithModule("reminder")

	command := &cli.Command{
		Name:                  "stagio-reminder",
		Usage:                 "Send periodic reminders for pending approval requests",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (postgres:// or file://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the notification stream (empty logs notifications)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression for reminder runs",
				Value:   "0 9 * * *",
				Sources: cli.EnvVars("REMINDER_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "older-than",
				Usage:   "Only remind approvals pending for at least this long",
				Value:   24 * time.Hour,
				Sources: cli.EnvVars("REMINDER_OLDER_THAN"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Stagio reminder daemon")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			notifier := cmd.NewNotifier(command.String("redis-url"), logger)

			daemon := NewReminder(logger, persistence, notifier, command.Duration("older-than"))

			if err := daemon.Start(ctx, command.String("schedule")); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-stop:
			case <-ctx.Done():
			}

			daemon.Stop()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
