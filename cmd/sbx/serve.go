package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/dashboard"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/notify/discord"
	"github.com/zulandar/signalbox/internal/notify/slack"
	"github.com/zulandar/signalbox/internal/sched"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard and the watch scheduler",
		Long: `Starts the web dashboard and, when repositories are configured under
watch:, polls them on the configured cron schedule for issue-closing
commits. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "dashboard port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Serve.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dispatcher, closers, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	dispatcher.DB = gormDB
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	// Watch scheduler.
	if len(cfg.Watch.Repos) > 0 {
		scheduler := sched.New()
		pollOpts := sched.PollOpts{DB: gormDB, Watch: cfg.Watch, Dispatcher: dispatcher}
		err := scheduler.Add(cfg.Watch.Schedule, func() {
			if err := sched.PollRepos(ctx, pollOpts); err != nil {
				log.Printf("serve: watch poll: %v", err)
			}
		})
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		fmt.Fprintf(out, "Watching %d repositories (schedule %q, next in %v)\n",
			len(cfg.Watch.Repos), cfg.Watch.Schedule, sched.NextAfter(cfg.Watch.Schedule).Round(time.Second))
	}

	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:   gormDB,
		Port: port,
		Out:  out,
	})
}

// buildDispatcher wires the configured chat notifiers.
func buildDispatcher(cfg *config.Config) (*notify.Dispatcher, []notify.Notifier, error) {
	var notifiers []notify.Notifier

	if cfg.Notify.Slack.Channel != "" {
		n, err := slack.New(slack.Opts{
			Token:   os.Getenv(cfg.Notify.Slack.TokenEnv),
			Channel: cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, n)
	}

	if cfg.Notify.Discord.ChannelID != "" {
		n, err := discord.New(discord.Opts{
			BotToken:  os.Getenv(cfg.Notify.Discord.TokenEnv),
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, n)
	}

	return &notify.Dispatcher{Notifiers: notifiers}, notifiers, nil
}
