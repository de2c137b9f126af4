package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"timerbot/internal/app"
	"timerbot/internal/config"
)

var version = "dev"

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:   "config, c",
		Value:  "./config.yaml",
		Usage:  "path to config file (yaml or json)",
		EnvVar: "TIMERBOT_CONFIG",
	},
	cli.StringFlag{
		Name:  "env-file",
		Value: ".env",
		Usage: "dotenv file with secrets (missing file is ignored)",
	},
	cli.DurationFlag{
		Name:  "stop-timeout",
		Value: 10 * time.Second,
		Usage: "upper bound for graceful shutdown",
	},
}

func main() {
	a := cli.NewApp()
	a.Name = "timerbot"
	a.Usage = "one-shot chat reminders for Telegram"
	a.UsageText = "timerbot [--config path] [command]"
	a.Version = version
	a.Flags = globalFlags
	a.Action = run
	a.Commands = []cli.Command{
		{
			Name:   "check-config",
			Usage:  "load and validate the config, then exit",
			Flags:  globalFlags,
			Action: checkConfig,
		},
	}
	if err := a.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func loadEnv(c *cli.Context) error {
	if err := config.LoadEnv(c.String("env-file")); err != nil {
		return fmt.Errorf("env file: %w", err)
	}
	return nil
}

func checkConfig(c *cli.Context) error {
	if err := loadEnv(c); err != nil {
		return err
	}
	m := config.NewConfigManager(c.String("config"))
	m.SetOverlay(config.ApplyEnv)
	cfg, err := m.Load()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", m.Path())
	return nil
}

func run(c *cli.Context) error {
	if err := loadEnv(c); err != nil {
		return err
	}

	bot, err := app.NewApp(c.String("config"))
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := bot.Start(context.Background()); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopUnknown
	select {
	case s := <-sigs:
		reason = app.StopSIGINT
		if s == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-bot.Done():
		reason = app.StopFatalError
		if bot.Err() == nil {
			reason = app.StopAppStop
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("stop-timeout"))
	defer cancel()
	if err := bot.Stop(ctx, reason); err != nil {
		return err
	}
	if reason == app.StopFatalError {
		return bot.Err()
	}
	return nil
}
