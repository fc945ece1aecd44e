package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/agnosto/fbtweeter/cmd"
	"github.com/agnosto/fbtweeter/config"
	"github.com/agnosto/fbtweeter/logger"
	"github.com/agnosto/fbtweeter/service"
	"github.com/agnosto/fbtweeter/ui"
)

const version = "v1.0.0"

func main() {
	flags, err := cmd.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if flags.Version {
		fmt.Printf("fbtweeter version %s\n", version)
		return
	}

	configPath := flags.ConfigPath
	if configPath == "" {
		configPath = config.GetConfigPath()
	}

	if flags.Subcommand == "init" {
		created, err := config.EnsureConfigExists(configPath)
		if err != nil {
			log.Fatal(err)
		}
		if created {
			color.Green("Wrote default config to %s", configPath)
			return
		}
		added, err := config.EnsureConfigUpdated(configPath)
		if err != nil {
			log.Fatal(err)
		}
		if len(added) == 0 {
			color.Yellow("Config at %s is up to date", configPath)
			return
		}
		color.Green("Added %d new settings to %s: %s", len(added), configPath, strings.Join(added, ", "))
		return
	}

	if err := config.LoadEnv(flags.EnvPath); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.LoadConfig(configPath, flags.ConfigPath != "")
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.InitLogger(cfg.Logging.LogDir); err != nil {
		log.Fatal(err)
	}

	if flags.Subcommand == "service" && flags.ServiceAction != "run" {
		if err := cmd.RunService(flags, nil); err != nil {
			logger.Logger.Fatal(err)
		}
		fmt.Printf("Service %s: done\n", flags.ServiceAction)
		return
	}

	if flags.Subcommand != "check" {
		if err := cfg.Validate(needsTwitter(flags)); err != nil {
			logger.Logger.Fatal(err)
		}
	}

	app := cmd.NewApp(cfg, logger.Logger)

	switch flags.Subcommand {
	case "once":
		app.Images.Progress = os.Stderr
		if flags.DryRun {
			report(app.Bot.Sync(context.Background()))
		} else {
			report(app.Bot.RunOnce(context.Background()))
		}
	case "sync":
		report(app.Bot.Sync(context.Background()))
	case "queue":
		// the TUI owns the terminal
		logger.Logger.SetOutput(io.Discard)
		p := tea.NewProgram(ui.NewQueueModel(app.Pending), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Fatal(err)
		}
	case "check":
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if failures := cmd.NewDiagnosisSuite(cfg, configPath, app.Feed, app.OpenStore, os.Stdout).Run(ctx); failures > 0 {
			os.Exit(1)
		}
	case "service":
		if err := cmd.RunService(flags, app); err != nil {
			logger.Logger.Fatal(err)
		}
	default:
		logger.Logger.Printf("Starting fbtweeter version %s", version)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := app.Serve(ctx); err != nil {
			logger.Logger.Printf("Error: %v", err)
			os.Exit(1)
		}
		logger.Logger.Printf("Shutting down")
	}
}

func needsTwitter(flags cmd.Flags) bool {
	switch flags.Subcommand {
	case "sync", "queue":
		return false
	case "once":
		return !flags.DryRun
	}
	return true
}

func report(res service.RunResult, err error) {
	bold := color.New(color.Bold)
	bold.Printf("Run %s: ", res.RunID)
	fmt.Printf("fetched %d, eligible %d, stored %d new\n", res.Fetched, res.Kept, res.Inserted)

	if res.Next != nil {
		fmt.Printf("Oldest unpublished: %s (%s)\n", res.Next.ID, res.Next.CreatedTime.Local().Format("2006-01-02 15:04"))
	} else {
		color.Yellow("No unpublished posts")
	}
	if res.TweetID != "" {
		color.Green("Tweeted %s", res.TweetID)
	}
	if err != nil {
		color.Red("Run failed: %v", err)
		os.Exit(1)
	}
}
