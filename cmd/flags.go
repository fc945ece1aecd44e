package cmd

import (
	"flag"
	"fmt"
	"io"
)

type Flags struct {
	ConfigPath    string
	EnvPath       string
	Version       bool
	DryRun        bool
	Subcommand    string
	ServiceAction string
}

var subcommands = map[string]bool{
	"run":     true,
	"once":    true,
	"sync":    true,
	"queue":   true,
	"check":   true,
	"init":    true,
	"service": true,
}

var serviceActions = map[string]bool{
	"install":   true,
	"uninstall": true,
	"start":     true,
	"stop":      true,
	"restart":   true,
	"run":       true,
}

// ParseFlags parses global flags, the subcommand, and its own flags.
// Global flags are accepted before or after the subcommand.
func ParseFlags(args []string, output io.Writer) (Flags, error) {
	flags := Flags{Subcommand: "run"}

	fs := flag.NewFlagSet("fbtweeter", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&flags.ConfigPath, "config", "", "Path to config.toml")
	fs.StringVar(&flags.ConfigPath, "c", "", "Path to config.toml (shorthand)")
	fs.StringVar(&flags.EnvPath, "env", ".env", "Path to a .env file with secrets")
	fs.BoolVar(&flags.Version, "v", false, "Display version information")
	fs.BoolVar(&flags.Version, "version", false, "Display version information")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "Fetch and store posts but do not tweet (once only)")
	fs.Usage = func() {
		fmt.Fprintln(output, "Usage: fbtweeter [flags] [run|once|sync|queue|check|init|service <action>]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return flags, err
	}

	if rest := fs.Args(); len(rest) > 0 {
		if err := parseSubcommand(fs, &flags, rest); err != nil {
			return flags, err
		}
	}

	if flags.DryRun && flags.Subcommand != "once" {
		return flags, fmt.Errorf("-dry-run only applies to once")
	}
	return flags, nil
}

func parseSubcommand(fs *flag.FlagSet, flags *Flags, rest []string) error {
	flags.Subcommand = rest[0]
	if !subcommands[flags.Subcommand] {
		return fmt.Errorf("unknown command %q", flags.Subcommand)
	}
	rest = rest[1:]

	if flags.Subcommand == "service" {
		if len(rest) == 0 || !serviceActions[rest[0]] {
			return fmt.Errorf("usage: fbtweeter service [install|uninstall|start|stop|restart|run]")
		}
		flags.ServiceAction = rest[0]
		rest = rest[1:]
	}

	if err := fs.Parse(rest); err != nil {
		return err
	}
	if extra := fs.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected arguments: %v", extra)
	}
	return nil
}
