// Package cli provides the command-line interface for webfind.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "url",
		Usage:   "WebDriver server URL (overrides config)",
		EnvVars: []string{"WEBFIND_URL"},
	},
	&cli.StringFlag{
		Name:  "caps",
		Usage: "JSON file with capabilities for the new session",
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml (default: $WEBFIND_HOME/config.yaml)",
		EnvVars: []string{"WEBFIND_CONFIG"},
	},
	&cli.StringSliceFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Template variables (KEY=VALUE)",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Log debug output to stderr",
		EnvVars: []string{"WEBFIND_VERBOSE"},
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Write the log to this file",
	},
	&cli.BoolFlag{
		Name:  "log",
		Usage: "Write the log to a new file in $WEBFIND_HOME/logs",
	},
	&cli.BoolFlag{
		Name:  "no-cache",
		Usage: "Disable the element cache",
	},
	&cli.BoolFlag{
		Name:  "trace",
		Usage: "Print OpenTelemetry spans to stderr",
	},
	&cli.BoolFlag{
		Name:  "metrics",
		Usage: "Print engine metrics to stderr on exit",
	},
	&cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Use an in-memory document instead of a browser",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the application. Output goes to stdout, diagnostics to stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:    "webfind",
		Usage:   "Resolve and inspect web element locators over WebDriver",
		Version: Version,
		Description: `webfind resolves locators against a live browser session, caching
elements and recovering them when the page re-renders.

Examples:
  webfind find "#login"
  webfind find --kind xpath --all "//a"
  webfind page pages/login.yaml -e USER=test
  webfind validate pages/`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			findCommand,
			pageCommand,
			validateCommand,
		},
		Writer:    stdout,
		ErrWriter: stderr,
	}
}

// Execute runs the CLI.
func Execute() {
	app := NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
