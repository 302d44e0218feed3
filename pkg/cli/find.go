package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/element"
	"github.com/devicelab-dev/webfind/pkg/jsengine"
	"github.com/devicelab-dev/webfind/pkg/locator"
)

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "Resolve a locator and print the matching elements",
	ArgsUsage: "<locator>",
	Description: `Resolve one locator in a new browser session and print each match with
its friendly name, resolved locator, tag and bounds.

The locator may contain ${...} expressions, evaluated with the -e variables.

Examples:
  webfind find "form#login"
  webfind find --kind xpath --all "//nav//a"
  webfind find --open https://example.com --wait visible "#banner"
  webfind -e LABEL=Save find --kind xpath '//button[text()=${xpathLiteral(LABEL)}]'`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "kind",
			Aliases: []string{"k"},
			Usage:   "Locator kind (xpath, css, id, name, class, tag, link, partial-link)",
			Value:   "css",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Friendly name for messages (default: the locator)",
		},
		&cli.BoolFlag{
			Name:    "all",
			Aliases: []string{"a"},
			Usage:   "Print every match instead of requiring exactly one",
		},
		&cli.BoolFlag{
			Name:  "first",
			Usage: "Take the first of several matches",
		},
		&cli.BoolFlag{
			Name:  "stable",
			Usage: "Wait for the element to stop moving before printing it",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Find timeout (default: engine.findTimeoutMs)",
		},
		&cli.StringFlag{
			Name:  "wait",
			Usage: "Wait for a state first (visible, hidden, present, absent)",
		},
		&cli.StringFlag{
			Name:  "open",
			Usage: "Navigate to this URL before resolving",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print matches as JSON",
		},
	},
	Action: runFind,
}

func runFind(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one locator is required")
	}
	kind, err := locator.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}

	ws, err := setup(c)
	if err != nil {
		return err
	}
	defer ws.close()

	raw := c.Args().First()
	if jsengine.HasExpressions(raw) {
		if raw, err = ws.js.ExpandVariables(raw); err != nil {
			return err
		}
	}
	name := c.String("name")
	if name == "" {
		name = raw
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, cleanup, err := ws.open(ctx, "find")
	if err != nil {
		return err
	}
	defer cleanup()

	if url := c.String("open"); url != "" {
		if err := b.navigate(ctx, url); err != nil {
			return err
		}
	}

	matches, err := findMatches(ctx, c, b.session, locator.New(kind, raw, name))
	if err != nil {
		return err
	}

	infos := make([]core.ElementInfo, 0, len(matches))
	for _, m := range matches {
		info, err := m.Info(ctx)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(ws.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintf(ws.stdout, "  %sno matches%s\n", color(colorYellow), color(colorReset))
		return nil
	}
	for _, info := range infos {
		printElement(ws.stdout, info)
	}
	return nil
}

func findMatches(ctx context.Context, c *cli.Context, s *element.Session, spec *locator.Spec) ([]*element.Control, error) {
	var opts []element.ControlOption
	if c.Bool("first") {
		opts = append(opts, element.WithAllowMultiple())
	}
	if c.Bool("stable") {
		opts = append(opts, element.WithStable())
	}
	timeout := s.Settings().FindTimeout
	if c.IsSet("timeout") {
		timeout = c.Duration("timeout")
		opts = append(opts, element.WithTimeout(timeout))
	}

	ctl := s.Control(spec, opts...)
	if state := c.String("wait"); state != "" {
		if err := waitFor(ctx, ctl, state, timeout); err != nil {
			return nil, err
		}
		// Nothing left to print once the element is gone
		if state == "hidden" || state == "absent" {
			return nil, nil
		}
	}

	if c.Bool("all") {
		return s.FindAll(ctx, spec, opts...)
	}

	got, err := ctl.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return []*element.Control{got}, nil
}

func waitFor(ctx context.Context, ctl *element.Control, state string, timeout time.Duration) error {
	switch state {
	case "visible":
		return ctl.WaitUntilVisible(ctx, timeout)
	case "hidden":
		return ctl.WaitUntilHidden(ctx, timeout)
	case "present":
		return ctl.WaitUntilPresent(ctx, timeout)
	case "absent":
		return ctl.WaitUntilAbsent(ctx, timeout)
	}
	return fmt.Errorf("unknown state %q; expected visible, hidden, present or absent", state)
}
