package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.trai.ch/zerr"

	"github.com/devicelab-dev/webfind/pkg/config"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/pageobject"
	"github.com/devicelab-dev/webfind/pkg/runner"
)

var pageCommand = &cli.Command{
	Name:      "page",
	Usage:     "Resolve every element of one or more page-object files",
	ArgsUsage: "[<page-file-or-folder>...]",
	Description: `Validate the page files, then resolve every element of every page.
Pages with a url are opened first. Pages are spread over --workers sessions,
each with its own element cache.

Without arguments, the pages listed in config.yaml are used, falling back
to $WEBFIND_HOME/pages.

Examples:
  webfind page pages/login.yaml
  webfind page pages/ --workers 3
  webfind --dry-run page pages/`,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Parallel browser sessions (default: webdriver.workers)",
		},
	},
	Action: runPage,
}

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check page-object files without a browser",
	ArgsUsage: "[<page-file-or-folder>...]",
	Description: `Parse page files and report structural problems: missing or
duplicate names, missing or conflicting locators, and ${...} expressions
that fail with the configured variables.

Examples:
  webfind validate pages/
  webfind validate -e ROW=1 pages/table.yaml`,
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	ws, err := setup(c)
	if err != nil {
		return err
	}
	defer ws.close()

	result := pageobject.NewValidator(ws.js).Validate(pagePaths(ws, c.Args().Slice())...)
	printValidation(ws, result)
	if !result.IsValid() {
		return fmt.Errorf("%d validation error(s)", len(result.Errors))
	}
	return nil
}

func printValidation(ws *workspace, result *pageobject.Result) {
	for i, file := range result.Files {
		fmt.Fprintf(ws.stdout, "  %s✓%s %s %s(%d elements)%s\n",
			color(colorGreen), color(colorReset), file,
			color(colorDim), result.Pages[i].Count(), color(colorReset))
	}
	for _, err := range result.Errors {
		fmt.Fprintf(ws.stdout, "  %s✗%s %v\n", color(colorRed), color(colorReset), err)
	}
}

func runPage(c *cli.Context) error {
	ws, err := setup(c)
	if err != nil {
		return err
	}
	defer ws.close()

	validation := pageobject.NewValidator(ws.js).Validate(pagePaths(ws, c.Args().Slice())...)
	if !validation.IsValid() {
		printValidation(ws, validation)
		return fmt.Errorf("%d validation error(s)", len(validation.Errors))
	}
	pages := validation.Pages
	if len(pages) == 0 {
		return fmt.Errorf("no page files found")
	}

	count := ws.cfg.WebDriver.Workers
	if c.IsSet("workers") {
		count = c.Int("workers")
	}
	if count < 1 {
		return fmt.Errorf("--workers must be >= 1")
	}
	if count > len(pages) {
		count = len(pages)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers, browsers, err := openWorkers(ctx, ws, count)
	if err != nil {
		return err
	}

	// Workers report concurrently
	var mu sync.Mutex
	pageStart := onPageStart(ws.stdout)
	elementDone := onElement(ws.stdout)
	cfg := runner.Config{
		JS: ws.js,
		Navigate: func(ctx context.Context, w runner.Worker, url string) error {
			return browsers[w.ID-1].load(ctx, url)
		},
		OnPageStart: func(worker int, p *pageobject.Page) {
			mu.Lock()
			defer mu.Unlock()
			pageStart(worker, p)
		},
		OnElement: func(worker int, r runner.ElementResult) {
			mu.Lock()
			defer mu.Unlock()
			elementDone(worker, r)
		},
	}

	result, err := runner.New(workers, cfg).Run(ctx, pages)
	if err != nil {
		return err
	}
	printSummary(ws.stdout, result)
	if !result.Passed() {
		return fmt.Errorf("%d of %d elements failed to resolve", result.Failed, result.Total)
	}
	return nil
}

// openWorkers opens count sessions. On failure the ones already open are
// closed.
func openWorkers(ctx context.Context, ws *workspace, count int) ([]runner.Worker, []*browser, error) {
	workers := make([]runner.Worker, 0, count)
	browsers := make([]*browser, 0, count)
	for i := 1; i <= count; i++ {
		b, cleanup, err := ws.open(ctx, fmt.Sprintf("worker-%d", i))
		if err != nil {
			for _, w := range workers {
				w.Cleanup()
			}
			return nil, nil, zerr.With(err, "worker", i)
		}
		workers = append(workers, runner.Worker{ID: i, Session: b.session, Cleanup: cleanup})
		browsers = append(browsers, b)
	}
	logger.Info("opened %d session(s)", count)
	return workers, browsers, nil
}

// pagePaths returns args, or the configured page globs, or the home pages dir.
func pagePaths(ws *workspace, args []string) []string {
	if len(args) > 0 {
		return args
	}
	var paths []string
	for _, pattern := range ws.cfg.Pages {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(ws.configDir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			logger.Warn("invalid page pattern %q: %v", pattern, err)
			continue
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		paths = append(paths, config.GetPagesDir())
	}
	return paths
}
