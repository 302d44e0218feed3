// Package runner resolves page objects against one or more browser sessions.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/webfind/pkg/cache"
	"github.com/devicelab-dev/webfind/pkg/core"
	"github.com/devicelab-dev/webfind/pkg/element"
	"github.com/devicelab-dev/webfind/pkg/jsengine"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/pageobject"
)

// Worker is one session that pulls pages from the queue. Each worker owns
// its session, and with it its cache.
type Worker struct {
	ID      int
	Session *element.Session
	Cleanup func()
}

// NavigateFunc opens url in the worker's browser.
type NavigateFunc func(ctx context.Context, w Worker, url string) error

// Config configures a run.
type Config struct {
	// JS expands ${...} locator templates. Nil leaves locators as written.
	JS *jsengine.Engine

	// Navigate is called before a page with a URL is resolved. Nil skips
	// navigation.
	Navigate NavigateFunc

	// Live progress callbacks
	OnPageStart func(worker int, page *pageobject.Page)
	OnElement   func(worker int, r ElementResult)
	OnPageEnd   func(worker int, r PageResult)
}

// ElementResult is the outcome of resolving one page element.
type ElementResult struct {
	Path     string
	Locator  string // resolved locator of the first match
	Resolved bool
	Matches  int
	Outcome  cache.Outcome
	Duration time.Duration
	Err      error
}

// PageResult is the outcome of resolving one page.
type PageResult struct {
	Page     *pageobject.Page
	Worker   int
	Elements []ElementResult
	Duration time.Duration
	Err      error // build or navigation failure; no elements were resolved
}

// Failed returns the number of elements that did not resolve.
func (r *PageResult) Failed() int {
	n := 0
	for _, e := range r.Elements {
		if !e.Resolved {
			n++
		}
	}
	return n
}

// RunResult contains the outcome of a run.
type RunResult struct {
	Pages     []PageResult
	Total     int
	Resolved  int
	Failed    int
	CacheHits int
	Duration  time.Duration
}

// Passed reports whether every page built and every element resolved.
func (r *RunResult) Passed() bool {
	if r.Failed > 0 {
		return false
	}
	for _, p := range r.Pages {
		if p.Err != nil {
			return false
		}
	}
	return true
}

type workItem struct {
	page  *pageobject.Page
	index int
}

// Runner distributes pages over workers.
type Runner struct {
	workers []Worker
	config  Config
}

// New creates a runner.
func New(workers []Worker, cfg Config) *Runner {
	return &Runner{workers: workers, config: cfg}
}

// Run resolves every element of every page. Element failures are reported
// in the result; the error is non-nil only when no workers are configured
// or ctx ends before the queue drains.
func (r *Runner) Run(ctx context.Context, pages []*pageobject.Page) (*RunResult, error) {
	if len(r.workers) == 0 {
		return nil, core.ErrInvalidConfig.WithMessage("no workers available")
	}

	start := time.Now()
	queue := make(chan workItem, len(pages))
	for i, p := range pages {
		queue <- workItem{page: p, index: i}
	}
	close(queue)

	results := make([]PageResult, len(pages))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for i := range r.workers {
		w := r.workers[i]
		g.Go(func() error {
			if w.Cleanup != nil {
				defer w.Cleanup()
			}
			for item := range queue {
				if err := ctx.Err(); err != nil {
					return err
				}
				res := r.runPage(ctx, w, item.page)

				mu.Lock()
				results[item.index] = res
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, zerr.Wrap(err, "run interrupted")
	}

	return buildRunResult(results, time.Since(start)), nil
}

func (r *Runner) runPage(ctx context.Context, w Worker, page *pageobject.Page) PageResult {
	if r.config.OnPageStart != nil {
		r.config.OnPageStart(w.ID, page)
	}
	start := time.Now()
	res := PageResult{Page: page, Worker: w.ID}
	defer func() {
		res.Duration = time.Since(start)
		if r.config.OnPageEnd != nil {
			r.config.OnPageEnd(w.ID, res)
		}
	}()

	if page.URL != "" && r.config.Navigate != nil {
		if err := r.config.Navigate(ctx, w, page.URL); err != nil {
			res.Err = zerr.With(zerr.Wrap(err, "navigation failed"), "url", page.URL)
			return res
		}
		// New document: every handle the session holds is gone
		w.Session.ClearCache()
	}

	tree, err := pageobject.Build(w.Session, page, r.config.JS)
	if err != nil {
		res.Err = err
		return res
	}

	for _, b := range tree.All() {
		er := resolveElement(ctx, b)
		logger.Debug("worker %d: %s %s (%s)", w.ID, page.Name, b.Path, describe(er))
		if r.config.OnElement != nil {
			r.config.OnElement(w.ID, er)
		}
		res.Elements = append(res.Elements, er)
	}
	return res
}

func resolveElement(ctx context.Context, b *pageobject.Bound) ElementResult {
	start := time.Now()
	er := ElementResult{Path: b.Path}

	got, err := b.Resolve(ctx)
	er.Duration = time.Since(start)
	if err != nil {
		er.Err = err
		return er
	}

	er.Resolved = true
	er.Matches = len(got.Matches)
	er.Outcome = got.Outcome
	if got.Control != nil {
		er.Locator = got.Control.Spec().Resolved()
	}
	return er
}

func describe(er ElementResult) string {
	if er.Err != nil {
		return fmt.Sprintf("failed: %v", er.Err)
	}
	return fmt.Sprintf("%d match(es), cache %s", er.Matches, er.Outcome)
}

func buildRunResult(pages []PageResult, wall time.Duration) *RunResult {
	result := &RunResult{Pages: pages, Duration: wall}
	for _, p := range pages {
		for _, e := range p.Elements {
			result.Total++
			if !e.Resolved {
				result.Failed++
				continue
			}
			result.Resolved++
			if e.Outcome == cache.Hit {
				result.CacheHits++
			}
		}
	}
	return result
}
