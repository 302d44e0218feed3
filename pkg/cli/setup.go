package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.trai.ch/zerr"

	"github.com/devicelab-dev/webfind/pkg/config"
	"github.com/devicelab-dev/webfind/pkg/element"
	"github.com/devicelab-dev/webfind/pkg/jsengine"
	"github.com/devicelab-dev/webfind/pkg/logger"
	"github.com/devicelab-dev/webfind/pkg/metrics"
	"github.com/devicelab-dev/webfind/pkg/remote"
	"github.com/devicelab-dev/webfind/pkg/remote/fake"
	"github.com/devicelab-dev/webfind/pkg/telemetry"
	"github.com/devicelab-dev/webfind/pkg/webdriver"
)

// workspace is everything a command needs, built from the global flags.
type workspace struct {
	cfg       *config.Config
	configDir string
	js        *jsengine.Engine
	caps      map[string]interface{}
	dryRun    bool

	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracing  *telemetry.Provider

	stdout io.Writer
	stderr io.Writer
}

// browser is one open session and the client behind it. client is nil in
// dry-run mode.
type browser struct {
	session *element.Session
	client  *webdriver.Client
	fake    *fake.Source
}

func setup(c *cli.Context) (*workspace, error) {
	ws := &workspace{
		dryRun: c.Bool("dry-run"),
		stdout: c.App.Writer,
		stderr: c.App.ErrWriter,
	}

	if err := setupLogging(c, ws.stderr); err != nil {
		return nil, err
	}

	var err error
	if path := c.String("config"); path != "" {
		ws.cfg, err = config.Load(path)
		ws.configDir = filepath.Dir(path)
	} else {
		ws.configDir = config.GetHome()
		ws.cfg, err = config.LoadFromDir(ws.configDir)
	}
	if err != nil {
		return nil, err
	}
	if url := c.String("url"); url != "" {
		ws.cfg.WebDriver.URL = url
	}
	if c.Bool("no-cache") {
		off := false
		ws.cfg.Engine.Caching = &off
	}

	ws.caps = ws.cfg.WebDriver.Capabilities
	if capsFile := c.String("caps"); capsFile != "" {
		ws.caps, err = loadCapabilities(capsFile)
		if err != nil {
			return nil, err
		}
	}

	env := make(map[string]string, len(ws.cfg.Env))
	for k, v := range ws.cfg.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}
	ws.js = jsengine.New()
	ws.js.SetEnv(env)

	if c.Bool("metrics") {
		ws.registry = prometheus.NewRegistry()
		ws.metrics = metrics.New(ws.registry)
	}
	if c.Bool("trace") {
		ws.tracing, err = telemetry.Setup(ws.stderr, "webfind", Version)
		if err != nil {
			return nil, err
		}
	}
	return ws, nil
}

func setupLogging(c *cli.Context, stderr io.Writer) error {
	level := logger.LevelInfo
	if c.Bool("verbose") {
		level = logger.LevelDebug
	}
	logger.SetLevel(level)

	path := c.String("log-file")
	if path == "" && c.Bool("log") {
		path = config.NewLogPath(time.Now())
	}

	switch {
	case path != "":
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create log directory"), "path", path)
		}
		return logger.Init(path)
	case c.Bool("verbose"):
		logger.SetOutput(stderr)
	}
	return nil
}

// close flushes traces and prints metrics.
func (ws *workspace) close() {
	logger.Close()
	if ws.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ws.tracing.Shutdown(ctx)
	}
	if ws.registry != nil {
		_ = metrics.Dump(ws.stderr, ws.registry)
	}
}

func (ws *workspace) settings() element.Settings {
	return ws.cfg.Settings()
}

// open starts a browser session. Callers must call the returned cleanup.
func (ws *workspace) open(ctx context.Context, label string) (*browser, func(), error) {
	var src remote.Source
	b := &browser{}
	cleanup := func() {}

	if ws.dryRun {
		b.fake = fake.NewPermissive()
		src = b.fake
	} else {
		client := webdriver.NewClient(ws.cfg.WebDriver.URL,
			webdriver.WithHTTPClient(&http.Client{Timeout: ws.cfg.RequestTimeout()}),
		)
		if err := client.Connect(ctx, ws.caps); err != nil {
			return nil, nil, zerr.With(zerr.Wrap(err, "failed to create session"), "url", ws.cfg.WebDriver.URL)
		}
		// The engine polls; an implicit wait would stretch every empty find
		if err := client.SetImplicitWait(ctx, 0); err != nil {
			logger.Warn("failed to clear implicit wait: %v", err)
		}
		logger.Info("session %s opened on %s", client.SessionID(), ws.cfg.WebDriver.URL)
		b.client = client
		src = client
		cleanup = func() {
			dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				logger.Warn("failed to close session: %v", err)
			}
		}
	}

	b.session = element.NewSession(src,
		element.WithSettings(ws.settings()),
		element.WithTracerProvider(ws.tracing.TracerProvider()),
		element.WithMetrics(ws.metrics),
		element.WithLabel(label),
	)
	return b, cleanup, nil
}

// load opens url without touching the cache.
func (b *browser) load(ctx context.Context, url string) error {
	if b.client != nil {
		return b.client.Navigate(ctx, url)
	}
	b.fake.Navigate()
	return nil
}

// navigate opens url, dropping everything the session cached.
func (b *browser) navigate(ctx context.Context, url string) error {
	if err := b.load(ctx, url); err != nil {
		return err
	}
	b.session.ClearCache()
	return nil
}

// parseEnvVars parses KEY=VALUE pairs; entries without '=' are ignored.
func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// loadCapabilities loads session capabilities from a JSON file.
func loadCapabilities(capsFile string) (map[string]interface{}, error) {
	data, err := os.ReadFile(capsFile) //#nosec G304 -- user-provided caps file
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read caps file"), "path", capsFile)
	}

	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse caps JSON"), "path", capsFile)
	}
	return caps, nil
}
