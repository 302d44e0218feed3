package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devicelab-dev/webfind/pkg/config"
	"github.com/devicelab-dev/webfind/pkg/core"
)

// runApp runs the CLI with args in an isolated home directory.
func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("WEBFIND_HOME", t.TempDir())
	config.ResetHome()
	t.Cleanup(config.ResetHome)

	var stdout, stderr bytes.Buffer
	app := NewApp(&stdout, &stderr)
	err := app.Run(append([]string{"webfind", "--no-ansi"}, args...))
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func decodeInfos(t *testing.T, out string) []core.ElementInfo {
	t.Helper()
	var infos []core.ElementInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out, err)
	}
	return infos
}

func TestParseEnvVars_Valid(t *testing.T) {
	envs := []string{"USER=test", "PASS=secret", "EMPTY=", "EXPR=a=b"}
	result := parseEnvVars(envs)

	if result["USER"] != "test" {
		t.Errorf("expected USER=test, got %s", result["USER"])
	}
	if result["PASS"] != "secret" {
		t.Errorf("expected PASS=secret, got %s", result["PASS"])
	}
	if v, ok := result["EMPTY"]; !ok || v != "" {
		t.Errorf("expected EMPTY='', got %q (present=%v)", v, ok)
	}
	if result["EXPR"] != "a=b" {
		t.Errorf("expected EXPR=a=b, got %s", result["EXPR"])
	}
}

func TestParseEnvVars_Invalid(t *testing.T) {
	result := parseEnvVars([]string{"NOVALUE", ""})
	if len(result) != 0 {
		t.Errorf("expected empty map, got %v", result)
	}
}

func TestLoadCapabilities(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "caps.json", `{"browserName": "firefox", "acceptInsecureCerts": true}`)

	caps, err := loadCapabilities(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caps["browserName"] != "firefox" {
		t.Errorf("expected browserName=firefox, got %v", caps["browserName"])
	}
	if caps["acceptInsecureCerts"] != true {
		t.Errorf("expected acceptInsecureCerts=true, got %v", caps["acceptInsecureCerts"])
	}
}

func TestLoadCapabilities_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", `{not json`)

	if _, err := loadCapabilities(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := loadCapabilities(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestColor_Enabled(t *testing.T) {
	oldEnabled := colorsEnabled
	defer func() { colorsEnabled = oldEnabled }()

	colorsEnabled = true
	if result := color(colorGreen); result != colorGreen {
		t.Errorf("color(colorGreen) with colors enabled = %q, want %q", result, colorGreen)
	}
}

func TestColor_Disabled(t *testing.T) {
	oldEnabled := colorsEnabled
	defer func() { colorsEnabled = oldEnabled }()

	colorsEnabled = false
	if result := color(colorGreen); result != "" {
		t.Errorf("color(colorGreen) with colors disabled = %q, want empty string", result)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Microsecond, "<1ms"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{125 * time.Second, "2m5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected short, got %q", got)
	}
	if got := truncate("a very long page name", 10); got != "a very ..." {
		t.Errorf("expected 'a very ...', got %q", got)
	}
}

func TestFind_DryRun(t *testing.T) {
	out, _, err := runApp(t, "--dry-run", "find", "--json", "#login")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	infos := decodeInfos(t, out)
	if len(infos) != 1 {
		t.Fatalf("expected 1 match, got %d", len(infos))
	}
	if infos[0].Name != "#login" || infos[0].Locator != "#login" {
		t.Errorf("unexpected match %+v", infos[0])
	}
	if infos[0].Tag != "div" || !infos[0].Visible {
		t.Errorf("expected a visible div, got %+v", infos[0])
	}
}

func TestFind_DryRunText(t *testing.T) {
	out, _, err := runApp(t, "--dry-run", "find", "--name", "Login", "#login")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Login", "#login", "<div> visible at (0,0) 100x20"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestLogFlag_WritesToHomeLogs(t *testing.T) {
	if _, _, err := runApp(t, "--dry-run", "--log", "find", "#login"); err != nil {
		t.Fatalf("find failed: %v", err)
	}

	logs, err := filepath.Glob(filepath.Join(os.Getenv("WEBFIND_HOME"), "logs", "webfind-*.log"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("expected one log file, got %v", logs)
	}
}

func TestFind_AllIndexesMatches(t *testing.T) {
	out, _, err := runApp(t, "--dry-run", "find", "--json", "--all", "--kind", "xpath", "//a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	infos := decodeInfos(t, out)
	if len(infos) != 1 {
		t.Fatalf("expected 1 match, got %d", len(infos))
	}
	if infos[0].Name != "//a[0]" || infos[0].Locator != "(//a)[0]" {
		t.Errorf("expected indexed locator, got %+v", infos[0])
	}
}

func TestFind_ExpandsTemplates(t *testing.T) {
	out, _, err := runApp(t, "--dry-run", "-e", "LABEL=Save", "find", "--json", "--kind", "xpath",
		"//button[text()=${xpathLiteral(LABEL)}]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	infos := decodeInfos(t, out)
	if len(infos) != 1 || infos[0].Locator != "//button[text()='Save']" {
		t.Errorf("expected expanded locator, got %+v", infos)
	}
}

func TestFind_WaitVisible(t *testing.T) {
	out, _, err := runApp(t, "--dry-run", "find", "--wait", "visible", "--timeout", "200ms", "#banner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "#banner") {
		t.Errorf("expected match in output, got:\n%s", out)
	}
}

func TestFind_WaitAbsentTimesOut(t *testing.T) {
	_, _, err := runApp(t, "--dry-run", "find", "--wait", "absent", "--timeout", "100ms", "#banner")
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !strings.Contains(err.Error(), "absent") {
		t.Errorf("expected error to name the state, got %v", err)
	}
}

func TestFind_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no locator", []string{"--dry-run", "find"}},
		{"bad kind", []string{"--dry-run", "find", "--kind", "bogus", "#x"}},
		{"bad state", []string{"--dry-run", "find", "--wait", "gone", "#x"}},
		{"bad template", []string{"--dry-run", "find", "//a[${missing}]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := runApp(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

const loginPage = `page: Login
url: https://example.com/login
elements:
  - name: Form
    css: form#login
    children:
      - name: User
        id: username
      - name: Submit
        xpath: .//button
  - name: Links
    tag: a
    multiple: true
`

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "login.yaml", loginPage)

	out, _, err := runApp(t, "validate", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "login.yaml (4 elements)") {
		t.Errorf("expected file summary, got:\n%s", out)
	}
}

func TestValidate_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "page: Broken\nelements:\n  - name: Nothing\n")

	out, _, err := runApp(t, "validate", dir)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(out, "Nothing: no locator") {
		t.Errorf("expected error details, got:\n%s", out)
	}
}

func TestPage_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "login.yaml", loginPage)
	writeFile(t, dir, "home.yaml", "page: Home\nelements:\n  - //h1\n")

	out, _, err := runApp(t, "--dry-run", "page", "--workers", "2", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	for _, want := range []string{"Form > User", "Links", "TOTAL", "5/5"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPage_UsesConfiguredPages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pages/home.yaml", "page: Home\nelements:\n  - //h1\n")
	cfg := writeFile(t, dir, "config.yaml", "pages:\n  - pages/*.yaml\n")

	out, _, err := runApp(t, "--dry-run", "--config", cfg, "page")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Home") || !strings.Contains(out, "1/1") {
		t.Errorf("expected configured page to run, got:\n%s", out)
	}
}

func TestPage_NoPages(t *testing.T) {
	if _, _, err := runApp(t, "--dry-run", "page", t.TempDir()); err == nil {
		t.Error("expected error when no page files are found")
	}
}

func TestPage_InvalidWorkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "home.yaml", "page: Home\nelements:\n  - //h1\n")

	if _, _, err := runApp(t, "--dry-run", "page", "--workers", "0", dir); err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestMetricsFlag(t *testing.T) {
	_, stderr, err := runApp(t, "--dry-run", "--metrics", "find", "#login")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "webfind_cache_outcomes_total") {
		t.Errorf("expected metrics dump on stderr, got:\n%s", stderr)
	}
}

// w3cServer is a minimal WebDriver endpoint serving one button.
type w3cServer struct {
	mu    sync.Mutex
	paths []string
}

func (s *w3cServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.paths = append(s.paths, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	var value interface{}
	switch r.Method + " " + r.URL.Path {
	case "POST /session":
		value = map[string]interface{}{
			"sessionId":    "s1",
			"capabilities": map[string]interface{}{"browserName": "chrome"},
		}
	case "POST /session/s1/elements":
		value = []map[string]string{{"element-6066-11e4-a52e-4f735466cecf": "e1"}}
	case "GET /session/s1/element/e1/name":
		value = "button"
	case "GET /session/s1/element/e1/text":
		value = "Sign in"
	case "GET /session/s1/element/e1/rect":
		value = map[string]int{"x": 10, "y": 20, "width": 80, "height": 24}
	case "GET /session/s1/element/e1/displayed":
		value = true
	}
	writeJSON(w, map[string]interface{}{"value": value})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func TestFind_WebDriver(t *testing.T) {
	srv := &w3cServer{}
	server := httptest.NewServer(srv)
	defer server.Close()

	out, _, err := runApp(t, "--url", server.URL, "find", "--json", "button.primary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	infos := decodeInfos(t, out)
	if len(infos) != 1 {
		t.Fatalf("expected 1 match, got %d", len(infos))
	}
	got := infos[0]
	if got.Tag != "button" || got.Text != "Sign in" || got.Handle != "e1" {
		t.Errorf("unexpected match %+v", got)
	}
	if got.Bounds != (core.Bounds{X: 10, Y: 20, Width: 80, Height: 24}) {
		t.Errorf("unexpected bounds %+v", got.Bounds)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	joined := strings.Join(srv.paths, "\n")
	for _, want := range []string{"POST /session", "POST /session/s1/timeouts", "DELETE /session/s1"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected request %q, got:\n%s", want, joined)
		}
	}
}

func TestFind_WebDriverUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if _, _, err := runApp(t, "--url", url, "find", "#x"); err == nil {
		t.Error("expected connection error")
	}
}
