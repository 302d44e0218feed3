package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	envHome    = "WEBFIND_HOME"
	projectDir = ".webfind"
)

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the directory holding config.yaml, pages/ and logs/.
//
// Resolution order:
//  1. $WEBFIND_HOME
//  2. .webfind in the working directory, when it exists
//  3. <user config dir>/webfind
//  4. the working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogDir returns <home>/logs.
func GetLogDir() string {
	return filepath.Join(GetHome(), "logs")
}

// GetPagesDir returns <home>/pages, the default location of page-object files.
func GetPagesDir() string {
	return filepath.Join(GetHome(), "pages")
}

// NewLogPath returns a per-run log file path under GetLogDir, named after
// the run's start time.
func NewLogPath(start time.Time) string {
	return filepath.Join(GetLogDir(), "webfind-"+start.Format("20060102-150405")+".log")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	cwd, cwdErr := os.Getwd()
	if cwdErr == nil {
		local := filepath.Join(cwd, projectDir)
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			return local
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "webfind")
	}
	if cwdErr == nil {
		return cwd
	}
	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
