package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/satindergrewal/backline/internal/catalog"
)

func TestRunReturnsBootFailure(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })

	logPath := filepath.Join(t.TempDir(), "backline.log")
	cfg.TrackDir = t.TempDir()
	cfg.TUI = true
	cfg.LogFile = logPath
	cfg.LogLevel = "info"

	err := run(rootCmd, nil)
	if !errors.Is(err, catalog.ErrNoAssets) {
		t.Fatalf("run = %v, want ErrNoAssets", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "track library") {
		t.Errorf("log file missing boot failure: %q", data)
	}
}
