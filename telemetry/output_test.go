package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/swarm/config"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestOutputManager_Disabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if om != nil {
		t.Fatal("expected nil manager for empty dir")
	}

	// All methods are no-ops on a nil manager.
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Errorf("WriteTelemetry: %v", err)
	}
	if err := om.WriteBookmark(Bookmark{}); err != nil {
		t.Errorf("WriteBookmark: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if om.Dir() != "" {
		t.Error("expected empty Dir")
	}
}

func TestOutputManager_WritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	for i := range 3 {
		if err := om.WriteTelemetry(WindowStats{WindowEndTick: int64(60 * (i + 1)), Active: 100}); err != nil {
			t.Fatalf("WriteTelemetry: %v", err)
		}
	}
	if err := om.WritePerf(PerfStats{PhasePct: map[string]float64{PhaseGrid: 12.5}}, 60); err != nil {
		t.Fatalf("WritePerf: %v", err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkSettled, Tick: 120, Description: "steady"}); err != nil {
		t.Fatalf("WriteBookmark: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	telemetry := readLines(t, filepath.Join(dir, TelemetryFile))
	if len(telemetry) != 4 {
		t.Fatalf("telemetry.csv has %d lines, want header + 3 rows", len(telemetry))
	}
	if !strings.HasPrefix(telemetry[0], "window_end,sim_time,active") {
		t.Errorf("unexpected telemetry header %q", telemetry[0])
	}
	if strings.Contains(telemetry[0], "WindowStartTick") {
		t.Error("window start should not be exported")
	}
	if !strings.HasPrefix(telemetry[3], "180,") {
		t.Errorf("unexpected last row %q", telemetry[3])
	}

	perf := readLines(t, filepath.Join(dir, PerfFile))
	if len(perf) != 2 || !strings.Contains(perf[0], "grid_pct") {
		t.Errorf("unexpected perf.csv %v", perf)
	}

	bookmarks := readLines(t, filepath.Join(dir, BookmarksFile))
	if len(bookmarks) != 2 || bookmarks[1] != "settled,120,steady" {
		t.Errorf("unexpected bookmarks.csv %v", bookmarks)
	}
}

func TestOutputManager_WriteConfig(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}
	defer om.Close()

	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	loaded, err := config.Load(filepath.Join(dir, ConfigFile))
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if loaded.Population.Count != cfg.Population.Count {
		t.Errorf("population count = %d, want %d", loaded.Population.Count, cfg.Population.Count)
	}
}
