package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkEnergySpike    BookmarkType = "energy_spike"
	BookmarkHookFailure    BookmarkType = "hook_failure"
	BookmarkPopulationDrop BookmarkType = "population_drop"
	BookmarkSettled        BookmarkType = "settled"
)

// settledWindowsToTrigger is how many steady windows in a row make a
// settled bookmark.
const settledWindowsToTrigger = 5

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	recentActivePeak    int // peak active count in recent history
	settledWindowsCount int // consecutive windows with steady kinetic energy
	failing             bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for settled detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	// Hook failures: first window of a failing streak
	if b := bd.checkHookFailure(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Energy spike: kinetic energy > 2x rolling average
		if b := bd.checkEnergySpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Population drop: active count fell >30% from recent peak
		if b := bd.checkPopulationDrop(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Settled: kinetic energy steady over several windows
		if b := bd.checkSettled(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)

	if stats.Active > bd.recentActivePeak {
		bd.recentActivePeak = stats.Active
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns the recorded windows oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

func (bd *BookmarkDetector) checkHookFailure(stats WindowStats) *Bookmark {
	if stats.HookFailures == 0 {
		bd.failing = false
		return nil
	}
	if bd.failing {
		return nil
	}
	bd.failing = true
	return &Bookmark{
		Type:        BookmarkHookFailure,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d module hook failures in window", stats.HookFailures),
	}
}

func (bd *BookmarkDetector) checkEnergySpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	energies := make([]float64, len(history))
	for i, h := range history {
		energies[i] = h.KineticEnergy
	}
	avg := stat.Mean(energies, nil)
	if avg == 0 {
		return nil
	}

	if stats.KineticEnergy > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkEnergySpike,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Kinetic energy %.1f is %.1fx average (%.1f)", stats.KineticEnergy, stats.KineticEnergy/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkPopulationDrop(stats WindowStats) *Bookmark {
	if bd.recentActivePeak == 0 {
		return nil
	}

	dropPercent := 1.0 - float64(stats.Active)/float64(bd.recentActivePeak)
	if dropPercent > 0.30 && stats.Active < bd.recentActivePeak-10 {
		// Reset peak after drop
		oldPeak := bd.recentActivePeak
		bd.recentActivePeak = stats.Active

		return &Bookmark{
			Type:        BookmarkPopulationDrop,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Active particles dropped %.0f%% from peak %d to %d", dropPercent*100, oldPeak, stats.Active),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	if stats.Active == 0 {
		bd.settledWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := make([]float64, 0, 5)
	for _, h := range history[len(history)-4:] {
		recent = append(recent, h.KineticEnergy)
	}
	recent = append(recent, stats.KineticEnergy)
	mean, std := stat.PopMeanStdDev(recent, nil)

	// Coefficient of variation under 5%
	if mean > 0 && std/mean < 0.05 {
		bd.settledWindowsCount++
	} else {
		bd.settledWindowsCount = 0
	}

	if bd.settledWindowsCount == settledWindowsToTrigger { // trigger exactly once
		return &Bookmark{
			Type:        BookmarkSettled,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Kinetic energy steady near %.1f over %d windows", mean, settledWindowsToTrigger),
		}
	}
	return nil
}
