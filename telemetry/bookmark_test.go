package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_EnergySpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := range 5 {
		bd.Check(WindowStats{
			WindowEndTick: int64(i * 60),
			Active:        100,
			KineticEnergy: 10,
		})
	}

	bookmarks := bd.Check(WindowStats{
		WindowEndTick: 300,
		Active:        100,
		KineticEnergy: 25, // 2.5x the average
	})
	if !hasBookmark(bookmarks, BookmarkEnergySpike) {
		t.Error("expected energy_spike bookmark")
	}
}

func TestBookmarkDetector_NoSpikeWithShortHistory(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{Active: 10, KineticEnergy: 1})
	bd.Check(WindowStats{Active: 10, KineticEnergy: 1})
	bookmarks := bd.Check(WindowStats{Active: 10, KineticEnergy: 100})
	if hasBookmark(bookmarks, BookmarkEnergySpike) {
		t.Error("energy spike needs at least 3 windows of history")
	}
}

func TestBookmarkDetector_PopulationDrop(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := range 5 {
		bd.Check(WindowStats{
			WindowEndTick: int64(i * 60),
			Active:        100,
		})
	}

	bookmarks := bd.Check(WindowStats{
		WindowEndTick: 300,
		Active:        50, // 50% drop
	})
	if !hasBookmark(bookmarks, BookmarkPopulationDrop) {
		t.Error("expected population_drop bookmark")
	}

	// The peak resets after a drop, so holding steady does not re-trigger.
	bookmarks = bd.Check(WindowStats{WindowEndTick: 360, Active: 50})
	if hasBookmark(bookmarks, BookmarkPopulationDrop) {
		t.Error("population_drop should not re-trigger at the new level")
	}
}

func TestBookmarkDetector_SmallPopulationDropIgnored(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for range 3 {
		bd.Check(WindowStats{Active: 20})
	}
	// 40% drop but only 8 particles
	bookmarks := bd.Check(WindowStats{Active: 12})
	if hasBookmark(bookmarks, BookmarkPopulationDrop) {
		t.Error("drops of 10 or fewer particles should be ignored")
	}
}

func TestBookmarkDetector_HookFailureStreak(t *testing.T) {
	bd := NewBookmarkDetector(10)

	tests := []struct {
		failures int
		want     bool
	}{
		{2, true},  // streak starts
		{3, false}, // streak continues
		{0, false}, // streak ends
		{1, true},  // new streak
	}
	for i, tt := range tests {
		bookmarks := bd.Check(WindowStats{
			WindowEndTick: int64(i * 60),
			Active:        10,
			HookFailures:  tt.failures,
		})
		if got := hasBookmark(bookmarks, BookmarkHookFailure); got != tt.want {
			t.Errorf("window %d: hook_failure = %v, want %v", i, got, tt.want)
		}
	}
}

func TestBookmarkDetector_Settled(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var settledAt []int
	for i := range 15 {
		bookmarks := bd.Check(WindowStats{
			WindowEndTick: int64(i * 60),
			Active:        100,
			KineticEnergy: 50,
		})
		if hasBookmark(bookmarks, BookmarkSettled) {
			settledAt = append(settledAt, i)
		}
	}

	// Steadiness is measured from the fifth window on; five steady
	// windows in a row trigger once.
	if len(settledAt) != 1 || settledAt[0] != 8 {
		t.Errorf("settled triggered at %v, want [8]", settledAt)
	}
}

func TestBookmarkDetector_NotSettledWhenNoisy(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := range 15 {
		energy := 50.0
		if i%2 == 0 {
			energy = 80
		}
		bookmarks := bd.Check(WindowStats{Active: 100, KineticEnergy: energy})
		if hasBookmark(bookmarks, BookmarkSettled) {
			t.Fatalf("unexpected settled bookmark at window %d", i)
		}
	}
}

func TestBookmarkDetector_HistoryOrder(t *testing.T) {
	bd := NewBookmarkDetector(5)

	for i := range 7 {
		bd.Check(WindowStats{WindowEndTick: int64(i)})
	}

	history := bd.getHistory()
	if len(history) != 5 {
		t.Fatalf("history len = %d, want 5", len(history))
	}
	for i, h := range history {
		if want := int64(i + 2); h.WindowEndTick != want {
			t.Errorf("history[%d] = tick %d, want %d", i, h.WindowEndTick, want)
		}
	}
}
