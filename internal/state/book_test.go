package state

import (
	"testing"
	"time"

	"tradecore/internal/model"
)

func TestBookExposure(t *testing.T) {
	book := NewBook()
	book.Upsert(model.Position{ID: "a", Symbol: "BTC-USD", Size: 0.1, EntryPrice: 50000, Status: model.StatusFilled})
	book.Upsert(model.Position{ID: "b", Symbol: "ETH-USD", Size: 1, EntryPrice: 2000, Status: model.StatusFilled})

	if got := book.Exposure(); got != 7000 {
		t.Fatalf("exposure = %v, want 7000", got)
	}

	book.Remove("a")
	if got := book.Exposure(); got != 2000 {
		t.Fatalf("exposure after remove = %v, want 2000", got)
	}
}

func TestBookHydrateReplaces(t *testing.T) {
	book := NewBook()
	book.Upsert(model.Position{ID: "stale", Size: 1, EntryPrice: 100})

	book.Hydrate([]model.Position{
		{ID: "a", Size: 0.5, EntryPrice: 200},
		{ID: "b", Size: 0.5, EntryPrice: 200},
	})

	if book.Len() != 2 {
		t.Fatalf("len = %d, want 2", book.Len())
	}
	if _, ok := book.Get("stale"); ok {
		t.Fatal("hydrate should drop prior positions")
	}
}

func TestDailyCounters(t *testing.T) {
	book := NewBook()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if got := book.IncrementDaily("BTC-USD", now); got != 1 {
		t.Fatalf("first increment = %d, want 1", got)
	}
	if got := book.IncrementDaily("BTC-USD", now); got != 2 {
		t.Fatalf("second increment = %d, want 2", got)
	}
	if got := book.DailyCount("BTC-USD", now); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}

	// Different symbol and different day count independently.
	if got := book.DailyCount("ETH-USD", now); got != 0 {
		t.Fatalf("other symbol count = %d, want 0", got)
	}
	nextDay := now.AddDate(0, 0, 1)
	if got := book.DailyCount("BTC-USD", nextDay); got != 0 {
		t.Fatalf("next day count = %d, want 0", got)
	}

	book.IncrementDaily("ETH-USD", now)
	if got := book.MaxDailyCount(now); got != 2 {
		t.Fatalf("max daily = %d, want 2", got)
	}
}

func TestDailyCounterPruning(t *testing.T) {
	book := NewBook()
	old := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	book.IncrementDaily("BTC-USD", old)

	later := old.AddDate(0, 0, counterRetentionDays+1)
	book.IncrementDaily("BTC-USD", later)

	if got := book.DailyCount("BTC-USD", old); got != 0 {
		t.Fatalf("stale counter should be pruned, got %d", got)
	}
	if got := book.DailyCount("BTC-USD", later); got != 1 {
		t.Fatalf("current counter = %d, want 1", got)
	}
}
