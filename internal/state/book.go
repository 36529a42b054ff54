package state

import (
	"sync"
	"time"

	"tradecore/internal/model"
)

// counterRetentionDays bounds the daily-counter map: date keys older than
// this are pruned opportunistically on increment.
const counterRetentionDays = 7

type counterKey struct {
	symbol string
	day    string
}

// Book holds the shared mutable position state: the open-position index and
// the per-(symbol, date) daily trade counters. Both the risk manager and the
// order lifecycle manager touch it, so every access goes through the mutex.
type Book struct {
	mu        sync.RWMutex
	positions map[string]model.Position
	daily     map[counterKey]int
}

// NewBook creates an empty position book.
func NewBook() *Book {
	return &Book{
		positions: make(map[string]model.Position),
		daily:     make(map[counterKey]int),
	}
}

// Hydrate replaces the open-position index with persisted positions.
// Called once at startup so a restart does not lose exposure accounting.
func (b *Book) Hydrate(positions []model.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.positions {
		delete(b.positions, key)
	}
	for _, p := range positions {
		b.positions[p.ID] = p
	}
}

// Upsert stores or replaces a position by id.
func (b *Book) Upsert(p model.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[p.ID] = p
}

// Remove drops a position from the index.
func (b *Book) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.positions, id)
}

// Get returns the position for an id.
func (b *Book) Get(id string) (model.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[id]
	return p, ok
}

// Positions returns a copy of all tracked positions.
func (b *Book) Positions() []model.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out
}

// Len returns the number of tracked positions.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Exposure sums notional value (size x entry price) across tracked positions.
func (b *Book) Exposure() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var total float64
	for _, p := range b.positions {
		total += p.Notional()
	}
	return total
}

// IncrementDaily bumps the trade counter for (symbol, UTC date of now) and
// returns the new count. Stale date keys age out here rather than through an
// explicit reset job.
func (b *Book) IncrementDaily(symbol string, now time.Time) int {
	day := now.UTC().Format(time.DateOnly)
	cutoff := now.UTC().AddDate(0, 0, -counterRetentionDays).Format(time.DateOnly)

	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.daily {
		if key.day < cutoff {
			delete(b.daily, key)
		}
	}
	key := counterKey{symbol: symbol, day: day}
	b.daily[key]++
	return b.daily[key]
}

// DailyCount returns the trade count for (symbol, UTC date of now).
func (b *Book) DailyCount(symbol string, now time.Time) int {
	key := counterKey{symbol: symbol, day: now.UTC().Format(time.DateOnly)}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.daily[key]
}

// MaxDailyCount returns the highest per-symbol trade count for the UTC date
// of now. Used by the limit-status report.
func (b *Book) MaxDailyCount(now time.Time) int {
	day := now.UTC().Format(time.DateOnly)
	b.mu.RLock()
	defer b.mu.RUnlock()
	max := 0
	for key, count := range b.daily {
		if key.day == day && count > max {
			max = count
		}
	}
	return max
}
