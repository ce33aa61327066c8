package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLOCK - Discrete time source (stands in for block numbers)
// =============================================================================

// Clock returns the current tick. Readings never decrease.
type Clock interface {
	Now() Tick
}

const (
	// DefaultTickDuration is the wall-clock length of one tick.
	DefaultTickDuration = 3 * time.Second

	// DefaultEditWindow is how long a post stays editable.
	DefaultEditWindow = 10 * time.Minute
)

// EditWindowTicks converts a wall-clock edit window into ticks, rounding to
// the nearest whole tick. 10 minutes at 3 seconds per tick is 200 ticks.
func EditWindowTicks(window, tickDuration time.Duration) Tick {
	if window <= 0 || tickDuration <= 0 {
		return 0
	}
	ticks := decimal.NewFromInt(int64(window)).
		Div(decimal.NewFromInt(int64(tickDuration))).
		Round(0)
	if ticks.LessThan(decimal.NewFromInt(1)) {
		return 1
	}
	return Tick(ticks.IntPart())
}

// ManualClock is advanced explicitly. Tests use it to simulate passing time.
type ManualClock struct {
	mu  sync.Mutex
	now Tick
}

// NewManualClock returns a clock reading start.
func NewManualClock(start Tick) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by n ticks and returns the new reading.
func (c *ManualClock) Advance(n Tick) Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += n
	return c.now
}

// WallClock derives ticks from elapsed wall-clock time since Genesis.
type WallClock struct {
	Genesis      time.Time
	TickDuration time.Duration

	now func() time.Time
}

// NewWallClock creates a wall clock. A zero tickDuration uses DefaultTickDuration.
func NewWallClock(genesis time.Time, tickDuration time.Duration) *WallClock {
	if tickDuration <= 0 {
		tickDuration = DefaultTickDuration
	}
	return &WallClock{Genesis: genesis, TickDuration: tickDuration, now: time.Now}
}

func (c *WallClock) Now() Tick {
	elapsed := c.now().Sub(c.Genesis)
	if elapsed < 0 {
		return 0
	}
	return Tick(elapsed / c.TickDuration)
}
