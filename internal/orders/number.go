package orders

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// NumberGenerator mints ORD-<millis>-<suffix> order numbers. The suffix is
// random per millisecond and bumps sequentially when two orders land on the
// same tick, so a single process never repeats a number. The unique index on
// numero_orden backs this across processes.
type NumberGenerator struct {
	mu         sync.Mutex
	lastMillis int64
	suffix     int
}

// NewNumberGenerator builds the generator.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{}
}

// Next returns the order number for the given instant.
func (g *NumberGenerator) Next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := now.UnixMilli()
	if millis <= g.lastMillis {
		millis = g.lastMillis
		g.suffix++
	} else {
		g.lastMillis = millis
		g.suffix = rand.Intn(1000)
	}
	return fmt.Sprintf("ORD-%d-%d", millis, g.suffix)
}
