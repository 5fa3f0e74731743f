package gps

import "sync"

// Current holds the latest fix.  Writers are the reader goroutines below;
// the single consumer is the beacon scheduler.  A critical region avoids
// inconsistency between fields: Read always returns a complete fix, never
// a half updated one.
type Current struct {
	mu  sync.Mutex
	fix Fix
}

// NewCurrent starts in the "not initialized" state.  A reader goroutine
// clears it to "not seen" as soon as it starts, so the state only remains
// NotInit when no GPS source was configured at all.
func NewCurrent() *Current {
	return &Current{fix: emptyFix(NotInit)}
}

// Set deposits a new fix.  Called by the GPS readers when data arrives.
func (c *Current) Set(f Fix) {
	c.mu.Lock()
	c.fix = f
	c.mu.Unlock()
}

// ReadFix returns a snapshot of the most recent fix.
func (c *Current) ReadFix() Fix {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fix
}
