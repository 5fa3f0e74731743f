package igate

import (
	"strings"
	"sync"
	"time"
)

// Heard remembers when each station was last heard and through how many
// digipeaters, for the local/direct counts in an IGate statistics
// beacon.  A station heard both directly and through a digipeater keeps
// the smaller hop count; reception quality can vary from packet to
// packet and the best case is the interesting one.
type Heard struct {
	mu       sync.Mutex
	stations map[string]heardEntry
}

type heardEntry struct {
	when time.Time
	hops int
}

func NewHeard() *Heard {
	return &Heard{stations: make(map[string]heardEntry)}
}

// Update records that station was heard now after the given number of
// digipeater hops.
func (h *Heard) Update(station string, hops int, when time.Time) {
	station = strings.ToUpper(strings.TrimSpace(station))
	if station == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var e, ok = h.stations[station]
	if !ok || hops < e.hops {
		e.hops = hops
	}
	e.when = when
	h.stations[station] = e
}

// Count reports how many distinct stations were heard with at most
// maxHops digipeater hops during the last within.
func (h *Heard) Count(maxHops int, within time.Duration) int {
	var cutoff = time.Now().Add(-within)

	h.mu.Lock()
	defer h.mu.Unlock()

	var n = 0
	for _, e := range h.stations {
		if e.hops <= maxHops && e.when.After(cutoff) {
			n++
		}
	}
	return n
}

// Prune drops stations not heard for longer than keep.  The table would
// otherwise grow without bound at a busy site.
func (h *Heard) Prune(keep time.Duration) {
	var cutoff = time.Now().Add(-keep)

	h.mu.Lock()
	defer h.mu.Unlock()

	for call, e := range h.stations {
		if e.when.Before(cutoff) {
			delete(h.stations, call)
		}
	}
}
