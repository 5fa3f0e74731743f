// Package xmit carries finished frames to the outside world.
//
// A priority queue feeds a KISS TNC connection; every transmitted frame
// can additionally be mirrored to an MQTT topic and a daily log file.
// The Dispatcher bundles these behind the sink interface the beacon
// scheduler expects.
package xmit

import (
	"sync"

	"github.com/dwgo/beacond/internal/aprs"
)

// Queue priorities.  High is for digipeated and other time critical
// traffic, low for beacons; within a priority, first in first out.
const (
	PrioHigh = 0
	PrioLow  = 1

	numPrio = 2
)

type queued struct {
	channel int
	frame   *aprs.Frame
}

// Queue is the transmit queue.  Multiple producers, one consumer.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [numPrio][]queued
	closed bool
}

func NewQueue() *Queue {
	var q = &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Append adds a frame at the given priority.  Out of range priorities
// are treated as low.
func (q *Queue) Append(channel, priority int, f *aprs.Frame) {
	if priority < 0 || priority >= numPrio {
		priority = PrioLow
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items[priority] = append(q.items[priority], queued{channel, f})
	q.cond.Signal()
}

// Remove blocks until a frame is available and returns the highest
// priority one, or ok false after Close.
func (q *Queue) Remove() (channel int, f *aprs.Frame, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		for p := 0; p < numPrio; p++ {
			if len(q.items[p]) > 0 {
				var it = q.items[p][0]
				q.items[p] = q.items[p][1:]
				return it.channel, it.frame, true
			}
		}
		if q.closed {
			return 0, nil, false
		}
		q.cond.Wait()
	}
}

// Len reports the number of queued frames across all priorities.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n = 0
	for p := 0; p < numPrio; p++ {
		n += len(q.items[p])
	}
	return n
}

// Close wakes any blocked Remove and makes further Appends no-ops.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}
