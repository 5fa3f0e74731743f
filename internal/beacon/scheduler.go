package beacon

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dwgo/beacond/internal/aprs"
	"github.com/dwgo/beacond/internal/gps"
)

// FixSource supplies the most recent GPS fix.  The read must be quick; a
// snapshot from memory, never a wait for the receiver.
type FixSource interface {
	ReadFix() gps.Fix
}

// Sink accepts finished frames.  Implementations must not block
// appreciably; the scheduler has only one thread.
type Sink interface {
	Enqueue(channel, priority int, f *aprs.Frame)
	ToIGate(f *aprs.Frame)
	SimulateReceive(channel int, f *aprs.Frame)
}

// IGateTraffic provides the counters reported by an IGate statistics
// beacon.  Implementations must be safe to call from this goroutine while
// the IGate updates them from its own.
type IGateTraffic interface {
	MessageCount() int
	PacketCount() int
	UplinkCount() int
	DownlinkCount() int
	HeardCount(maxHops int, within time.Duration) int
}

// Options wires the scheduler to its collaborators.  GPS and IGate may be
// nil when not configured.
type Options struct {
	Channels       []Channel
	SmartBeaconing SmartBeaconing
	GPS            FixSource
	Sink           Sink
	IGate          IGateTraffic
	MaxDigiHops    int // for the LOC_CNT statistic
	TrackerDebug   int // 1 data from gps, 2 + SmartBeaconing decisions
}

// Scheduler owns every beacon's next transmission time and the
// SmartBeaconing state.  Nothing else reads or writes them, so no lock is
// needed; the module boundary is the enforcement.
type Scheduler struct {
	defs     []*Definition
	channels []Channel
	sb       SmartBeaconing
	gps      FixSource
	sink     Sink
	igate    IGateTraffic

	maxDigiHops int
	debug       int

	now func() time.Time // replaceable for tests

	// Most recent tracker transmission, for SmartBeaconing.  Shared by
	// all tracker beacons.
	sbPrevTime   time.Time
	sbPrevCourse float64
}

// NewScheduler validates the definitions, downgrading broken ones to
// Ignore, and computes each beacon's first transmission time.
func NewScheduler(defs []*Definition, opts Options) *Scheduler {
	var s = &Scheduler{
		defs:         defs,
		channels:     opts.Channels,
		sb:           opts.SmartBeaconing,
		gps:          opts.GPS,
		sink:         opts.Sink,
		igate:        opts.IGate,
		maxDigiHops:  opts.MaxDigiHops,
		debug:        opts.TrackerDebug,
		now:          time.Now,
		sbPrevCourse: aprs.Unknown,
	}

	var gpsQuality = gps.NotInit
	if s.gps != nil {
		gpsQuality = s.gps.ReadFix().Quality
	}

	validate(s.defs, s.channels, gpsQuality, s.igate != nil)
	s.initSchedule(s.now())

	return s
}

// dividesHour reports whether there is a whole number of beacon intervals
// per hour, required for time slots to repeat at the same offsets.
func dividesHour(every int) bool {
	return (3600/every)*every == 3600
}

// initSchedule calculates the first time for each beacon from the slot or
// delay value.
func (s *Scheduler) initSchedule(now time.Time) {
	for _, bp := range s.defs {
		if bp.Kind == Ignore {
			continue
		}
		if bp.Slot != aprs.Unknown {
			if !dividesHour(bp.Every) {
				log.Error("When using timeslots, there must be a whole number of beacon intervals per hour.", "line", bp.Line)

				// Try to make it valid by adjusting up or down.
				for n := 1; ; n++ {
					var e = bp.Every + n
					if e > 3600 {
						bp.Every = 3600
						break
					}
					if dividesHour(e) {
						bp.Every = e
						break
					}
					e = bp.Every - n
					if e < 1 {
						bp.Every = 1
						break
					}
					if dividesHour(e) {
						bp.Every = e
						break
					}
				}
				log.Error("Time between slotted beacons has been adjusted.", "line", bp.Line, "every", bp.Every)
			}

			// Delay until the next slot time arrives.
			bp.Delay = bp.Slot - (now.Minute()*60 + now.Second())
			for bp.Delay > bp.Every {
				bp.Delay -= bp.Every
			}
			for bp.Delay < 5 {
				bp.Delay += bp.Every
			}
		}

		bp.next = now.Add(time.Duration(bp.Delay) * time.Second)
	}
}

// Start launches the scheduling goroutine if at least one beacon survived
// validation.  Reports whether it started.
func (s *Scheduler) Start(ctx context.Context) bool {
	var count = 0
	for _, bp := range s.defs {
		if bp.Kind != Ignore {
			count++
		}
	}
	if count == 0 {
		return false
	}

	go s.run(ctx)
	return true
}

func (s *Scheduler) trackerCount() int {
	var n = 0
	for _, bp := range s.defs {
		if bp.Kind == Tracker {
			n++
		}
	}
	return n
}

// run sleeps until it is time for the next beacon, transmits whatever is
// due, and repeats until cancelled.  The sleep is the only suspension
// point.
func (s *Scheduler) run(ctx context.Context) {
	var trackers = s.trackerCount()

	for {
		var now = s.now()

		// Sleep until the earliest scheduled time, or the soonest a
		// corner peg or fast rate re-evaluation could require a
		// transmission that no next time reflects yet.
		var earliest = now.Add(time.Hour)
		for _, bp := range s.defs {
			if bp.Kind != Ignore && bp.next.Before(earliest) {
				earliest = bp.next
			}
		}

		if s.sb.Enabled && trackers > 0 {
			if t := now.Add(time.Duration(s.sb.TurnTimeSec) * time.Second); t.Before(earliest) {
				earliest = t
			}
			if t := now.Add(time.Duration(s.sb.FastRateSec) * time.Second); t.Before(earliest) {
				earliest = t
			}
		}

		if d := earliest.Sub(now); d > 0 {
			var timer = time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}

		s.wake(s.now())
	}
}

// wake is one iteration of the loop after the sleep: refresh GPS, apply
// SmartBeaconing, send whatever is due, compute new next times.
func (s *Scheduler) wake(now time.Time) {
	// One GPS snapshot shared by every tracker beacon this cycle.
	var fix = gps.Fix{Quality: gps.NotInit}

	if s.trackerCount() > 0 {
		fix = s.gps.ReadFix()

		if s.debug >= 1 {
			log.Debug("tracker gps",
				"fix", fix.Quality,
				"lat", fix.Latitude, "lon", fix.Longitude,
				"mph", aprs.KnotsToMPH(fix.SpeedKnots), "track", fix.TrackDeg,
				"alt_m", fix.AltitudeM)
		}

		// Don't complain here about no fix; possibly at the point
		// where about to transmit.

		if s.sb.Enabled && fix.Quality >= gps.Fix2D {
			var tnext = s.sb.NextTime(now,
				aprs.KnotsToMPH(fix.SpeedKnots), fix.TrackDeg,
				s.sbPrevTime, s.sbPrevCourse)

			if s.debug >= 2 {
				log.Debug("smartbeaconing",
					"next", tnext,
					"prev_xmit", s.sbPrevTime, "prev_course", s.sbPrevCourse)
			}

			// Move tracker beacons up if corner pegging wants to
			// transmit sooner.
			for _, bp := range s.defs {
				if bp.Kind == Tracker && tnext.Before(bp.next) {
					bp.next = tnext
				}
			}
		}
	}

	for _, bp := range s.defs {
		if bp.Kind == Ignore || bp.next.After(now) {
			continue
		}

		s.sendOne(bp, fix)

		// Calculate when the next one should be sent.  Easy for fixed
		// interval; SmartBeaconing takes more effort.
		switch {
		case bp.Kind == Tracker && fix.Quality < gps.Fix2D:
			if s.sb.Enabled {
				// Fix not available so nothing was sent.  Try
				// again in a couple seconds.
				bp.next = now.Add(2 * time.Second)
			} else {
				// Stay with the schedule.  Important for slotted.
				bp.next = bp.next.Add(time.Duration(bp.Every) * time.Second)
			}

		case bp.Kind == Tracker && s.sb.Enabled:
			// Remember the most recent tracker transmission and
			// compute the next time for travel in a straight line.
			s.sbPrevTime = now
			s.sbPrevCourse = fix.TrackDeg

			bp.next = s.sb.NextTime(now,
				aprs.KnotsToMPH(fix.SpeedKnots), fix.TrackDeg,
				s.sbPrevTime, s.sbPrevCourse)

		case bp.Kind == Tracker:
			bp.next = bp.next.Add(time.Duration(bp.Every) * time.Second)

		default:
			// Increment by the interval so slotted times come out
			// right; never relative to now in case there was delay.
			bp.next = bp.next.Add(time.Duration(bp.Every) * time.Second)

			// A portable system with no network starts with a bogus
			// clock.  When NTP or GPS pushes the clock ahead, every
			// scheduled time is suddenly in the past; reschedule
			// relative to now rather than transmitting a backlog.
			// This knowingly breaks slot alignment until the next
			// hour.
			if bp.next.Before(now) {
				bp.next = now.Add(time.Duration(bp.Every) * time.Second)
				log.Info("System clock appears to have jumped forward.  Beacon schedule updated.")
			}
		}
	}
}

// sendOne isolates a single beacon's payload construction so trouble with
// one beacon never stops the others.
func (s *Scheduler) sendOne(bp *Definition, fix gps.Fix) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Beacon transmission failed.", "line", bp.Line, "panic", r)
		}
	}()

	s.send(bp, fix)
}
