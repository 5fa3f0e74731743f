package beacon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwgo/beacond/internal/aprs"
	"github.com/dwgo/beacond/internal/gps"
)

type queued struct {
	channel  int
	priority int
	frame    *aprs.Frame
}

type fakeSink struct {
	sent     []queued
	igated   []*aprs.Frame
	received []queued
}

func (f *fakeSink) Enqueue(channel, priority int, fr *aprs.Frame) {
	f.sent = append(f.sent, queued{channel, priority, fr})
}

func (f *fakeSink) ToIGate(fr *aprs.Frame) { f.igated = append(f.igated, fr) }

func (f *fakeSink) SimulateReceive(channel int, fr *aprs.Frame) {
	f.received = append(f.received, queued{channel, PrioLow, fr})
}

type fakeGPS struct{ fix gps.Fix }

func (f *fakeGPS) ReadFix() gps.Fix { return f.fix }

var testChannels = []Channel{{Call: "W1ABC", Medium: MediumRadio}}

func positionDef(every int) *Definition {
	return &Definition{
		Line:   10,
		Kind:   Position,
		Every:  every,
		Lat:    42.0 + 34.61/60.0,
		Lon:    -(71.0 + 26.47/60.0),
		AltM:   aprs.Unknown,
		Slot:   aprs.Unknown,
		SymTab: '/',
		Symbol: '-',
	}
}

func trackerDef(every int) *Definition {
	var bp = positionDef(every)
	bp.Kind = Tracker
	bp.Lat = aprs.Unknown
	bp.Lon = aprs.Unknown
	return bp
}

func newTestScheduler(defs []*Definition, sink *fakeSink, src FixSource) *Scheduler {
	return &Scheduler{
		defs:         defs,
		channels:     testChannels,
		gps:          src,
		sink:         sink,
		now:          time.Now,
		sbPrevCourse: aprs.Unknown,
	}
}

func TestDividesHour(t *testing.T) {
	assert.True(t, dividesHour(1))
	assert.True(t, dividesHour(600))
	assert.True(t, dividesHour(720))
	assert.True(t, dividesHour(1800))
	assert.True(t, dividesHour(3600))
	assert.False(t, dividesHour(700))
	assert.False(t, dividesHour(1000))
	assert.False(t, dividesHour(3599))
}

func TestSlotIntervalCorrection(t *testing.T) {
	tests := []struct {
		every   int
		corrected int
	}{
		{every: 600, corrected: 600},
		{every: 700, corrected: 720},
		{every: 1802, corrected: 1800},
		{every: 3700, corrected: 3600},
	}

	for _, tt := range tests {
		var bp = positionDef(tt.every)
		bp.Slot = 0

		var s = newTestScheduler([]*Definition{bp}, &fakeSink{}, nil)
		s.initSchedule(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

		assert.Equal(t, tt.corrected, bp.Every, "every=%d", tt.every)
	}
}

func TestInitScheduleSkipsIgnored(t *testing.T) {
	var bp = positionDef(700)
	bp.Slot = 0
	bp.Kind = Ignore

	var s = newTestScheduler([]*Definition{bp}, &fakeSink{}, nil)
	s.initSchedule(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	// A downgraded beacon gets no slot correction and no first time.
	assert.Equal(t, 700, bp.Every)
	assert.True(t, bp.next.IsZero())
}

func TestSlotScheduleAlignment(t *testing.T) {
	tests := []struct {
		name  string
		slot  int
		every int
		now   time.Time
		next  time.Time
	}{
		{
			name: "slot later this interval",
			slot: 30, every: 600,
			now:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
			next: time.Date(2026, 6, 1, 12, 0, 30, 0, time.UTC),
		},
		{
			name: "slot too close, pushed a full interval",
			slot: 2, every: 600,
			now:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
			next: time.Date(2026, 6, 1, 12, 10, 2, 0, time.UTC),
		},
		{
			name: "slot already passed this hour",
			slot: 120, every: 600,
			now:  time.Date(2026, 6, 1, 12, 25, 0, 0, time.UTC),
			next: time.Date(2026, 6, 1, 12, 32, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bp = positionDef(tt.every)
			bp.Slot = tt.slot

			var s = newTestScheduler([]*Definition{bp}, &fakeSink{}, nil)
			s.initSchedule(tt.now)

			assert.GreaterOrEqual(t, bp.Delay, 5)
			assert.Equal(t, tt.next, bp.next)
			assert.Equal(t, tt.slot%tt.every, (bp.next.Minute()*60+bp.next.Second())%tt.every)
		})
	}
}

func TestInitScheduleDelay(t *testing.T) {
	var bp = positionDef(600)
	bp.Delay = 45

	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	var s = newTestScheduler([]*Definition{bp}, &fakeSink{}, nil)
	s.initSchedule(now)

	assert.Equal(t, now.Add(45*time.Second), bp.next)
}

func TestWakeSendsDueBeacons(t *testing.T) {
	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	var due = positionDef(600)
	due.next = now
	var later = positionDef(600)
	later.next = now.Add(10 * time.Second)

	var sink = &fakeSink{}
	var s = newTestScheduler([]*Definition{due, later}, sink, nil)
	s.wake(now)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, PrioLow, sink.sent[0].priority)
	assert.Equal(t, now.Add(600*time.Second), due.next)
	assert.Equal(t, now.Add(10*time.Second), later.next)
}

func TestWakeSkipsIgnored(t *testing.T) {
	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	var bp = positionDef(600)
	bp.Kind = Ignore
	bp.next = now.Add(-time.Hour)

	var sink = &fakeSink{}
	var s = newTestScheduler([]*Definition{bp}, sink, nil)
	s.wake(now)

	assert.Empty(t, sink.sent)
}

func TestClockJumpRecovery(t *testing.T) {
	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	// The clock jumped two hours ahead of the schedule.  Exactly one
	// transmission happens, not a backlog, and the schedule restarts
	// relative to the new time.
	var bp = positionDef(600)
	bp.next = now.Add(-2 * time.Hour)

	var sink = &fakeSink{}
	var s = newTestScheduler([]*Definition{bp}, sink, nil)
	s.wake(now)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, now.Add(600*time.Second), bp.next)

	// A second pass transmits nothing further.
	s.wake(now)
	assert.Len(t, sink.sent, 1)
}

func TestTrackerNoFixHoldsSchedule(t *testing.T) {
	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	var bp = trackerDef(300)
	bp.next = now

	var sink = &fakeSink{}
	var s = newTestScheduler([]*Definition{bp}, sink, &fakeGPS{fix: gps.Fix{Quality: gps.NoFix}})
	s.wake(now)

	// Nothing went out, and the slot-friendly fixed interval stands.
	assert.Empty(t, sink.sent)
	assert.Equal(t, now.Add(300*time.Second), bp.next)
}

func TestTrackerNoFixSmartBeaconingRetries(t *testing.T) {
	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	var bp = trackerDef(300)
	bp.next = now

	var sink = &fakeSink{}
	var s = newTestScheduler([]*Definition{bp}, sink, &fakeGPS{fix: gps.Fix{Quality: gps.NoFix}})
	s.sb = testSB()
	s.wake(now)

	assert.Empty(t, sink.sent)
	assert.Equal(t, now.Add(2*time.Second), bp.next)
}

func TestTrackerSmartBeaconingFastRate(t *testing.T) {
	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	var bp = trackerDef(600)
	bp.next = now

	var fix = gps.Fix{
		When:       now,
		Quality:    gps.Fix2D,
		Latitude:   42.5,
		Longitude:  -71.0,
		SpeedKnots: 70, // about 80 MPH, above the fast threshold
		TrackDeg:   90,
		AltitudeM:  aprs.Unknown,
	}

	var sink = &fakeSink{}
	var s = newTestScheduler([]*Definition{bp}, sink, &fakeGPS{fix: fix})
	s.sb = testSB()
	s.wake(now)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, now.Add(time.Duration(s.sb.FastRateSec)*time.Second), bp.next)
	assert.Equal(t, now, s.sbPrevTime)
	assert.InDelta(t, 90, s.sbPrevCourse, 0.001)
}

func TestTrackerCornerPeggingFiresEarly(t *testing.T) {
	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	// Scheduled well into the future, but the heading swung 90 degrees
	// at 23 MPH a minute after the last transmission, so the corner peg
	// pulls it in and it transmits this cycle.
	var bp = trackerDef(600)
	bp.next = now.Add(500 * time.Second)

	var fix = gps.Fix{
		When:       now,
		Quality:    gps.Fix2D,
		Latitude:   42.5,
		Longitude:  -71.0,
		SpeedKnots: 20,
		TrackDeg:   90,
		AltitudeM:  aprs.Unknown,
	}

	var sink = &fakeSink{}
	var s = newTestScheduler([]*Definition{bp}, sink, &fakeGPS{fix: fix})
	s.sb = testSB()
	s.sbPrevTime = now.Add(-60 * time.Second)
	s.sbPrevCourse = 0
	s.wake(now)

	require.Len(t, sink.sent, 1)
	assert.True(t, bp.next.After(now))
}

func TestTrackerFixedIntervalWithoutSmartBeaconing(t *testing.T) {
	var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	var bp = trackerDef(180)
	bp.next = now

	var fix = gps.Fix{
		When:       now,
		Quality:    gps.Fix2D,
		Latitude:   42.5,
		Longitude:  -71.0,
		SpeedKnots: 20,
		TrackDeg:   90,
		AltitudeM:  aprs.Unknown,
	}

	var sink = &fakeSink{}
	var s = newTestScheduler([]*Definition{bp}, sink, &fakeGPS{fix: fix})
	s.wake(now)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, now.Add(180*time.Second), bp.next)
}

func TestValidateDowngrades(t *testing.T) {
	tests := []struct {
		name string
		bp   *Definition
	}{
		{name: "position without coordinates", bp: &Definition{Kind: Position, Lat: aprs.Unknown, Lon: aprs.Unknown}},
		{name: "object without name", bp: &Definition{Kind: Object, Lat: 42.5, Lon: -71.0}},
		{name: "custom without info", bp: &Definition{Kind: Custom}},
		{name: "tracker without gps", bp: &Definition{Kind: Tracker}},
		{name: "igate stats without igate", bp: &Definition{Kind: IGateStats}},
		{name: "channel out of range", bp: &Definition{Kind: Position, Lat: 42.5, Lon: -71.0, Channel: 5}},
		{name: "negative channel", bp: &Definition{Kind: Position, Lat: 42.5, Lon: -71.0, Channel: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validate([]*Definition{tt.bp}, testChannels, gps.NotInit, false)
			assert.Equal(t, Ignore, tt.bp.Kind)
		})
	}
}

func TestValidateIGateIgnoresChannel(t *testing.T) {
	// Beacons bound for the IGate server identify as channel 0, so a
	// stray channel number must not invalidate them.
	var bp = &Definition{Kind: IGateStats, SendTo: ToIGate, Channel: 5}
	validate([]*Definition{bp}, testChannels, gps.NotInit, true)
	assert.Equal(t, IGateStats, bp.Kind)
}

func TestValidateUnusableMedium(t *testing.T) {
	var bp = positionDef(600)
	validate([]*Definition{bp}, []Channel{{Call: "W1ABC", Medium: MediumNone}}, gps.NotInit, false)
	assert.Equal(t, Ignore, bp.Kind)
}

func TestValidateNoCallChannel(t *testing.T) {
	var bp = positionDef(600)
	validate([]*Definition{bp}, []Channel{{Call: "NOCALL", Medium: MediumRadio}}, gps.NotInit, false)
	assert.Equal(t, Ignore, bp.Kind)
}

func TestValidateCustomInfoConflict(t *testing.T) {
	var bp = &Definition{Kind: Custom, Info: "a", InfoCmd: "echo b"}
	validate([]*Definition{bp}, testChannels, gps.NotInit, false)

	assert.Equal(t, Custom, bp.Kind)
	assert.Empty(t, bp.InfoCmd)
}

func TestStartRequiresUsableBeacon(t *testing.T) {
	var sink = &fakeSink{}
	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var s = newTestScheduler([]*Definition{{Kind: Ignore}}, sink, nil)
	assert.False(t, s.Start(ctx))
}
