package beacon

import (
	"math"
	"time"

	"github.com/dwgo/beacond/internal/aprs"
)

// SmartBeaconing holds the rate curve parameters.  The algorithm is
// defined in MPH units; GPS reports knots, so callers must convert.
//
// Reference: http://www.hamhud.net/hh2/smartbeacon.html
type SmartBeaconing struct {
	Enabled      bool
	FastSpeedMPH int // above this, beacon at FastRateSec
	FastRateSec  int
	SlowSpeedMPH int // below this, beacon at SlowRateSec; must be > 0
	SlowRateSec  int
	TurnTimeSec  int // minimum seconds between corner peg transmissions
	TurnAngleDeg int
	TurnSlope    int // degrees * MPH added to the angle at low speed
}

// DefaultSmartBeaconing matches the values in the SmartBeaconing
// reference implementation.
func DefaultSmartBeaconing() SmartBeaconing {
	return SmartBeaconing{
		FastSpeedMPH: 60,
		FastRateSec:  60,
		SlowSpeedMPH: 5,
		SlowRateSec:  1800,
		TurnTimeSec:  15,
		TurnAngleDeg: 30,
		TurnSlope:    255,
	}
}

// headingChange is the smallest difference between two angles, 0 to 180.
func headingChange(a, b float64) float64 {
	var diff = math.Abs(a - b)
	if diff <= 180 {
		return diff
	}
	return 360 - diff
}

// NextTime calculates the next transmission time.  Stateless: identical
// inputs produce identical output.
//
// The straight line rate is inversely proportional to speed between the
// slow and fast thresholds.  "Corner pegging" overrides it: a heading
// change bigger than TurnAngleDeg plus TurnSlope/speed, at least
// TurnTimeSec after the previous transmission, transmits immediately.
//
// speedMPH should not normally be aprs.Unknown but is checked anyway;
// course and lastCourse are aprs.Unknown when stationary or before the
// first transmission.
func (sb SmartBeaconing) NextTime(now time.Time, speedMPH, course float64, lastXmit time.Time, lastCourse float64) time.Time {
	var rate int

	switch {
	case speedMPH == aprs.Unknown:
		rate = int(math.Round(float64(sb.FastRateSec+sb.SlowRateSec) / 2))
	case speedMPH > float64(sb.FastSpeedMPH):
		rate = sb.FastRateSec
	case speedMPH < float64(sb.SlowSpeedMPH):
		// Zero speed with a valid fix lands here, not in the unknown
		// branch above.
		rate = sb.SlowRateSec
	default:
		// Can't divide by zero because SlowSpeedMPH > 0.
		rate = int(math.Round(float64(sb.FastRateSec*sb.FastSpeedMPH) / speedMPH))
	}

	var next = lastXmit.Add(time.Duration(rate) * time.Second)

	if speedMPH != aprs.Unknown && speedMPH >= 1.0 &&
		course != aprs.Unknown && lastCourse != aprs.Unknown {
		var change = headingChange(course, lastCourse)
		var threshold = float64(sb.TurnAngleDeg) + float64(sb.TurnSlope)/speedMPH

		if change > threshold && !now.Before(lastXmit.Add(time.Duration(sb.TurnTimeSec)*time.Second)) {
			next = now
		}
	}

	return next
}
