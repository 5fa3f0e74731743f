// Package gps maintains the most recent position fix for the rest of the
// application.  Reader goroutines (direct NMEA serial or gpsd) deposit
// fixes as they arrive; the beacon scheduler takes a consistent snapshot
// whenever it needs one.
package gps

import (
	"time"

	"github.com/dwgo/beacond/internal/aprs"
)

// Quality of the position fix.  Values match libgps so gpsd mode numbers
// pass straight through.
type Quality int

const (
	NotInit Quality = -2 // no GPS source was ever configured
	Error   Quality = -1 // lost communication with the receiver
	NotSeen Quality = 0  // nothing heard yet
	NoFix   Quality = 1  // had signal but no position solution
	Fix2D   Quality = 2
	Fix3D   Quality = 3
)

func (q Quality) String() string {
	switch q {
	case NotInit:
		return "not initialized"
	case Error:
		return "error"
	case NotSeen:
		return "not seen"
	case NoFix:
		return "no fix"
	case Fix2D:
		return "2D"
	case Fix3D:
		return "3D"
	}
	return "invalid"
}

// Fix is one position solution.  Numeric fields without a meaningful
// value hold aprs.Unknown.
type Fix struct {
	When       time.Time // when last updated, system time
	Quality    Quality
	Latitude   float64 // valid if Quality >= Fix2D
	Longitude  float64 // valid if Quality >= Fix2D
	SpeedKnots float64
	TrackDeg   float64 // direction of travel; unknown when stationary
	AltitudeM  float64 // meters above mean sea level, valid if Quality == Fix3D
}

// emptyFix returns a Fix with the given quality and all numeric fields
// unknown.
func emptyFix(q Quality) Fix {
	return Fix{
		Quality:    q,
		Latitude:   aprs.Unknown,
		Longitude:  aprs.Unknown,
		SpeedKnots: aprs.Unknown,
		TrackDeg:   aprs.Unknown,
		AltitudeM:  aprs.Unknown,
	}
}
