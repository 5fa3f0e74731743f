// Package beacon transmits messages on a fixed schedule.
//
// Beacon definitions come from the configuration file.  A single
// background scheduler owns all of the mutable scheduling state, sleeps
// until the earliest deadline, and hands finished frames to a transmit
// sink.  Tracker beacons take their position from GPS and, when
// SmartBeaconing is configured, vary their rate with speed and transmit
// immediately on significant heading changes.
package beacon

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dwgo/beacond/internal/aprs"
	"github.com/dwgo/beacond/internal/gps"
)

// Kind of beacon, one per configuration directive.  A definition that
// fails validation is downgraded to Ignore rather than stopping the
// program; an unattended station should keep running with the beacons
// that are usable.
type Kind int

const (
	Ignore     Kind = iota
	Position        // fixed location position report
	Object          // object report, e.g. a repeater or meeting site
	Tracker         // position report from GPS
	Custom          // handcrafted information field
	IGateStats      // IGate traffic statistics
)

func (k Kind) String() string {
	switch k {
	case Position:
		return "position"
	case Object:
		return "object"
	case Tracker:
		return "tracker"
	case Custom:
		return "custom"
	case IGateStats:
		return "igate"
	}
	return "ignore"
}

// Destination selects where a finished frame goes.
type Destination int

const (
	ToRadio Destination = iota // transmit queue for a radio channel
	ToIGate                    // APRS-IS upload only
	ToRecv                     // simulated reception on a channel
)

// Transmit queue priorities.  Beacons always go at low priority so they
// never delay digipeated traffic.
const (
	PrioHigh = 0
	PrioLow  = 1
)

// Medium describes what a channel is attached to.
type Medium int

const (
	MediumNone Medium = iota
	MediumRadio
	MediumNetwork // network TNC
	MediumIGate   // virtual channel for APRS-IS
)

// Channel is the per-channel station identity the scheduler needs.
type Channel struct {
	Call   string
	Medium Medium
}

// Definition is one configured beacon.  Everything is read-only after
// validation except next, which belongs exclusively to the scheduler.
type Definition struct {
	Line int // configuration file line number, for messages
	Kind Kind

	SendTo  Destination
	Channel int

	// Schedule.  Slot is seconds after the hour, aprs.Unknown when not
	// used.  Every is the repetition interval in seconds; for tracker
	// beacons under SmartBeaconing it only provides the initial value.
	Delay int
	Slot  int
	Every int

	// Header overrides.  Empty means use the channel callsign and the
	// software identifier destination.
	Source string
	Dest   string
	Via    string

	ObjName   string
	Lat       float64 // aprs.Unknown when not configured
	Lon       float64
	AltM      float64 // positive also enables GPS altitude for trackers
	Ambiguity int
	Compress  bool
	Messaging bool
	SymTab    byte
	Symbol    byte

	Power  int
	Height int
	Gain   int
	Dir    string

	Freq   float64
	Tone   float64
	Offset float64

	Comment    string
	CommentCmd string
	Info       string
	InfoCmd    string

	next time.Time // owned by the scheduler
}

// IsNoCall reports whether a callsign is unset or one of the
// placeholders shipped in sample configurations.
func IsNoCall(call string) bool {
	var c = strings.ToUpper(call)
	return c == "" || c == "NOCALL" || c == "N0CALL"
}

// validate checks every definition against its kind's requirements and
// downgrades offenders to Ignore.  Errors are reported once here rather
// than for each transmission.
func validate(defs []*Definition, channels []Channel, gpsQuality gps.Quality, igateConfigured bool) {
	for _, bp := range defs {
		var channel = bp.Channel
		if bp.SendTo == ToIGate {
			channel = 0 // the uplink identifies as channel 0's call
		}
		if channel < 0 || channel >= len(channels) {
			log.Error("Invalid channel number for beacon.", "line", bp.Line, "channel", bp.Channel)
			bp.Kind = Ignore
			continue
		}

		if channels[channel].Medium != MediumRadio && channels[channel].Medium != MediumNetwork && channels[channel].Medium != MediumIGate {
			log.Error("Channel is not usable for transmitting beacons.", "line", bp.Line, "channel", bp.Channel)
			bp.Kind = Ignore
			continue
		}

		if IsNoCall(channels[channel].Call) {
			log.Error("Callsign must be set for beacon channel.", "line", bp.Line, "channel", channel)
			bp.Kind = Ignore
			continue
		}

		switch bp.Kind {
		case Object:
			if bp.ObjName == "" {
				log.Error("Object name is required for an object beacon.", "line", bp.Line)
				bp.Kind = Ignore
				continue
			}
			fallthrough

		case Position:
			if bp.Lat == aprs.Unknown || bp.Lon == aprs.Unknown {
				log.Error("Latitude and longitude are required.", "line", bp.Line)
				bp.Kind = Ignore
				continue
			}
			warnCustomInfo(bp)

		case Tracker:
			if gpsQuality == gps.NotInit {
				log.Error("GPS must be configured to use a tracker beacon.", "line", bp.Line)
				bp.Kind = Ignore
				continue
			}
			warnCustomInfo(bp)

		case Custom:
			if bp.Info == "" && bp.InfoCmd == "" {
				log.Error("info or infocmd is required for a custom beacon.", "line", bp.Line)
				bp.Kind = Ignore
				continue
			}
			if bp.Info != "" && bp.InfoCmd != "" {
				log.Error("info and infocmd cannot both be given; using info.", "line", bp.Line)
				bp.InfoCmd = ""
			}

		case IGateStats:
			if !igateConfigured {
				log.Error("An IGate statistics beacon doesn't make sense without the IGate configured.  It has been disabled.", "line", bp.Line)
				bp.Kind = Ignore
				continue
			}
		}
	}
}

// info/infocmd specify the entire information field, which would not make
// sense for beacon kinds that construct it.  comment is the option they
// probably wanted.
func warnCustomInfo(bp *Definition) {
	if bp.Info != "" || bp.InfoCmd != "" {
		log.Error("info and infocmd are allowed only for a custom beacon; use comment instead.", "line", bp.Line)
	}
}
