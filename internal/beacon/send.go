package beacon

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dwgo/beacond/internal/aprs"
	"github.com/dwgo/beacond/internal/gps"
)

// Default destination address announcing what software produced the
// packet, with the version digits appended.
const (
	tocall       = "APBD"
	majorVersion = 1
	minorVersion = 0
)

const heardWindow = 30 * time.Minute

// send prepares one beacon in monitor format, converts it to a frame, and
// hands it to the desired destination.  All scheduling decisions have
// already been made by the caller.
func (s *Scheduler) send(bp *Definition, fix gps.Fix) {
	// Obtain the source call for the beacon.  This could be different
	// on different channels.  When sending to the IGate server, or to a
	// virtual IGate channel, use the call from the first radio channel.
	var channel = bp.Channel
	if channel < 0 || channel >= len(s.channels) {
		channel = 0
	}

	var mycall string
	if s.channels[channel].Medium == MediumIGate {
		mycall = s.channels[0].Call
	} else {
		mycall = s.channels[channel].Call
	}

	if IsNoCall(mycall) {
		log.Error("Callsign not set for beacon channel.", "line", bp.Line, "channel", bp.Channel)
		return
	}

	// Monitor format header:  src > dest [ , via ]
	var text string
	if bp.Source != "" {
		text = bp.Source
	} else {
		text = mycall
	}
	text += ">"

	if bp.Dest != "" {
		text += bp.Dest
	} else {
		text += fmt.Sprintf("%s%1d%1d", tocall, majorVersion, minorVersion)
	}

	if bp.Via != "" {
		text += "," + bp.Via
	}
	text += ":"

	// Any fixed comment followed by the variable part from the comment
	// command, if configured.
	var superComment = bp.Comment
	if bp.CommentCmd != "" {
		var variable, err = runCommand(bp.CommentCmd)
		if err != nil {
			log.Error("Beacon comment command failed.", "line", bp.Line, "err", err)
		} else {
			superComment += variable
		}
	}

	switch bp.Kind {
	case Position:
		text += aprs.EncodePosition(bp.Messaging, bp.Compress,
			bp.Lat, bp.Lon, bp.Ambiguity,
			int(math.Round(aprs.MetersToFeet(bp.AltM))),
			bp.SymTab, bp.Symbol,
			bp.Power, bp.Height, bp.Gain, bp.Dir,
			aprs.Unknown, aprs.Unknown, // no course/speed for a fixed location
			bp.Freq, bp.Tone, bp.Offset,
			superComment)

	case Object:
		text += aprs.EncodeObject(bp.ObjName, bp.Compress, s.now(),
			bp.Lat, bp.Lon, bp.Ambiguity,
			bp.SymTab, bp.Symbol,
			bp.Power, bp.Height, bp.Gain, bp.Dir,
			aprs.Unknown, aprs.Unknown,
			bp.Freq, bp.Tone, bp.Offset, superComment)

	case Tracker:
		if fix.Quality < gps.Fix2D {
			return // no fix, skip this time
		}

		// Transmit altitude only if the user asked for it: a positive
		// configured altitude enables altitude from the GPS.
		var altFt = aprs.Unknown
		if fix.Quality >= gps.Fix3D && fix.AltitudeM != aprs.Unknown && bp.AltM > 0 {
			altFt = int(math.Round(aprs.MetersToFeet(fix.AltitudeM)))
		}

		// Round course to nearest degree, retaining unknown state.
		var course = aprs.Unknown
		if fix.TrackDeg != aprs.Unknown {
			course = int(math.Round(fix.TrackDeg))
		}

		text += aprs.EncodePosition(bp.Messaging, bp.Compress,
			fix.Latitude, fix.Longitude, bp.Ambiguity, altFt,
			bp.SymTab, bp.Symbol,
			bp.Power, bp.Height, bp.Gain, bp.Dir,
			course, int(math.Round(fix.SpeedKnots)),
			bp.Freq, bp.Tone, bp.Offset,
			superComment)

	case Custom:
		if bp.Info != "" {
			text += bp.Info
		} else if bp.InfoCmd != "" {
			var info, err = runCommand(bp.InfoCmd)
			if err != nil {
				log.Error("Beacon info command failed.", "line", bp.Line, "err", err)
				return
			}
			text += info
		} else {
			log.Error("Internal error: custom beacon with no info.", "line", bp.Line)
			return
		}

	case IGateStats:
		text += fmt.Sprintf("<IGATE,MSG_CNT=%d,PKT_CNT=%d,DIR_CNT=%d,LOC_CNT=%d,RF_CNT=%d,UPL_CNT=%d,DNL_CNT=%d",
			s.igate.MessageCount(),
			s.igate.PacketCount(),
			s.igate.HeardCount(0, heardWindow),
			s.igate.HeardCount(s.maxDigiHops, heardWindow),
			s.igate.HeardCount(8, heardWindow),
			s.igate.UplinkCount(),
			s.igate.DownlinkCount())

	default:
		return
	}

	// Strict checking because these will go over the air.
	var frame, err = aprs.ParseFrame(text)
	if err != nil {
		log.Error("Failed to parse packet constructed from beacon.", "line", bp.Line, "text", text, "err", err)
		return
	}

	switch bp.SendTo {
	case ToIGate:
		log.Info("[ig] " + text)
		s.sink.ToIGate(frame)
	case ToRecv:
		// Simulated reception, as if heard over the air.
		s.sink.SimulateReceive(bp.Channel, frame)
	default:
		s.sink.Enqueue(bp.Channel, PrioLow, frame)
	}
}
