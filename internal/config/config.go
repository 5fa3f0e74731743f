// Package config reads the YAML configuration file and turns it into
// the structures the other packages want.
//
// Secrets can be kept out of the file: a .env file or the process
// environment may supply the APRS-IS passcode.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dwgo/beacond/internal/aprs"
	"github.com/dwgo/beacond/internal/beacon"
	"github.com/dwgo/beacond/internal/igate"
)

// Defaults applied to each beacon definition.
const (
	defaultDelay = 60
	defaultEvery = 600
)

// File is the whole configuration file.
type File struct {
	LogLevel string `yaml:"log_level"`

	Channels []ChannelConfig `yaml:"channels"`

	GPS struct {
		Serial string `yaml:"serial"`
		Baud   uint   `yaml:"baud"`
		GPSD   string `yaml:"gpsd"`
	} `yaml:"gps"`

	IGate struct {
		Server   string `yaml:"server"`
		Port     int    `yaml:"port"`
		Login    string `yaml:"login"`
		Passcode string `yaml:"passcode"`
		Filter   string `yaml:"filter"`
	} `yaml:"igate"`

	MQTT struct {
		Broker   string `yaml:"broker"`
		ClientID string `yaml:"client_id"`
		Topic    string `yaml:"topic"`
	} `yaml:"mqtt"`

	TransmitLog string `yaml:"transmit_log"`
	MaxDigiHops int    `yaml:"max_digi_hops"`

	SmartBeaconing *SmartBeaconingConfig `yaml:"smartbeaconing"`

	Beacons []BeaconConfig `yaml:"beacons"`
}

// ChannelConfig is one radio channel: the station callsign and the KISS
// TNC it transmits through.
type ChannelConfig struct {
	Call string `yaml:"call"`
	TNC  string `yaml:"tnc"`
}

// SmartBeaconingConfig mirrors beacon.SmartBeaconing with the file's
// field names.  Omitted values take the usual defaults, so an empty
//
//	smartbeaconing: {}
//
// section turns the algorithm on with standard parameters.
type SmartBeaconingConfig struct {
	FastSpeed *int `yaml:"fast_speed"`
	FastRate  *int `yaml:"fast_rate"`
	SlowSpeed *int `yaml:"slow_speed"`
	SlowRate  *int `yaml:"slow_rate"`
	TurnTime  *int `yaml:"turn_time"`
	TurnAngle *int `yaml:"turn_angle"`
	TurnSlope *int `yaml:"turn_slope"`
}

// BeaconConfig is one beacon definition as written in the file.
// Pointers distinguish "absent" from zero where zero is meaningful.
type BeaconConfig struct {
	Type    string `yaml:"type"`
	Channel int    `yaml:"channel"`
	SendTo  string `yaml:"sendto"`

	Delay *int `yaml:"delay"`
	Every *int `yaml:"every"`
	Slot  *int `yaml:"slot"`

	Source string `yaml:"source"`
	Dest   string `yaml:"dest"`
	Via    string `yaml:"via"`

	Object    string   `yaml:"object"`
	Lat       *float64 `yaml:"lat"`
	Lon       *float64 `yaml:"lon"`
	Grid      string   `yaml:"grid"`
	Alt       *float64 `yaml:"alt"`
	Ambiguity int      `yaml:"ambiguity"`
	Compress  bool     `yaml:"compress"`
	Messaging bool     `yaml:"messaging"`
	Symbol    string   `yaml:"symbol"`

	Power  int    `yaml:"power"`
	Height int    `yaml:"height"`
	Gain   int    `yaml:"gain"`
	Dir    string `yaml:"dir"`

	Freq   float64  `yaml:"freq"`
	Tone   *float64 `yaml:"tone"`
	Offset *float64 `yaml:"offset"`

	Comment    string `yaml:"comment"`
	CommentCmd string `yaml:"commentcmd"`
	Info       string `yaml:"info"`
	InfoCmd    string `yaml:"infocmd"`
}

// Load reads and parses the configuration file, then applies
// environment overrides.  BEACOND_PASSCODE replaces the igate passcode
// so it can stay out of the file.
func Load(path string) (*File, error) {
	_ = godotenv.Load()

	var raw, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var f File
	if err = yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if pass := os.Getenv("BEACOND_PASSCODE"); pass != "" {
		f.IGate.Passcode = pass
	}

	if f.MQTT.Broker != "" {
		if f.MQTT.ClientID == "" {
			f.MQTT.ClientID = "beacond"
		}
		if f.MQTT.Topic == "" {
			f.MQTT.Topic = "beacond/monitor"
		}
	}
	if f.IGate.Server != "" && f.IGate.Port == 0 {
		f.IGate.Port = 14580
	}

	return &f, nil
}

// BeaconChannels converts the channel list for the scheduler.  A
// configured IGate appears as one extra virtual channel after the radio
// channels, following the convention that channel numbers past the
// radios refer to network services.
func (f *File) BeaconChannels() []beacon.Channel {
	var out []beacon.Channel
	for _, c := range f.Channels {
		out = append(out, beacon.Channel{Call: c.Call, Medium: beacon.MediumRadio})
	}
	if f.IGate.Server != "" {
		out = append(out, beacon.Channel{Call: f.IGate.Login, Medium: beacon.MediumIGate})
	}
	return out
}

// IGateConfig converts the igate section.
func (f *File) IGateConfig() igate.Config {
	return igate.Config{
		Server:   f.IGate.Server,
		Port:     f.IGate.Port,
		Login:    f.IGate.Login,
		Passcode: f.IGate.Passcode,
		Filter:   f.IGate.Filter,
	}
}

// Smart converts the smartbeaconing section.  Absent section means the
// algorithm is off and trackers beacon at their fixed interval.
func (f *File) Smart() beacon.SmartBeaconing {
	var sb = beacon.DefaultSmartBeaconing()
	if f.SmartBeaconing == nil {
		return sb
	}
	sb.Enabled = true

	var c = f.SmartBeaconing
	if c.FastSpeed != nil {
		sb.FastSpeedMPH = *c.FastSpeed
	}
	if c.FastRate != nil {
		sb.FastRateSec = *c.FastRate
	}
	if c.SlowSpeed != nil {
		sb.SlowSpeedMPH = *c.SlowSpeed
	}
	if c.SlowRate != nil {
		sb.SlowRateSec = *c.SlowRate
	}
	if c.TurnTime != nil {
		sb.TurnTimeSec = *c.TurnTime
	}
	if c.TurnAngle != nil {
		sb.TurnAngleDeg = *c.TurnAngle
	}
	if c.TurnSlope != nil {
		sb.TurnSlope = *c.TurnSlope
	}
	return sb
}

// Definitions converts the beacon list.  Definitions with outright
// nonsense are reported as errors; softer problems are left for the
// scheduler's validation to downgrade.
func (f *File) Definitions() ([]*beacon.Definition, error) {
	var out []*beacon.Definition

	for i, b := range f.Beacons {
		var bp = &beacon.Definition{
			Line:       i + 1,
			Channel:    b.Channel,
			Source:     strings.ToUpper(b.Source),
			Dest:       strings.ToUpper(b.Dest),
			Via:        strings.ToUpper(b.Via),
			ObjName:    b.Object,
			Lat:        aprs.Unknown,
			Lon:        aprs.Unknown,
			AltM:       aprs.Unknown,
			Ambiguity:  b.Ambiguity,
			Compress:   b.Compress,
			Messaging:  b.Messaging,
			SymTab:     '/',
			Symbol:     '-',
			Power:      b.Power,
			Height:     b.Height,
			Gain:       b.Gain,
			Dir:        b.Dir,
			Freq:       b.Freq,
			Tone:       aprs.Unknown,
			Offset:     aprs.Unknown,
			Comment:    b.Comment,
			CommentCmd: b.CommentCmd,
			Info:       b.Info,
			InfoCmd:    b.InfoCmd,
			Delay:      defaultDelay,
			Slot:       aprs.Unknown,
			Every:      defaultEvery,
		}

		switch strings.ToLower(b.Type) {
		case "position", "pbeacon", "":
			bp.Kind = beacon.Position
		case "object", "obeacon":
			bp.Kind = beacon.Object
		case "tracker", "tbeacon":
			bp.Kind = beacon.Tracker
		case "custom", "cbeacon":
			bp.Kind = beacon.Custom
		case "igate", "ibeacon":
			bp.Kind = beacon.IGateStats
		default:
			return nil, fmt.Errorf("beacon %d: unknown type %q", i+1, b.Type)
		}

		if b.Delay != nil {
			bp.Delay = *b.Delay
		}
		if b.Every != nil {
			if *b.Every < 1 {
				return nil, fmt.Errorf("beacon %d: every must be at least 1 second", i+1)
			}
			bp.Every = *b.Every
		}
		if b.Slot != nil {
			if *b.Slot < 0 || *b.Slot > 3599 {
				return nil, fmt.Errorf("beacon %d: slot must be 0 to 3599 seconds after the hour", i+1)
			}
			bp.Slot = *b.Slot
		}

		if b.Lat != nil {
			bp.Lat = *b.Lat
		}
		if b.Lon != nil {
			bp.Lon = *b.Lon
		}
		if b.Alt != nil {
			bp.AltM = *b.Alt
		}
		if b.Grid != "" {
			if b.Lat != nil || b.Lon != nil {
				return nil, fmt.Errorf("beacon %d: give either grid or lat/lon, not both", i+1)
			}
			var lat, lon, err = aprs.FromGridSquare(b.Grid)
			if err != nil {
				return nil, fmt.Errorf("beacon %d: %w", i+1, err)
			}
			bp.Lat, bp.Lon = lat, lon
		}

		if b.Symbol != "" {
			if len(b.Symbol) != 2 {
				return nil, fmt.Errorf("beacon %d: symbol must be two characters, table then code", i+1)
			}
			bp.SymTab = b.Symbol[0]
			bp.Symbol = b.Symbol[1]
		}

		if b.Tone != nil {
			bp.Tone = *b.Tone
		}
		if b.Offset != nil {
			bp.Offset = *b.Offset
		}

		var err = parseSendTo(b.SendTo, bp)
		if err != nil {
			return nil, fmt.Errorf("beacon %d: %w", i+1, err)
		}

		out = append(out, bp)
	}

	return out, nil
}

// parseSendTo interprets the sendto option: a channel number transmits
// on that channel, "ig" uploads to the APRS-IS server, and rN simulates
// reception on channel N.
func parseSendTo(s string, bp *beacon.Definition) error {
	s = strings.ToLower(strings.TrimSpace(s))

	switch {
	case s == "":
		bp.SendTo = beacon.ToRadio

	case s == "ig":
		bp.SendTo = beacon.ToIGate

	case s[0] == 'r':
		var n, err = parseChannel(s[1:])
		if err != nil {
			return fmt.Errorf("sendto %q: %w", s, err)
		}
		bp.SendTo = beacon.ToRecv
		bp.Channel = n

	default:
		var n, err = parseChannel(s)
		if err != nil {
			return fmt.Errorf("sendto %q: %w", s, err)
		}
		bp.SendTo = beacon.ToRadio
		bp.Channel = n
	}

	return nil
}

func parseChannel(s string) (int, error) {
	var n = 0
	if s == "" {
		return 0, fmt.Errorf("missing channel number")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("bad channel number %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
