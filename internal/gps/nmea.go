package gps

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/charmbracelet/log"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/dwgo/beacond/internal/aprs"
)

// RunNMEA reads NMEA sentences from a GPS receiver on a serial port and
// deposits fixes into cur until ctx is cancelled or the port fails.
// Intended to run as its own goroutine.
func RunNMEA(ctx context.Context, portName string, baud uint, cur *Current) error {
	var port, err = serial.Open(serial.OpenOptions{
		PortName:        portName,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
	if err != nil {
		cur.Set(emptyFix(Error))
		log.Error("Could not open serial port for GPS receiver.", "port", portName, "err", err)
		return err
	}

	go func() {
		<-ctx.Done()
		port.Close()
	}()

	log.Info("GPS receiver connected.", "port", portName, "baud", baud)

	err = readNMEA(ctx, port, cur)
	if err == nil && ctx.Err() == nil {
		// This might happen if a USB device is unplugged.
		log.Error("Lost communication with GPS receiver.", "port", portName)
		cur.Set(emptyFix(Error))
	}
	return err
}

// readNMEA is the sentence processing loop, split out so tests can feed
// canned sentences through an io.Reader.
//
// RMC supplies speed and course.  Location, altitude and fix quality are
// updated by GGA, which also publishes the combined fix.
func readNMEA(ctx context.Context, r io.Reader, cur *Current) error {
	var fix = emptyFix(NotSeen)
	cur.Set(fix) // clear the not init state

	var scanner = bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var line = strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		var sentence, err = nmea.Parse(line)
		if err != nil {
			// Noisy receivers produce partial sentences.  Better
			// luck next time.
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeRMC:
			var m = sentence.(nmea.RMC)
			if m.Validity == "A" {
				fix.SpeedKnots = m.Speed
				fix.TrackDeg = m.Course
			}

		case nmea.TypeGGA:
			var m = sentence.(nmea.GGA)

			var q Quality
			if m.FixQuality == "0" {
				q = NoFix
			} else {
				fix.Latitude = m.Latitude
				fix.Longitude = m.Longitude

				// An altitude solution needs a fourth satellite.
				if m.NumSatellites >= 4 {
					fix.AltitudeM = m.Altitude
					q = Fix3D
				} else {
					fix.AltitudeM = aprs.Unknown
					q = Fix2D
				}
			}

			if q != fix.Quality {
				log.Info("GPS location fix changed.", "fix", q)
				fix.Quality = q
			}
			fix.When = time.Now()
			cur.Set(fix)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		log.Error("Error reading from GPS receiver.", "err", err)
		cur.Set(emptyFix(Error))
		return err
	}
	return nil
}
