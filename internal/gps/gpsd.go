package gps

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dwgo/beacond/internal/aprs"
)

const (
	gpsdWatch     = `?WATCH={"enable":true,"json":true};` + "\n"
	gpsdDialWait  = 8 * time.Second
	gpsdRetryWait = 5 * time.Second
)

// tpv is the subset of a gpsd TPV report we care about.  Pointer fields
// because gpsd omits what it does not know.
type tpv struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"` // 0 unknown, 1 no fix, 2, 3
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Alt   *float64 `json:"alt"`
	Track *float64 `json:"track"`
	Speed *float64 `json:"speed"` // meters per second
}

const metersPerSecToKnots = 1.943844

// RunGPSD maintains a connection to a gpsd daemon, reconnecting as needed,
// and deposits fixes into cur until ctx is cancelled.  Intended to run as
// its own goroutine.
func RunGPSD(ctx context.Context, addr string, cur *Current) error {
	cur.Set(emptyFix(NotSeen)) // clear the not init state

	for {
		var err = watchGPSD(ctx, addr, cur)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Error("Lost connection to gpsd, will retry.", "addr", addr, "err", err)
		cur.Set(emptyFix(Error))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(gpsdRetryWait):
		}
	}
}

func watchGPSD(ctx context.Context, addr string, cur *Current) error {
	var dialer = net.Dialer{Timeout: gpsdDialWait}
	var conn, err = dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if _, err = conn.Write([]byte(gpsdWatch)); err != nil {
		return err
	}

	log.Info("Connected to gpsd.", "addr", addr)

	var scanner = bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpv
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil || report.Class != "TPV" {
			continue
		}
		cur.Set(fixFromTPV(report))
	}
	return scanner.Err()
}

func fixFromTPV(r tpv) Fix {
	var fix = emptyFix(NoFix)
	fix.When = time.Now()

	if r.Mode < 2 || r.Lat == nil || r.Lon == nil {
		return fix
	}

	fix.Quality = Fix2D
	fix.Latitude = *r.Lat
	fix.Longitude = *r.Lon

	if r.Speed != nil {
		fix.SpeedKnots = *r.Speed * metersPerSecToKnots
	}
	if r.Track != nil {
		fix.TrackDeg = *r.Track
	}
	if r.Mode >= 3 {
		fix.Quality = Fix3D
		if r.Alt != nil {
			fix.AltitudeM = *r.Alt
		} else {
			fix.AltitudeM = aprs.Unknown
		}
	}
	return fix
}
