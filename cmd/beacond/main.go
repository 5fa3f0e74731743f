// beacond is an APRS beacon transmitter.
//
// It reads a YAML configuration describing radio channels, an optional
// GPS receiver and APRS-IS connection, and a list of beacons, then
// transmits them on schedule through a KISS TNC.  Tracker beacons
// follow the GPS and can use the SmartBeaconing algorithm to adapt
// their rate to how the vehicle is moving.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/dwgo/beacond/internal/beacon"
	"github.com/dwgo/beacond/internal/config"
	"github.com/dwgo/beacond/internal/gps"
	"github.com/dwgo/beacond/internal/igate"
	"github.com/dwgo/beacond/internal/xmit"
)

var (
	configPath   = pflag.StringP("config", "c", "beacond.yaml", "Configuration file.")
	logLevel     = pflag.StringP("log-level", "l", "", "Log level: debug, info, warn or error.  Overrides the configuration file.")
	trackerDebug = pflag.CountP("debug-tracker", "d", "Debug output for GPS tracker beacons.  Repeat for more detail.")
)

func main() {
	pflag.Parse()

	var cfg, err = config.Load(*configPath)
	if err != nil {
		log.Fatal("Could not load configuration.", "err", err)
	}

	var level = cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	if level != "" {
		var lvl, err = log.ParseLevel(level)
		if err != nil {
			log.Fatal("Unknown log level.", "level", level)
		}
		log.SetLevel(lvl)
	}
	if *trackerDebug > 0 && log.GetLevel() > log.DebugLevel {
		log.SetLevel(log.DebugLevel)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var defs, derr = cfg.Definitions()
	if derr != nil {
		log.Fatal("Bad beacon configuration.", "err", derr)
	}
	if len(defs) == 0 {
		log.Fatal("No beacons are configured.  Nothing to do.")
	}

	// GPS readers run in the background and publish into the shared
	// current fix.  Give them a moment to report in before beacon
	// validation asks whether a receiver exists.
	var fixSource beacon.FixSource
	var cur = gps.NewCurrent()
	switch {
	case cfg.GPS.Serial != "":
		go gps.RunNMEA(ctx, cfg.GPS.Serial, cfg.GPS.Baud, cur)
		fixSource = cur
	case cfg.GPS.GPSD != "":
		go gps.RunGPSD(ctx, cfg.GPS.GPSD, cur)
		fixSource = cur
	}
	if fixSource != nil {
		time.Sleep(500 * time.Millisecond)
	}

	var ig *igate.IGate
	if cfg.IGate.Server != "" {
		ig = igate.New(cfg.IGateConfig())
		go ig.Run(ctx)
	}

	var queue = xmit.NewQueue()
	var dispatcher = &xmit.Dispatcher{Queue: queue}
	if ig != nil {
		dispatcher.IGate = ig
	}
	if cfg.TransmitLog != "" {
		dispatcher.Log = xmit.NewTransmitLog(cfg.TransmitLog)
		defer dispatcher.Log.Close()
	}
	if cfg.MQTT.Broker != "" {
		var pub, perr = xmit.NewPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if perr != nil {
			log.Error("MQTT publishing disabled.", "err", perr)
		} else {
			dispatcher.MQTT = pub
			defer pub.Close()
		}
	}

	// One KISS TNC connection carries all radio channels; the channel
	// number rides in the KISS command byte.
	var tnc = ""
	for _, c := range cfg.Channels {
		if c.TNC != "" {
			tnc = c.TNC
			break
		}
	}
	if tnc != "" {
		go xmit.NewKISSClient(tnc).Run(ctx, queue)
	} else {
		go drain(queue)
	}

	var opts = beacon.Options{
		Channels:       cfg.BeaconChannels(),
		SmartBeaconing: cfg.Smart(),
		GPS:            fixSource,
		Sink:           dispatcher,
		MaxDigiHops:    cfg.MaxDigiHops,
		TrackerDebug:   *trackerDebug,
	}
	if ig != nil {
		opts.IGate = ig
	}

	var sched = beacon.NewScheduler(defs, opts)
	if !sched.Start(ctx) {
		log.Fatal("No beacons survived validation.  Nothing to do.")
	}

	<-ctx.Done()
	log.Info("Shutting down.")
}

// drain consumes the transmit queue when no TNC is configured.  Frames
// still show up in the transmit log and on MQTT, which makes a station
// without a radio useful for testing.
func drain(q *xmit.Queue) {
	for {
		var _, f, ok = q.Remove()
		if !ok {
			return
		}
		log.Info("No TNC configured, not transmitted: " + f.String())
	}
}
