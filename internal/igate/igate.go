// Package igate maintains a client connection to an APRS-IS server.
//
// Packets heard on the radio side are uploaded, traffic from the server
// is handed to a receive callback, and counters of everything passing
// through are kept for the statistics beacon.
package igate

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dwgo/beacond/internal/aprs"
)

// Config is the server half of the IGate configuration.
type Config struct {
	Server   string
	Port     int
	Login    string
	Passcode string
	Filter   string
}

const (
	reconnectDelay = 10 * time.Second
	dialTimeout    = 8 * time.Second
	uplinkBacklog  = 100
	pruneKeep      = 2 * time.Hour
)

// IGate is one client session and its lifetime statistics.  Counters may
// be read from any goroutine.
type IGate struct {
	cfg   Config
	heard *Heard

	// Frame received from the server, already parsed.  Nil to discard
	// downlink traffic.
	Receive func(f *aprs.Frame)

	uplink chan string

	messageCnt  atomic.Int64
	packetCnt   atomic.Int64
	uplinkCnt   atomic.Int64
	downlinkCnt atomic.Int64
}

func New(cfg Config) *IGate {
	return &IGate{
		cfg:    cfg,
		heard:  NewHeard(),
		uplink: make(chan string, uplinkBacklog),
	}
}

func (g *IGate) MessageCount() int  { return int(g.messageCnt.Load()) }
func (g *IGate) PacketCount() int   { return int(g.packetCnt.Load()) }
func (g *IGate) UplinkCount() int   { return int(g.uplinkCnt.Load()) }
func (g *IGate) DownlinkCount() int { return int(g.downlinkCnt.Load()) }

func (g *IGate) HeardCount(maxHops int, within time.Duration) int {
	return g.heard.Count(maxHops, within)
}

// HeardPacket records a packet received over the radio for the heard
// station statistics.
func (g *IGate) HeardPacket(f *aprs.Frame, when time.Time) {
	g.packetCnt.Add(1)
	g.heard.Update(f.Source, hopsUsed(f.Via), when)
}

// hopsUsed counts the digipeater addresses already marked used, an
// estimate of how many hops the packet took to get here.  Zero means
// heard directly.
func hopsUsed(via []string) int {
	var n = 0
	for _, v := range via {
		if strings.HasSuffix(v, "*") {
			n++
		}
	}
	return n
}

// SendUplink queues a frame for upload to the server.  Never blocks; with
// no connection, or a failing one, the oldest traffic is dropped.
func (g *IGate) SendUplink(f *aprs.Frame) {
	if !uplinkable(f) {
		return
	}

	select {
	case g.uplink <- f.String():
	default:
		log.Error("IGate uplink queue is full, dropping oldest packet.")
		select {
		case <-g.uplink:
		default:
		}
		g.uplink <- f.String()
	}
}

// uplinkable excludes packet types the server must never see from us:
// general queries, and third party traffic which may have originated on
// the internet side in the first place.
func uplinkable(f *aprs.Frame) bool {
	if f.Info == "" {
		return false
	}
	switch f.Info[0] {
	case '?', '}':
		return false
	}
	return true
}

// Run connects to the server and keeps the session alive until the
// context is cancelled, reconnecting after failures.
func (g *IGate) Run(ctx context.Context) {
	for {
		g.session(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (g *IGate) session(ctx context.Context) {
	var addr = net.JoinHostPort(g.cfg.Server, fmt.Sprintf("%d", g.cfg.Port))

	var dialer = net.Dialer{Timeout: dialTimeout}
	var conn, err = dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Error("Unable to connect to APRS-IS server.", "server", addr, "err", err)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var login = fmt.Sprintf("user %s pass %s vers beacond 1.0",
		g.cfg.Login, g.cfg.Passcode)
	if g.cfg.Filter != "" {
		login += " filter " + g.cfg.Filter
	}
	if _, err = fmt.Fprintf(conn, "%s\r\n", login); err != nil {
		log.Error("APRS-IS login failed.", "server", addr, "err", err)
		return
	}
	log.Info("Now connected to IGate server.", "server", addr)

	// Writer.  Ends when the session's reader returns, so a pending
	// uplink frame is never consumed against a dead connection.
	var readerDone = make(chan struct{})
	var writerDone = make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-readerDone:
				return
			case line := <-g.uplink:
				if _, err := fmt.Fprintf(conn, "%s\r\n", line); err != nil {
					log.Error("Error sending to APRS-IS server.", "err", err)
					return
				}
				g.uplinkCnt.Add(1)
				g.heard.Prune(pruneKeep)
			}
		}
	}()

	var scanner = bufio.NewScanner(conn)
	for scanner.Scan() {
		var line = strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if line[0] == '#' {
			// Server comment, also used as a keepalive.
			log.Debug("igate server", "comment", line)
			continue
		}

		g.downlinkCnt.Add(1)

		// The path contains q constructs like qAC which do not pass
		// strict address checking, so classify from the raw text.
		if _, info, found := strings.Cut(line, ":"); found && strings.HasPrefix(info, ":") {
			g.messageCnt.Add(1)
		}

		if g.Receive != nil {
			var f, err = aprs.ParseFrame(line)
			if err != nil {
				log.Debug("Could not parse packet from IGate server.", "line", line, "err", err)
				continue
			}
			g.Receive(f)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Error("Lost connection to APRS-IS server.", "err", err)
	}

	close(readerDone)
	conn.Close()
	<-writerDone
}
