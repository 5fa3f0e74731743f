package xmit

import (
	"context"
	"net"
	"time"

	"github.com/charmbracelet/log"
)

// KISS protocol special characters.
const (
	kissFEND  = 0xc0
	kissFESC  = 0xdb
	kissTFEND = 0xdc
	kissTFESC = 0xdd
)

const kissCmdData = 0

// kissWrap encapsulates an AX.25 frame for the given TNC port: FEND,
// command byte, escaped data, FEND.
func kissWrap(channel int, data []byte) []byte {
	var out = make([]byte, 0, len(data)+3)
	out = append(out, kissFEND)
	out = append(out, byte(channel&0xf)<<4|kissCmdData)

	for _, b := range data {
		switch b {
		case kissFEND:
			out = append(out, kissFESC, kissTFEND)
		case kissFESC:
			out = append(out, kissFESC, kissTFESC)
		default:
			out = append(out, b)
		}
	}

	return append(out, kissFEND)
}

// KISSClient sends frames to a TNC speaking KISS over TCP, the protocol
// spoken by kissattach ports, software TNCs and most network radios.
type KISSClient struct {
	Addr string

	dialTimeout time.Duration
}

func NewKISSClient(addr string) *KISSClient {
	return &KISSClient{Addr: addr, dialTimeout: 8 * time.Second}
}

// Run consumes the queue and writes each frame to the TNC, reconnecting
// as needed.  Returns when the queue is closed or the context cancelled.
// A frame that fails to send is dropped; beacons repeat and stale
// position reports are worse than missing ones.
func (k *KISSClient) Run(ctx context.Context, q *Queue) {
	var conn net.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	go func() {
		<-ctx.Done()
		q.Close()
	}()

	for {
		var channel, f, ok = q.Remove()
		if !ok {
			return
		}

		if conn == nil {
			var err error
			conn, err = k.dial(ctx)
			if err != nil {
				log.Error("Unable to connect to KISS TNC, dropping frame.",
					"addr", k.Addr, "frame", f.String(), "err", err)
				continue
			}
			log.Info("Connected to KISS TNC.", "addr", k.Addr)
		}

		if _, err := conn.Write(kissWrap(channel, f.AX25())); err != nil {
			log.Error("Error writing to KISS TNC, dropping frame.",
				"addr", k.Addr, "frame", f.String(), "err", err)
			conn.Close()
			conn = nil
			continue
		}

		log.Info("[" + formatChannel(channel) + "L] " + f.String())
	}
}

func (k *KISSClient) dial(ctx context.Context) (net.Conn, error) {
	var dialer = net.Dialer{Timeout: k.dialTimeout}
	return dialer.DialContext(ctx, "tcp", k.Addr)
}

func formatChannel(channel int) string {
	return string(rune('0' + channel%10))
}
