package aprs

import (
	"fmt"
	"strconv"
	"strings"
)

const maxVia = 8 // AX.25 allows up to 8 digipeater addresses

// Frame is a packet in the monitor format used throughout this program:
// SRC>DEST[,VIA...]:INFO.  Only the textual representation matters to the
// beacon subsystem; the over the air bit layout is produced on demand by
// AX25 for the KISS transmit path.
type Frame struct {
	Source string
	Dest   string
	Via    []string
	Info   string
}

// ParseFrame tears apart a monitor format string with strict address
// checking, suitable for packets that will go over the air.
func ParseFrame(monitor string) (*Frame, error) {
	var addrs, info, found = strings.Cut(monitor, ":")
	if !found {
		return nil, fmt.Errorf("no info part in %q", monitor)
	}

	var src, rest, gtFound = strings.Cut(addrs, ">")
	if !gtFound {
		return nil, fmt.Errorf("no source address in %q", monitor)
	}

	if err := checkAddr(src); err != nil {
		return nil, fmt.Errorf("bad source address: %w", err)
	}

	var f = &Frame{Source: src, Info: info}

	var fields = strings.Split(rest, ",")
	if err := checkAddr(fields[0]); err != nil {
		return nil, fmt.Errorf("bad destination address: %w", err)
	}
	f.Dest = fields[0]

	if len(fields)-1 > maxVia {
		return nil, fmt.Errorf("too many digipeaters in %q", monitor)
	}

	for _, v := range fields[1:] {
		// A trailing * marks an address already used.  Harmless on
		// input, stripped for checking.
		if err := checkAddr(strings.TrimSuffix(v, "*")); err != nil {
			return nil, fmt.Errorf("bad via address: %w", err)
		}
		f.Via = append(f.Via, v)
	}

	return f, nil
}

// checkAddr enforces the AX.25 address rules: 1 to 6 upper case letters
// and digits, optional -SSID of 0 to 15.
func checkAddr(a string) error {
	var call, ssid, hasSSID = strings.Cut(a, "-")

	if len(call) < 1 || len(call) > 6 {
		return fmt.Errorf("callsign %q must be 1 to 6 characters", a)
	}
	for _, c := range call {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return fmt.Errorf("callsign %q may contain only upper case letters and digits", a)
		}
	}

	if hasSSID {
		var n, err = strconv.Atoi(ssid)
		if err != nil || n < 0 || n > 15 {
			return fmt.Errorf("SSID in %q must be 0 to 15", a)
		}
	}

	return nil
}

// String renders the frame back to monitor format.
func (f *Frame) String() string {
	var sb strings.Builder
	sb.WriteString(f.Source)
	sb.WriteByte('>')
	sb.WriteString(f.Dest)
	for _, v := range f.Via {
		sb.WriteByte(',')
		sb.WriteString(v)
	}
	sb.WriteByte(':')
	sb.WriteString(f.Info)
	return sb.String()
}

// AX25 renders the frame as an AX.25 UI frame: shifted addresses, control
// 0x03, PID 0xF0, information field.  This is the payload a KISS TNC
// expects after the command byte.
func (f *Frame) AX25() []byte {
	var buf = make([]byte, 0, 16+7*len(f.Via)+len(f.Info))

	var last = len(f.Via) == 0
	buf = append(buf, packAddr(f.Dest, false, false)...)
	buf = append(buf, packAddr(f.Source, true, last)...)
	for i, v := range f.Via {
		var used = strings.HasSuffix(v, "*")
		buf = append(buf, packAddr(strings.TrimSuffix(v, "*"), used, i == len(f.Via)-1)...)
	}

	buf = append(buf, 0x03, 0xf0)
	buf = append(buf, f.Info...)
	return buf
}

func packAddr(a string, commandOrUsed, last bool) []byte {
	var call, ssidStr, _ = strings.Cut(a, "-")
	var ssid, _ = strconv.Atoi(ssidStr)

	var b [7]byte
	for i := 0; i < 6; i++ {
		var c byte = ' '
		if i < len(call) {
			c = call[i]
		}
		b[i] = c << 1
	}

	b[6] = 0x60 | byte(ssid)<<1 // reserved bits set
	if commandOrUsed {
		b[6] |= 0x80
	}
	if last {
		b[6] |= 0x01
	}
	return b[:]
}
