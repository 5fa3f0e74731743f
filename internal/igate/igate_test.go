package igate

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwgo/beacond/internal/aprs"
)

func TestHeardCount(t *testing.T) {
	var h = NewHeard()
	var now = time.Now()

	h.Update("W1ABC", 0, now)
	h.Update("W2DEF", 1, now)
	h.Update("W3GHI", 2, now)
	h.Update("OLD", 0, now.Add(-time.Hour))

	assert.Equal(t, 1, h.Count(0, 30*time.Minute))
	assert.Equal(t, 2, h.Count(1, 30*time.Minute))
	assert.Equal(t, 3, h.Count(8, 30*time.Minute))
	assert.Equal(t, 4, h.Count(8, 2*time.Hour))
}

func TestHeardKeepsBestHopCount(t *testing.T) {
	var h = NewHeard()
	var now = time.Now()

	h.Update("W1ABC", 2, now)
	h.Update("W1ABC", 0, now)
	assert.Equal(t, 1, h.Count(0, time.Minute))

	// Hearing it again through a digipeater must not demote it.
	h.Update("W1ABC", 2, now)
	assert.Equal(t, 1, h.Count(0, time.Minute))
}

func TestHeardNormalizesCall(t *testing.T) {
	var h = NewHeard()
	var now = time.Now()

	h.Update("w1abc ", 0, now)
	h.Update("W1ABC", 0, now)
	assert.Equal(t, 1, h.Count(0, time.Minute))
}

func TestHeardPrune(t *testing.T) {
	var h = NewHeard()

	h.Update("OLD", 0, time.Now().Add(-3*time.Hour))
	h.Update("NEW", 0, time.Now())
	h.Prune(time.Hour)

	assert.Equal(t, 1, h.Count(8, 4*time.Hour))
}

func TestHopsUsed(t *testing.T) {
	assert.Equal(t, 0, hopsUsed(nil))
	assert.Equal(t, 0, hopsUsed([]string{"WIDE1-1", "WIDE2-1"}))
	assert.Equal(t, 1, hopsUsed([]string{"W1XYZ*", "WIDE2-1"}))
	assert.Equal(t, 2, hopsUsed([]string{"W1XYZ*", "W2XYZ*"}))
}

func TestUplinkable(t *testing.T) {
	assert.True(t, uplinkable(&aprs.Frame{Info: "!4234.61N/07126.47W-"}))
	assert.True(t, uplinkable(&aprs.Frame{Info: "<IGATE,MSG_CNT=0"}))
	assert.False(t, uplinkable(&aprs.Frame{Info: "?APRS?"}))
	assert.False(t, uplinkable(&aprs.Frame{Info: "}W1AW>APRS:>hi"}))
	assert.False(t, uplinkable(&aprs.Frame{Info: ""}))
}

func TestSession(t *testing.T) {
	var ln, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var g = New(Config{
		Server:   "127.0.0.1",
		Port:     ln.Addr().(*net.TCPAddr).Port,
		Login:    "W1ABC",
		Passcode: "12345",
		Filter:   "m/50",
	})

	var received = make(chan *aprs.Frame, 1)
	g.Receive = func(f *aprs.Frame) { received <- f }

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var done = make(chan struct{})
	go func() {
		defer close(done)
		g.session(ctx)
	}()

	var conn net.Conn
	conn, err = ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	var r = bufio.NewReader(conn)
	var login string
	login, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "user W1ABC pass 12345 vers beacond 1.0 filter m/50\r\n", login)

	// Comment lines are keepalives, not traffic.
	_, err = conn.Write([]byte("# aprsc 2.1.10\r\n"))
	require.NoError(t, err)

	// A message and a position from the server side.
	_, err = conn.Write([]byte("W9XYZ>APRS,TCPIP*,qAC,EIGHTH::W1ABC    :hello{42\r\n"))
	require.NoError(t, err)
	_, err = conn.Write([]byte("W2DEF>APRS,WIDE1-1:!4234.61N/07126.47W-\r\n"))
	require.NoError(t, err)

	select {
	case f := <-received:
		assert.Equal(t, "W2DEF", f.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for downlink frame")
	}

	// Uplink one beacon and read it back on the server side.
	g.SendUplink(&aprs.Frame{Source: "W1ABC", Dest: "APBD10", Info: ">test beacon"})
	var line string
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "W1ABC>APBD10:>test beacon\r\n", line)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}

	assert.Equal(t, 2, g.DownlinkCount())
	assert.Equal(t, 1, g.MessageCount())
	assert.Equal(t, 1, g.UplinkCount())
}

func TestSessionEndsWhenServerCloses(t *testing.T) {
	var ln, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var g = New(Config{
		Server: "127.0.0.1",
		Port:   ln.Addr().(*net.TCPAddr).Port,
		Login:  "W1ABC",
	})

	var ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	var done = make(chan struct{})
	go func() {
		defer close(done)
		g.session(ctx)
	}()

	var conn net.Conn
	conn, err = ln.Accept()
	require.NoError(t, err)

	var r = bufio.NewReader(conn)
	_, err = r.ReadString('\n')
	require.NoError(t, err)

	// Dropping the connection with no uplink traffic must end the
	// session so the reconnect loop can try again.
	require.NoError(t, conn.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not return after the server closed the connection")
	}

	// A frame queued after the drop stays queued for the next session.
	g.SendUplink(&aprs.Frame{Source: "W1ABC", Dest: "APBD10", Info: ">test beacon"})
	assert.Equal(t, 1, len(g.uplink))
	assert.Equal(t, 0, g.UplinkCount())
}

func TestHeardPacket(t *testing.T) {
	var g = New(Config{})
	var now = time.Now()

	g.HeardPacket(&aprs.Frame{Source: "W1ABC", Info: ">x"}, now)
	g.HeardPacket(&aprs.Frame{Source: "W2DEF", Via: []string{"W1XYZ*"}, Info: ">x"}, now)

	assert.Equal(t, 2, g.PacketCount())
	assert.Equal(t, 1, g.HeardCount(0, time.Minute))
	assert.Equal(t, 2, g.HeardCount(1, time.Minute))
}
