package xmit

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/dwgo/beacond/internal/aprs"
)

// Uplink is the piece of the IGate the dispatcher needs.
type Uplink interface {
	SendUplink(f *aprs.Frame)
	HeardPacket(f *aprs.Frame, when time.Time)
}

// Dispatcher routes finished frames.  Radio frames go on the transmit
// queue; every one of them is also mirrored to the optional transmit log
// and MQTT publisher.  Any field may be nil except Queue.
type Dispatcher struct {
	Queue *Queue
	IGate Uplink
	MQTT  *Publisher
	Log   *TransmitLog
}

// Enqueue puts a frame on the transmit queue for a radio channel.
func (d *Dispatcher) Enqueue(channel, priority int, f *aprs.Frame) {
	if d.Log != nil {
		d.Log.Record(channel, f)
	}
	if d.MQTT != nil {
		d.MQTT.Publish(channel, f)
	}
	d.Queue.Append(channel, priority, f)
}

// ToIGate uploads a frame to the APRS-IS server without transmitting it.
func (d *Dispatcher) ToIGate(f *aprs.Frame) {
	if d.IGate == nil {
		log.Error("Frame destined for the IGate but no IGate is configured.", "frame", f.String())
		return
	}
	d.IGate.SendUplink(f)
}

// SimulateReceive treats a frame as if it had been heard over the air on
// the given channel: it feeds the heard station statistics and, with an
// IGate configured, is gated to the server like any received packet.
func (d *Dispatcher) SimulateReceive(channel int, f *aprs.Frame) {
	log.Info("[" + formatChannel(channel) + "R] " + f.String())

	if d.IGate != nil {
		d.IGate.HeardPacket(f, time.Now())
		d.IGate.SendUplink(f)
	}
}
