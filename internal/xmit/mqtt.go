package xmit

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/charmbracelet/log"

	"github.com/dwgo/beacond/internal/aprs"
)

// Monitor is the JSON document published for each transmitted frame.
type Monitor struct {
	Time    time.Time `json:"time"`
	Channel int       `json:"channel"`
	Source  string    `json:"source"`
	Dest    string    `json:"dest"`
	Via     []string  `json:"via,omitempty"`
	Info    string    `json:"info"`
	Packet  string    `json:"packet"`
}

// Publisher mirrors transmitted frames to an MQTT topic so dashboards
// and other local consumers can watch the station without touching the
// radio path.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// NewPublisher connects to the broker.  broker is a URL such as
// tcp://localhost:1883.
func NewPublisher(broker, clientID, topic string) (*Publisher, error) {
	var opts = mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectRetry(true).
		SetAutoReconnect(true)

	var client = mqtt.NewClient(opts)
	// With connect retry enabled a down broker is not fatal; don't hold
	// up startup waiting for it either.
	if token := client.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return nil, token.Error()
	}
	log.Info("Connected to MQTT broker.", "broker", broker, "topic", topic)

	return &Publisher{client: client, topic: topic}, nil
}

// Publish sends one frame, fire and forget at QoS 0.
func (p *Publisher) Publish(channel int, f *aprs.Frame) {
	var payload, err = json.Marshal(Monitor{
		Time:    time.Now(),
		Channel: channel,
		Source:  f.Source,
		Dest:    f.Dest,
		Via:     f.Via,
		Info:    f.Info,
		Packet:  f.String(),
	})
	if err != nil {
		log.Error("Unable to marshal monitor message.", "err", err)
		return
	}

	p.client.Publish(p.topic, 0, false, payload)
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
