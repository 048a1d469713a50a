package notify

import (
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher publishes lifecycle events as retained-false MQTT messages,
// one per event, to the configured broker.
type MQTTPublisher struct {
	conn mqtt.Client
}

// DialMQTT connects to brokerURL and returns a ready Publisher. clientID
// should be unique per process; it is typically the hostname or a
// configured instance name.
func DialMQTT(brokerURL, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetConnectionLostHandler(onConnectionLost)

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return &MQTTPublisher{conn: conn}, nil
}

func onConnectionLost(_ mqtt.Client, err error) {
	slog.Warn("mqtt connection lost, will auto-reconnect", "error", err)
}

func (p *MQTTPublisher) Publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		slog.Warn("mqtt event marshal failed", "error", err)
		return
	}

	token := p.conn.Publish(Topic(e), 0, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			slog.Warn("mqtt publish failed", "topic", Topic(e), "error", err)
		}
	}()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.conn.Disconnect(250)
}
