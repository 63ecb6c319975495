package bridge

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/joshp123/mideactl/internal/config"
)

// Publisher is the outbound half of an MQTT client, the only part the
// bridge needs.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) error
	Close()
}

type mqttPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker with a last will that flips
// the bridge availability topic to offline if the connection drops.
// Reconnects are the client library's problem.
func NewMQTTPublisher(cfg config.MQTTConfig) (Publisher, error) {
	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(randomClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWill(cfg.Prefix+"/bridge/availability", "offline", 0, true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	return &mqttPublisher{client: client}, nil
}

func (p *mqttPublisher) Publish(topic string, payload []byte, retain bool) error {
	if token := p.client.Publish(topic, 0, retain, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}

func randomClientID() string {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "midea-bridge"
	}
	return "midea-bridge-" + base64.RawURLEncoding.EncodeToString(buf)
}
