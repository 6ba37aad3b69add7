// Package events publishes printer lifecycle and sync outcomes so other
// POS components (order screens, dashboards) can react without polling
// the local API. NATS and MQTT are both optional; with neither
// configured the publisher is a no-op.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Event subjects. NATS gets them verbatim; MQTT swaps dots for slashes
// under the configured topic prefix.
const (
	SubjectPrinterAdded      = "printer.added"
	SubjectPrinterUpdated    = "printer.updated"
	SubjectPrinterDeleted    = "printer.deleted"
	SubjectPrinterActivated  = "printer.activated"
	SubjectPrinterConnection = "printer.connection"
	SubjectSyncResult        = "sync.result"
)

// Event is the envelope published on every subject.
type Event struct {
	ID        string      `json:"id"`
	Subject   string      `json:"subject"`
	PrinterID string      `json:"printerId,omitempty"`
	Time      time.Time   `json:"time"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Publisher fans events out to the configured brokers.
type Publisher struct {
	nc          *nats.Conn
	mqttClient  mqtt.Client
	topicPrefix string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithNATS attaches a NATS connection.
func WithNATS(nc *nats.Conn) Option {
	return func(p *Publisher) { p.nc = nc }
}

// WithMQTT attaches a connected MQTT client.
func WithMQTT(client mqtt.Client, topicPrefix string) Option {
	return func(p *Publisher) {
		p.mqttClient = client
		p.topicPrefix = topicPrefix
	}
}

// NewPublisher creates a publisher with zero or more sinks.
func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{topicPrefix: "pos"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConnectMQTT dials an MQTT broker with auto-reconnect enabled.
func ConnectMQTT(broker, clientID, username, password string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return client, nil
}

// Publish sends an event to every configured sink. Failures are logged,
// not returned: event delivery is best effort and must never fail a
// registry or sync operation.
func (p *Publisher) Publish(subject, printerID string, payload interface{}) {
	if p.nc == nil && p.mqttClient == nil {
		return
	}

	evt := Event{
		ID:        uuid.New().String(),
		Subject:   subject,
		PrinterID: printerID,
		Time:      time.Now().UTC(),
		Payload:   payload,
	}

	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to encode event")
		return
	}

	if p.nc != nil {
		if err := p.nc.Publish("pos."+subject, data); err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("NATS publish failed")
		}
	}

	if p.mqttClient != nil {
		topic := p.topicPrefix + "/" + toMQTTTopic(subject)
		token := p.mqttClient.Publish(topic, 0, false, data)
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("MQTT publish failed")
			}
		}()
	}
}

// Close releases broker connections.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
	if p.mqttClient != nil && p.mqttClient.IsConnected() {
		p.mqttClient.Disconnect(250)
	}
}

func toMQTTTopic(subject string) string {
	out := make([]byte, len(subject))
	for i := 0; i < len(subject); i++ {
		if subject[i] == '.' {
			out[i] = '/'
		} else {
			out[i] = subject[i]
		}
	}
	return string(out)
}
