// Package mqtt forwards engine events to an MQTT broker so other services
// (record views, audit trails) can follow pedigree loads and saves.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/aretw0/pedigree/pkg/core"
)

// DefaultTopic is the topic prefix; the event type is appended.
const DefaultTopic = "pedigree/events"

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// client is the part of paho.Client the publisher needs.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Payload is the JSON body of a published event.
type Payload struct {
	Type      string `json:"type"`
	Seq       uint64 `json:"seq,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"ts"`
	Pedigree  string `json:"pedigree,omitempty"`
}

// Config holds the publisher settings.
type Config struct {
	URL      string // broker URL, default BrokerURL()
	ClientID string
	Topic    string // topic prefix, default DefaultTopic
	QoS      byte
	Pedigree string // identifier stamped on every payload
	Logger   *slog.Logger
}

// Publisher publishes engine events, one message per event.
type Publisher struct {
	client client
	config Config

	mu        sync.Mutex
	published int
	failed    int
}

// NewPublisher creates a publisher but does not connect.
func NewPublisher(config Config) *Publisher {
	if config.URL == "" {
		config.URL = BrokerURL()
	}
	if config.ClientID == "" {
		config.ClientID = fmt.Sprintf("pedigree-%d", os.Getpid())
	}
	opts := paho.NewClientOptions().
		AddBroker(config.URL).
		SetClientID(config.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return newPublisher(paho.NewClient(opts), config)
}

func newPublisher(c client, config Config) *Publisher {
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{client: c, config: config}
}

// Connect attempts to connect to the broker without blocking indefinitely.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (p *Publisher) Disconnect() {
	p.client.Disconnect(1000)
}

// Topic returns the topic an event type is published on.
func (p *Publisher) Topic(t core.EventType) string {
	return strings.TrimSuffix(p.config.Topic, "/") + "/" + strings.ReplaceAll(string(t), ".", "/")
}

// Publish sends one event and waits for the broker to accept it.
func (p *Publisher) Publish(e core.Event) error {
	payload := Payload{
		Type:      string(e.Type),
		Seq:       e.Seq,
		Message:   e.Message,
		Timestamp: e.Timestamp,
		Pedigree:  p.config.Pedigree,
	}
	if e.Err != nil {
		payload.Error = e.Err.Error()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.Topic(e.Type), p.config.QoS, false, body)
	if !token.WaitTimeout(10 * time.Second) {
		err = fmt.Errorf("mqtt publish timeout: %s", e.Type)
	} else {
		err = token.Error()
	}

	p.mu.Lock()
	if err != nil {
		p.failed++
	} else {
		p.published++
	}
	p.mu.Unlock()
	return err
}

// Run publishes events until the channel closes or ctx ends. Publish
// failures are logged and do not stop the loop.
func (p *Publisher) Run(ctx context.Context, events <-chan core.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.Publish(e); err != nil {
				p.config.Logger.Warn("failed to publish event", "type", e.Type, "error", err)
			}
		}
	}
}

// Start runs the publishing loop in the background.
func (p *Publisher) Start(ctx context.Context, events <-chan core.Event) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		return p.Run(ctx, events)
	}, lifecycle.WithErrorHandler(func(err error) {
		p.config.Logger.Error("event publisher panic", "error", err)
	}))
}

// PublisherState exposes internal state for observability.
type PublisherState struct {
	URL       string `json:"url"`
	Topic     string `json:"topic"`
	Connected bool   `json:"connected"`
	Published int    `json:"published"`
	Failed    int    `json:"failed"`
}

// State implements introspection.Introspectable.
func (p *Publisher) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublisherState{
		URL:       p.config.URL,
		Topic:     p.config.Topic,
		Connected: p.client.IsConnected(),
		Published: p.published,
		Failed:    p.failed,
	}
}

// ComponentType implements introspection.Component.
func (p *Publisher) ComponentType() string {
	return "event-publisher"
}
