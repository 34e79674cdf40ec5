package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// MQTTProvider publishes payloads as JSON to a broker topic, for farm
// dashboards and home-automation integrations.
type MQTTProvider struct {
	cfg     conf.MQTTSettings
	timeout time.Duration

	mu     sync.Mutex
	client mqtt.Client
}

// NewMQTTProvider builds the MQTT provider from settings. The broker
// connection is established lazily on first send.
func NewMQTTProvider(cfg *conf.MQTTSettings) *MQTTProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MQTTProvider{cfg: *cfg, timeout: timeout}
}

func (m *MQTTProvider) Name() string    { return "mqtt" }
func (m *MQTTProvider) Channel() string { return ChannelMQTT }
func (m *MQTTProvider) Enabled() bool   { return m.cfg.Enabled }

func (m *MQTTProvider) ValidateConfig() error {
	if !m.cfg.Enabled {
		return nil
	}
	if m.cfg.Broker == "" || m.cfg.Topic == "" {
		return errors.Newf("mqtt enabled but broker or topic missing").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// connect establishes the broker session once and reuses it.
func (m *MQTTProvider) connect() (mqtt.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.client.IsConnected() {
		return m.client, nil
	}

	clientID := m.cfg.ClientID
	if clientID == "" {
		clientID = "pondwatch"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(m.timeout).
		SetAutoReconnect(true)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(m.timeout) {
		return nil, errors.Newf("mqtt connect timed out after %s", m.timeout).
			Component("notification").
			Category(errors.CategoryMQTTConnection).
			Context("broker", m.cfg.Broker).
			Build()
	}
	if err := token.Error(); err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryMQTTConnection).
			Context("broker", m.cfg.Broker).
			Build()
	}

	m.client = client
	return client, nil
}

// Send publishes the payload to the configured topic.
func (m *MQTTProvider) Send(ctx context.Context, p *Payload) error {
	client, err := m.connect()
	if err != nil {
		return err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	token := client.Publish(m.cfg.Topic, 1, m.cfg.Retain, body)

	var timedOut bool
	done := make(chan struct{})
	go func() {
		timedOut = !token.WaitTimeout(m.timeout)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("notification").
			Category(errors.CategoryMQTTPublish).
			Build()
	case <-done:
	}

	if timedOut {
		return errors.Newf("mqtt publish timed out after %s", m.timeout).
			Component("notification").
			Category(errors.CategoryMQTTPublish).
			Context("topic", m.cfg.Topic).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryMQTTPublish).
			Context("topic", m.cfg.Topic).
			Build()
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTProvider) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
		m.client = nil
	}
}
