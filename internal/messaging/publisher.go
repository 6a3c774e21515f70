package messaging

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/config"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/logging"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/mqtt"
)

// busClient is the slice of the MQTT client the publisher needs.
type busClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Close() error
}

// Publisher sends facts to the shared message bus.
//
// The broker connection is established lazily on first publish and shared
// across all subsequent publishes. A stale connection is replaced on the
// next publish.
type Publisher struct {
	cfg    config.MQTTConfig
	logger *logging.Logger

	mu     sync.Mutex
	client busClient

	// connect is swapped in tests to avoid a live broker.
	connect func(config.MQTTConfig) (busClient, error)
}

// NewPublisher creates a publisher. No connection is made until the first
// Publish call.
//
// The publisher presents its own broker client ID. Dialling with the
// subscriber's ID would be a client takeover: the broker must drop the
// existing session, kicking the subscriber offline on the first publish.
func NewPublisher(cfg config.MQTTConfig, logger *logging.Logger) *Publisher {
	cfg.Broker.ClientID += "-pub"
	return &Publisher{
		cfg:    cfg,
		logger: logger,
		connect: func(c config.MQTTConfig) (busClient, error) {
			return mqtt.Connect(c)
		},
	}
}

// Publish serialises the fact and sends it to the shared messages topic.
//
// The fact fans out to every subscribed API instance, including this one.
// There is no delivery count: the broker gives no receiver feedback, and
// an empty audience is not an error.
func (p *Publisher) Publish(fact *Fact) error {
	if fact == nil {
		return fmt.Errorf("publish: nil fact")
	}

	payload, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("encoding fact: %w", err)
	}

	client, err := p.getClient()
	if err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}

	topic := mqtt.Topics{}.Messages()
	if err := client.Publish(topic, payload, byte(p.cfg.QoS), false); err != nil {
		return fmt.Errorf("publishing fact: %w", err)
	}

	p.logger.Debug("published fact", "type", fact.Type, "topic", topic)
	return nil
}

// getClient returns the shared connection, dialling or re-dialling as needed.
func (p *Publisher) getClient() (busClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.client.IsConnected() {
		return p.client, nil
	}

	if p.client != nil {
		// Stale connection; drop it before dialling again.
		p.client.Close() //nolint:errcheck // best effort cleanup
		p.client = nil
	}

	client, err := p.connect(p.cfg)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

// Disconnect closes the shared connection if one was established.
// The publisher can be used again afterwards; the next Publish re-dials.
func (p *Publisher) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
