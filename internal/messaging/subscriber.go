package messaging

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/config"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/logging"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/mqtt"
)

// Deliverer receives decoded facts for local fan-out.
// The WebSocket hub implements this.
type Deliverer interface {
	DeliverProfileUpdate(update ProfileUpdate)
}

// subscribeClient is the slice of the MQTT client the subscriber needs.
type subscribeClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Subscriber listens on the shared messages topic and dispatches facts to
// the local deliverer.
type Subscriber struct {
	client    subscribeClient
	cfg       config.MQTTConfig
	deliverer Deliverer
	logger    *logging.Logger

	mu      sync.Mutex
	started bool
}

// NewSubscriber creates a subscriber bound to an established bus connection.
func NewSubscriber(client subscribeClient, cfg config.MQTTConfig, deliverer Deliverer, logger *logging.Logger) *Subscriber {
	return &Subscriber{
		client:    client,
		cfg:       cfg,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Start subscribes to the shared messages topic. Calling Start on a running
// subscriber is a no-op.
func (s *Subscriber) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	topic := mqtt.Topics{}.Messages()
	if err := s.client.Subscribe(topic, byte(s.cfg.QoS), s.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	s.started = true
	s.logger.Info("message subscriber started", "topic", topic)
	return nil
}

// Stop unsubscribes from the messages topic. Calling Stop on a stopped
// subscriber is a no-op.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	topic := mqtt.Topics{}.Messages()
	if err := s.client.Unsubscribe(topic); err != nil {
		return fmt.Errorf("unsubscribing from %s: %w", topic, err)
	}

	s.started = false
	s.logger.Info("message subscriber stopped")
	return nil
}

// handleMessage decodes a fact and dispatches it by type.
//
// Unrecognised fact types and malformed payloads are logged and dropped;
// the bus keeps flowing regardless of individual bad messages.
func (s *Subscriber) handleMessage(topic string, payload []byte) error {
	var fact Fact
	if err := json.Unmarshal(payload, &fact); err != nil {
		return fmt.Errorf("decoding fact from %s: %w", topic, err)
	}

	switch fact.Type {
	case FactProfileUpdated:
		var update ProfileUpdate
		if err := json.Unmarshal(fact.Data, &update); err != nil {
			return fmt.Errorf("decoding profile update: %w", err)
		}
		s.logger.Debug("dispatching profile update",
			"profile_id", update.ProfileID,
			"username", update.Username,
		)
		s.deliverer.DeliverProfileUpdate(update)
	default:
		s.logger.Warn("unrecognised fact type", "type", fact.Type, "topic", topic)
	}

	return nil
}
