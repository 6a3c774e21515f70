package messaging

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/config"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/logging"
	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/mqtt"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

// fakeBus implements busClient for publisher tests.
type fakeBus struct {
	mu        sync.Mutex
	published [][]byte
	topics    []string
	connected bool
	pubErr    error
	closed    int
}

func (f *fakeBus) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return f.pubErr
	}
	f.topics = append(f.topics, topic)
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBus) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	f.connected = false
	return nil
}

// fakeDeliverer records profile updates for subscriber tests.
type fakeDeliverer struct {
	mu      sync.Mutex
	updates []ProfileUpdate
}

func (f *fakeDeliverer) DeliverProfileUpdate(update ProfileUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
}

// fakeSubClient implements subscribeClient.
type fakeSubClient struct {
	subscribed   map[string]mqtt.MessageHandler
	subCalls     int
	unsubCalls   int
	subscribeErr error
}

func newFakeSubClient() *fakeSubClient {
	return &fakeSubClient{subscribed: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeSubClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subCalls++
	f.subscribed[topic] = handler
	return nil
}

func (f *fakeSubClient) Unsubscribe(topic string) error {
	f.unsubCalls++
	delete(f.subscribed, topic)
	return nil
}

func TestNewProfileUpdatedFact(t *testing.T) {
	fact, err := NewProfileUpdatedFact("prof-1", "caitlyn")
	if err != nil {
		t.Fatalf("NewProfileUpdatedFact() error: %v", err)
	}

	if fact.Type != FactProfileUpdated {
		t.Errorf("Type = %q, want %q", fact.Type, FactProfileUpdated)
	}

	var update ProfileUpdate
	if err := json.Unmarshal(fact.Data, &update); err != nil {
		t.Fatalf("decoding Data: %v", err)
	}
	if update.ProfileID != "prof-1" || update.Username != "caitlyn" {
		t.Errorf("Data = %+v, want prof-1/caitlyn", update)
	}
	if update.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestFact_WireRoundTrip(t *testing.T) {
	fact, err := NewProfileUpdatedFact("prof-1", "caitlyn")
	if err != nil {
		t.Fatalf("NewProfileUpdatedFact() error: %v", err)
	}

	wire, err := json.Marshal(fact)
	if err != nil {
		t.Fatalf("marshalling fact: %v", err)
	}

	var decoded Fact
	if err := json.Unmarshal(wire, &decoded); err != nil {
		t.Fatalf("unmarshalling fact: %v", err)
	}
	if decoded.Type != fact.Type || decoded.Message != fact.Message {
		t.Errorf("round-trip changed envelope: %+v vs %+v", decoded, fact)
	}
}

func TestPublisher_LazyConnection(t *testing.T) {
	bus := &fakeBus{connected: true}
	dials := 0

	p := NewPublisher(config.MQTTConfig{QoS: 1}, testLogger())
	p.connect = func(config.MQTTConfig) (busClient, error) {
		dials++
		return bus, nil
	}

	if dials != 0 {
		t.Fatal("publisher dialled before first Publish")
	}

	fact, _ := NewProfileUpdatedFact("prof-1", "caitlyn") //nolint:errcheck // cannot fail for valid input
	if err := p.Publish(fact); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if err := p.Publish(fact); err != nil {
		t.Fatalf("second Publish() error: %v", err)
	}

	if dials != 1 {
		t.Errorf("dials = %d, want 1 (connection shared)", dials)
	}
	if len(bus.published) != 2 {
		t.Errorf("published %d messages, want 2", len(bus.published))
	}
	for _, topic := range bus.topics {
		if topic != "messages" {
			t.Errorf("published to %q, want %q", topic, "messages")
		}
	}
}

func TestPublisher_DialsWithDistinctClientID(t *testing.T) {
	cfg := config.MQTTConfig{QoS: 1}
	cfg.Broker.ClientID = "herpkeeper-core"

	var dialled config.MQTTConfig
	p := NewPublisher(cfg, testLogger())
	p.connect = func(c config.MQTTConfig) (busClient, error) {
		dialled = c
		return &fakeBus{connected: true}, nil
	}

	fact, _ := NewProfileUpdatedFact("prof-1", "caitlyn") //nolint:errcheck // cannot fail for valid input
	if err := p.Publish(fact); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	// Presenting the subscriber's ID would make the broker drop the
	// subscriber session as a client takeover.
	if dialled.Broker.ClientID == cfg.Broker.ClientID {
		t.Errorf("publisher dialled with the subscriber's client ID %q", dialled.Broker.ClientID)
	}
	if dialled.Broker.ClientID != "herpkeeper-core-pub" {
		t.Errorf("ClientID = %q, want %q", dialled.Broker.ClientID, "herpkeeper-core-pub")
	}
}

func TestPublisher_RedialsStaleConnection(t *testing.T) {
	stale := &fakeBus{connected: false}
	fresh := &fakeBus{connected: true}
	dials := 0

	p := NewPublisher(config.MQTTConfig{QoS: 1}, testLogger())
	p.connect = func(config.MQTTConfig) (busClient, error) {
		dials++
		if dials == 1 {
			stale.connected = true // first dial succeeds, then goes stale
			return stale, nil
		}
		return fresh, nil
	}

	fact, _ := NewProfileUpdatedFact("prof-1", "caitlyn") //nolint:errcheck // cannot fail for valid input
	if err := p.Publish(fact); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	stale.connected = false
	if err := p.Publish(fact); err != nil {
		t.Fatalf("Publish() after staleness error: %v", err)
	}

	if dials != 2 {
		t.Errorf("dials = %d, want 2 (stale connection replaced)", dials)
	}
	if stale.closed == 0 {
		t.Error("stale connection was not closed")
	}
	if len(fresh.published) != 1 {
		t.Errorf("fresh connection published %d, want 1", len(fresh.published))
	}
}

func TestPublisher_NilFact(t *testing.T) {
	p := NewPublisher(config.MQTTConfig{}, testLogger())
	if err := p.Publish(nil); err == nil {
		t.Error("Publish(nil) = nil, want error")
	}
}

func TestPublisher_Disconnect(t *testing.T) {
	bus := &fakeBus{connected: true}
	p := NewPublisher(config.MQTTConfig{QoS: 1}, testLogger())
	p.connect = func(config.MQTTConfig) (busClient, error) { return bus, nil }

	// Disconnect before any publish is a no-op.
	if err := p.Disconnect(); err != nil {
		t.Errorf("Disconnect() before connect = %v, want nil", err)
	}

	fact, _ := NewProfileUpdatedFact("prof-1", "caitlyn") //nolint:errcheck // cannot fail for valid input
	if err := p.Publish(fact); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if err := p.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	if bus.closed != 1 {
		t.Errorf("closed = %d, want 1", bus.closed)
	}
}

func TestSubscriber_StartIdempotent(t *testing.T) {
	client := newFakeSubClient()
	s := NewSubscriber(client, config.MQTTConfig{QoS: 1}, &fakeDeliverer{}, testLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}
	if client.subCalls != 1 {
		t.Errorf("Subscribe called %d times, want 1", client.subCalls)
	}
}

func TestSubscriber_StopIdempotent(t *testing.T) {
	client := newFakeSubClient()
	s := NewSubscriber(client, config.MQTTConfig{QoS: 1}, &fakeDeliverer{}, testLogger())

	// Stop before Start is a no-op.
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() before Start error: %v", err)
	}
	if client.unsubCalls != 0 {
		t.Error("Stop() before Start must not unsubscribe")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}
	if client.unsubCalls != 1 {
		t.Errorf("Unsubscribe called %d times, want 1", client.unsubCalls)
	}
}

func TestSubscriber_DispatchesProfileUpdate(t *testing.T) {
	client := newFakeSubClient()
	deliverer := &fakeDeliverer{}
	s := NewSubscriber(client, config.MQTTConfig{QoS: 1}, deliverer, testLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	fact, _ := NewProfileUpdatedFact("prof-1", "caitlyn") //nolint:errcheck // cannot fail for valid input
	payload, _ := json.Marshal(fact)                      //nolint:errcheck // valid struct

	handler := client.subscribed["messages"]
	if handler == nil {
		t.Fatal("no handler registered on messages topic")
	}
	if err := handler("messages", payload); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	if len(deliverer.updates) != 1 {
		t.Fatalf("delivered %d updates, want 1", len(deliverer.updates))
	}
	if deliverer.updates[0].Username != "caitlyn" {
		t.Errorf("Username = %q, want %q", deliverer.updates[0].Username, "caitlyn")
	}
}

func TestSubscriber_UnknownFactTypeIgnored(t *testing.T) {
	client := newFakeSubClient()
	deliverer := &fakeDeliverer{}
	s := NewSubscriber(client, config.MQTTConfig{QoS: 1}, deliverer, testLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	handler := client.subscribed["messages"]
	if err := handler("messages", []byte(`{"type":"mystery","message":"?","data":{}}`)); err != nil {
		t.Errorf("unknown fact type handler error: %v, want nil", err)
	}
	if len(deliverer.updates) != 0 {
		t.Error("unknown fact type must not be delivered")
	}
}

func TestSubscriber_MalformedPayload(t *testing.T) {
	client := newFakeSubClient()
	deliverer := &fakeDeliverer{}
	s := NewSubscriber(client, config.MQTTConfig{QoS: 1}, deliverer, testLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	handler := client.subscribed["messages"]
	if err := handler("messages", []byte("not json")); err == nil {
		t.Error("malformed payload handler error = nil, want error")
	}
	if len(deliverer.updates) != 0 {
		t.Error("malformed payload must not be delivered")
	}
}

func TestNotifier_PublishesFact(t *testing.T) {
	bus := &fakeBus{connected: true}
	p := NewPublisher(config.MQTTConfig{QoS: 1}, testLogger())
	p.connect = func(config.MQTTConfig) (busClient, error) { return bus, nil }

	n := NewNotifier(p, testLogger())
	n.ProfileUpdated("prof-1", "caitlyn")

	if len(bus.published) != 1 {
		t.Fatalf("published %d facts, want 1", len(bus.published))
	}

	var fact Fact
	if err := json.Unmarshal(bus.published[0], &fact); err != nil {
		t.Fatalf("decoding published fact: %v", err)
	}
	if fact.Type != FactProfileUpdated {
		t.Errorf("Type = %q, want %q", fact.Type, FactProfileUpdated)
	}
}

func TestNotifier_PublishFailureDoesNotPanic(t *testing.T) {
	bus := &fakeBus{connected: true, pubErr: errors.New("broker down")}
	p := NewPublisher(config.MQTTConfig{QoS: 1}, testLogger())
	p.connect = func(config.MQTTConfig) (busClient, error) { return bus, nil }

	n := NewNotifier(p, testLogger())
	// Must log and carry on.
	n.ProfileUpdated("prof-1", "caitlyn")
}
