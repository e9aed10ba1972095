package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-assistant/internal/infrastructure/mqtt"
)

// maxPendingStates bounds states held for devices whose config has not
// arrived yet.
const maxPendingStates = 256

// MQTTClient is the subset of the MQTT client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// commandMessage is published to a device's command topic.
type commandMessage struct {
	ID        string         `json:"id"`
	Command   string         `json:"command"`
	Params    map[string]any `json:"params,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bridge keeps the Registry in sync with devices announced over MQTT and
// delivers commands back to them. It implements Executor.
type Bridge struct {
	client   MQTTClient
	registry *Registry
	qos      byte
	logger   Logger
	topics   mqtt.Topics

	mu      sync.Mutex
	pending map[string]map[string]any
}

// NewBridge wires a bridge between client and registry and installs itself
// as the registry's executor.
func NewBridge(client MQTTClient, registry *Registry, qos byte, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	b := &Bridge{
		client:   client,
		registry: registry,
		qos:      qos,
		logger:   logger,
		pending:  make(map[string]map[string]any),
	}
	registry.SetExecutor(b)
	return b
}

// Start subscribes to device config and state topics. Retained messages
// populate the registry right away.
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.AllDeviceConfigs(), b.qos, b.handleConfig); err != nil {
		return fmt.Errorf("subscribing to device configs: %w", err)
	}
	if err := b.client.Subscribe(b.topics.AllDeviceStates(), b.qos, b.handleState); err != nil {
		return fmt.Errorf("subscribing to device states: %w", err)
	}
	b.logger.Info("device bridge started", "configs", b.topics.AllDeviceConfigs(), "states", b.topics.AllDeviceStates())
	return nil
}

// Execute publishes cmd to the device's command topic.
func (b *Bridge) Execute(ctx context.Context, dev *Device, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(commandMessage{
		ID:        uuid.NewString(),
		Command:   cmd.Name,
		Params:    cmd.Params,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return &CommandError{Code: ErrorCodeHardError, Err: err}
	}
	if err := b.client.Publish(b.topics.DeviceCommand(dev.ID), payload, b.qos, false); err != nil {
		return fmt.Errorf("publishing command: %w", err)
	}
	b.logger.Debug("command published", "device_id", dev.ID, "command", cmd.Name)
	return nil
}

// handleConfig registers or, for an empty payload, removes a device.
func (b *Bridge) handleConfig(topic string, payload []byte) error {
	id, _, ok := b.topics.DeviceIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected config topic %q", topic)
	}

	if len(payload) == 0 {
		if err := b.registry.Remove(id); err != nil && !errors.Is(err, ErrDeviceNotFound) {
			return err
		}
		b.dropPending(id)
		return nil
	}

	var dev Device
	if err := json.Unmarshal(payload, &dev); err != nil {
		return fmt.Errorf("decoding config for %s: %w", id, err)
	}
	dev.ID = id
	dev.State = b.takePending(id)

	if err := b.registry.Register(&dev); err != nil {
		return fmt.Errorf("registering %s: %w", id, err)
	}
	return nil
}

// handleState merges a state update. States for unknown devices are held
// until their config arrives.
func (b *Bridge) handleState(topic string, payload []byte) error {
	id, _, ok := b.topics.DeviceIDFromTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected state topic %q", topic)
	}
	if len(payload) == 0 {
		return nil
	}

	var state map[string]any
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("decoding state for %s: %w", id, err)
	}

	err := b.registry.UpdateState(id, state)
	if errors.Is(err, ErrDeviceNotFound) {
		b.holdPending(id, state)
		return nil
	}
	return err
}

func (b *Bridge) holdPending(id string, state map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.pending[id]
	if !ok {
		if len(b.pending) >= maxPendingStates {
			b.logger.Warn("dropping state for unknown device", "device_id", id)
			return
		}
		existing = make(map[string]any, len(state))
		b.pending[id] = existing
	}
	for k, v := range state {
		existing[k] = v
	}
}

func (b *Bridge) takePending(id string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.pending[id]
	delete(b.pending, id)
	return state
}

func (b *Bridge) dropPending(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
