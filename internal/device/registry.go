package device

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Executor delivers a command to the physical device. Returning a
// *CommandError sets the error code reported to the assistant; any other
// error is reported as transientError.
type Executor interface {
	Execute(ctx context.Context, dev *Device, cmd Command) error
}

// Registry is the in-memory set of devices exposed to the assistant.
//
// Devices handed out are deep copies; callers may modify them freely.
// All public methods are thread-safe.
type Registry struct {
	mu       sync.RWMutex
	devices  map[string]*Device
	executor Executor
	logger   Logger

	hookMu           sync.RWMutex
	onDevicesChanged func()
	onStateChanged   func(id string, state map[string]any)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetExecutor sets the command executor.
func (r *Registry) SetExecutor(e Executor) {
	r.mu.Lock()
	r.executor = e
	r.mu.Unlock()
}

// SetOnDevicesChanged registers a callback for device additions, removals
// and property changes.
func (r *Registry) SetOnDevicesChanged(fn func()) {
	r.hookMu.Lock()
	r.onDevicesChanged = fn
	r.hookMu.Unlock()
}

// SetOnStateChanged registers a callback for state updates. The map is a
// copy owned by the callback.
func (r *Registry) SetOnStateChanged(fn func(id string, state map[string]any)) {
	r.hookMu.Lock()
	r.onStateChanged = fn
	r.hookMu.Unlock()
}

// Register adds or replaces a device. A replacement keeps the existing state
// unless dev carries its own. The devices-changed hook fires only when the
// set of devices or their properties actually changed.
func (r *Registry) Register(dev *Device) error {
	if err := ValidateDevice(dev); err != nil {
		return err
	}
	stored := dev.DeepCopy()

	r.mu.Lock()
	existing, ok := r.devices[dev.ID]
	if ok && stored.State == nil {
		stored.State = existing.State
	}
	if stored.State == nil {
		stored.State = make(map[string]any)
	}
	changed := !ok ||
		!reflect.DeepEqual(existing.Properties, stored.Properties) ||
		!reflect.DeepEqual(existing.Commands, stored.Commands)
	r.devices[dev.ID] = stored
	count := len(r.devices)
	r.mu.Unlock()

	if !changed {
		return nil
	}
	r.logger.Info("device registered", "device_id", dev.ID, "type", dev.Type, "devices", count)
	r.fireDevicesChanged()
	return nil
}

// Remove deletes a device.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	_, ok := r.devices[id]
	delete(r.devices, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	r.logger.Info("device removed", "device_id", id)
	r.fireDevicesChanged()
	return nil
}

// UpdateState merges state into the device's state and fires the
// state-changed hook with the full resulting state.
func (r *Registry) UpdateState(id string, state map[string]any) error {
	if err := ValidateState(state); err != nil {
		return err
	}

	r.mu.Lock()
	dev, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	for k, v := range state {
		dev.State[k] = deepCopyValue(v)
	}
	snapshot := deepCopyMap(dev.State)
	r.mu.Unlock()

	r.hookMu.RLock()
	hook := r.onStateChanged
	r.hookMu.RUnlock()
	if hook != nil {
		hook(id, snapshot)
	}
	return nil
}

// Get returns a copy of the device with id.
func (r *Registry) Get(_ context.Context, id string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dev, ok := r.devices[id]
	if !ok {
		return nil, false
	}
	return dev.DeepCopy(), true
}

// IDs returns every registered device id, sorted.
func (r *Registry) IDs(_ context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Properties returns the SYNC description of every device, sorted by id.
func (r *Registry) Properties(ctx context.Context) []Properties {
	ids := r.IDs(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()
	props := make([]Properties, 0, len(ids))
	for _, id := range ids {
		if dev, ok := r.devices[id]; ok {
			props = append(props, dev.Properties.DeepCopy())
		}
	}
	return props
}

// States returns the state of each requested device. Unknown ids are
// omitted. An empty ids slice returns every device.
func (r *Registry) States(ctx context.Context, ids []string) map[string]map[string]any {
	if len(ids) == 0 {
		ids = r.IDs(ctx)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]any, len(ids))
	for _, id := range ids {
		if dev, ok := r.devices[id]; ok {
			out[id] = deepCopyMap(dev.State)
		}
	}
	return out
}

// IsOnline reports whether dev is reachable.
func (r *Registry) IsOnline(dev *Device) bool {
	return dev != nil && dev.Online()
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Execute runs cmd on dev through the executor. On success the accepted
// parameters that name affected state keys are applied to the stored state,
// so a following States call observes them.
func (r *Registry) Execute(ctx context.Context, dev *Device, cmd Command) ExecutionResult {
	affected, ok := dev.Commands[cmd.Name]
	if !ok {
		return Failed(ErrorCodeFunctionNotSupported)
	}

	r.mu.RLock()
	executor := r.executor
	r.mu.RUnlock()
	if executor == nil {
		r.logger.Error("command dropped", "device_id", dev.ID, "command", cmd.Name, "error", ErrNoExecutor)
		return Failed(ErrorCodeHardError)
	}

	if err := executor.Execute(ctx, dev, cmd); err != nil {
		var ce *CommandError
		if errors.As(err, &ce) && ce.Code != "" {
			return Failed(ce.Code)
		}
		r.logger.Warn("command failed", "device_id", dev.ID, "command", cmd.Name, "error", err)
		return Failed(ErrorCodeTransientError)
	}

	r.mu.Lock()
	var states map[string]any
	if stored, ok := r.devices[dev.ID]; ok {
		for _, key := range affected {
			if v, has := cmd.Params[key]; has {
				stored.State[key] = deepCopyValue(v)
			}
		}
		states = deepCopyMap(stored.State)
	}
	r.mu.Unlock()

	return ExecutionResult{
		Status:          StatusSuccess,
		Params:          deepCopyMap(cmd.Params),
		States:          states,
		ExecutionStates: append([]string(nil), affected...),
	}
}

func (r *Registry) fireDevicesChanged() {
	r.hookMu.RLock()
	hook := r.onDevicesChanged
	r.hookMu.RUnlock()
	if hook != nil {
		hook()
	}
}
