package device

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func testLight(id string) *Device {
	return &Device{
		Properties: Properties{
			ID:              id,
			Type:            "action.devices.types.LIGHT",
			Traits:          []string{"action.devices.traits.OnOff", "action.devices.traits.Brightness"},
			Name:            Name{Name: "Light " + id},
			WillReportState: true,
		},
		Commands: map[string][]string{
			"action.devices.commands.OnOff":              {"on"},
			"action.devices.commands.BrightnessAbsolute": {"brightness"},
		},
	}
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []Command
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, _ *Device, cmd Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	return f.err
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	if err := r.Register(testLight("l1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	dev, ok := r.Get(ctx, "l1")
	if !ok {
		t.Fatal("Get() ok = false")
	}
	if dev.Name.Name != "Light l1" {
		t.Errorf("Name = %q", dev.Name.Name)
	}

	// Returned devices are copies.
	dev.Traits[0] = "mutated"
	again, _ := r.Get(ctx, "l1")
	if again.Traits[0] != "action.devices.traits.OnOff" {
		t.Error("Get() should return a deep copy")
	}

	if _, ok := r.Get(ctx, "missing"); ok {
		t.Error("Get(missing) ok = true")
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry()
	dev := testLight("l1")
	dev.Type = "light"

	if err := r.Register(dev); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("Register() error = %v, want ErrInvalidDevice", err)
	}
	if r.Count() != 0 {
		t.Error("invalid device should not be stored")
	}
}

func TestRegistry_DevicesChangedHook(t *testing.T) {
	r := NewRegistry()
	var calls int
	r.SetOnDevicesChanged(func() { calls++ })

	mustRegister(t, r, testLight("l1"))
	if calls != 1 {
		t.Fatalf("calls after first register = %d, want 1", calls)
	}

	// Identical re-announcement is not a change.
	mustRegister(t, r, testLight("l1"))
	if calls != 1 {
		t.Errorf("calls after identical register = %d, want 1", calls)
	}

	renamed := testLight("l1")
	renamed.Name.Name = "Renamed"
	mustRegister(t, r, renamed)
	if calls != 2 {
		t.Errorf("calls after rename = %d, want 2", calls)
	}

	if err := r.Remove("l1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls after remove = %d, want 3", calls)
	}
	if err := r.Remove("l1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Remove() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_ReRegisterKeepsState(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, testLight("l1"))
	if err := r.UpdateState("l1", map[string]any{"on": true}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	mustRegister(t, r, testLight("l1"))

	states := r.States(context.Background(), []string{"l1"})
	if states["l1"]["on"] != true {
		t.Errorf("state after re-register = %v, want on=true", states["l1"])
	}
}

func TestRegistry_UpdateState(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, testLight("l1"))

	var gotID string
	var gotState map[string]any
	r.SetOnStateChanged(func(id string, state map[string]any) {
		gotID, gotState = id, state
	})

	if err := r.UpdateState("l1", map[string]any{"on": true, "online": true}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	if err := r.UpdateState("l1", map[string]any{"brightness": 40.0}); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	if gotID != "l1" {
		t.Errorf("hook id = %q", gotID)
	}
	if gotState["on"] != true || gotState["brightness"] != 40.0 {
		t.Errorf("hook state = %v, want merged state", gotState)
	}

	if err := r.UpdateState("missing", map[string]any{"on": true}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateState(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_PropertiesAndStates(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	mustRegister(t, r, testLight("b"))
	mustRegister(t, r, testLight("a"))

	props := r.Properties(ctx)
	if len(props) != 2 || props[0].ID != "a" || props[1].ID != "b" {
		t.Errorf("Properties() = %v, want sorted a, b", props)
	}

	ids := r.IDs(ctx)
	if len(ids) != 2 || ids[0] != "a" {
		t.Errorf("IDs() = %v", ids)
	}

	states := r.States(ctx, []string{"a", "unknown"})
	if _, ok := states["unknown"]; ok {
		t.Error("States() should omit unknown ids")
	}
	if _, ok := states["a"]; !ok {
		t.Error("States() should include a")
	}
	if all := r.States(ctx, nil); len(all) != 2 {
		t.Errorf("States(nil) len = %d, want 2", len(all))
	}
}

func TestRegistry_IsOnline(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name  string
		state map[string]any
		want  bool
	}{
		{"never reported", nil, true},
		{"online true", map[string]any{"online": true}, true},
		{"online false", map[string]any{"online": false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := testLight("l1")
			dev.State = tt.state
			if got := r.IsOnline(dev); got != tt.want {
				t.Errorf("IsOnline() = %v, want %v", got, tt.want)
			}
		})
	}
	if r.IsOnline(nil) {
		t.Error("IsOnline(nil) = true")
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	exec := &fakeExecutor{}
	r.SetExecutor(exec)
	mustRegister(t, r, testLight("l1"))
	ctx := context.Background()
	dev, _ := r.Get(ctx, "l1")

	res := r.Execute(ctx, dev, Command{
		Name:   "action.devices.commands.OnOff",
		Params: map[string]any{"on": true},
	})
	if res.Status != StatusSuccess {
		t.Fatalf("Status = %v, want SUCCESS", res.Status)
	}
	if len(res.ExecutionStates) != 1 || res.ExecutionStates[0] != "on" {
		t.Errorf("ExecutionStates = %v, want [on]", res.ExecutionStates)
	}
	if res.States["on"] != true {
		t.Errorf("States = %v, want on=true", res.States)
	}

	// Stored state is visible right after execution.
	if got := r.States(ctx, []string{"l1"})["l1"]["on"]; got != true {
		t.Errorf("stored on = %v, want true", got)
	}
	if len(exec.calls) != 1 {
		t.Errorf("executor calls = %d, want 1", len(exec.calls))
	}
}

func TestRegistry_ExecuteFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		executor Executor
		command  string
		wantCode string
	}{
		{"unsupported command", &fakeExecutor{}, "action.devices.commands.ColorAbsolute", ErrorCodeFunctionNotSupported},
		{"no executor", nil, "action.devices.commands.OnOff", ErrorCodeHardError},
		{"transport failure", &fakeExecutor{err: errors.New("broker down")}, "action.devices.commands.OnOff", ErrorCodeTransientError},
		{"device error code", &fakeExecutor{err: &CommandError{Code: "valueOutOfRange"}}, "action.devices.commands.OnOff", "valueOutOfRange"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			if tt.executor != nil {
				r.SetExecutor(tt.executor)
			}
			mustRegister(t, r, testLight("l1"))
			dev, _ := r.Get(ctx, "l1")

			res := r.Execute(ctx, dev, Command{Name: tt.command, Params: map[string]any{"on": true}})
			if res.Status != StatusError || res.ErrorCode != tt.wantCode {
				t.Errorf("result = %s/%s, want ERROR/%s", res.Status, res.ErrorCode, tt.wantCode)
			}
			if got := r.States(ctx, []string{"l1"})["l1"]["on"]; got != nil {
				t.Errorf("failed command changed state: on = %v", got)
			}
		})
	}
}

func mustRegister(t *testing.T, r *Registry, dev *Device) {
	t.Helper()
	if err := r.Register(dev); err != nil {
		t.Fatalf("Register(%s) error = %v", dev.ID, err)
	}
}
