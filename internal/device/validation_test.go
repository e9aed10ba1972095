package device

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDevice(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Device)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Device) {}},
		{name: "empty id", mutate: func(d *Device) { d.ID = "" }, wantErr: true},
		{name: "id with slash", mutate: func(d *Device) { d.ID = "a/b" }, wantErr: true},
		{name: "bad type", mutate: func(d *Device) { d.Type = "LIGHT" }, wantErr: true},
		{name: "bad trait", mutate: func(d *Device) { d.Traits = []string{"OnOff"} }, wantErr: true},
		{name: "empty name", mutate: func(d *Device) { d.Name.Name = "  " }, wantErr: true},
		{name: "long name", mutate: func(d *Device) { d.Name.Name = strings.Repeat("x", maxNameLength+1) }, wantErr: true},
		{name: "bad command", mutate: func(d *Device) { d.Commands = map[string][]string{"OnOff": {"on"}} }, wantErr: true},
		{
			name:    "oversized attribute string",
			mutate:  func(d *Device) { d.Attributes = map[string]any{"k": strings.Repeat("x", maxStringValueLen+1)} },
			wantErr: true,
		},
		{
			name: "too many state keys",
			mutate: func(d *Device) {
				d.State = make(map[string]any)
				for i := 0; i <= maxStateKeys; i++ {
					d.State[strings.Repeat("k", i+1)] = i
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testLight("l1")
			tt.mutate(d)
			err := ValidateDevice(d)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDevice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDevice) && !errors.Is(err, ErrInvalidState) {
				t.Errorf("error %v should wrap a device sentinel", err)
			}
		})
	}

	if err := ValidateDevice(nil); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("ValidateDevice(nil) error = %v", err)
	}
}

func TestValidateState_NestingDepth(t *testing.T) {
	state := map[string]any{}
	cur := state
	for i := 0; i < maxNestingDepth+2; i++ {
		next := map[string]any{}
		cur["n"] = next
		cur = next
	}
	if err := ValidateState(state); !errors.Is(err, ErrInvalidState) {
		t.Errorf("ValidateState() error = %v, want ErrInvalidState", err)
	}
}
