package device

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxNameLength     = 100
	maxIDLength       = 128
	maxTraits         = 50
	maxStateKeys      = 100
	maxConfigKeys     = 50
	maxArrayLen       = 50
	maxStringValueLen = 1024
	maxNestingDepth   = 10
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// ValidateDevice checks a device description before registration.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is nil", ErrInvalidDevice)
	}
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	if !isDeviceType(d.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDevice, d.Type)
	}
	if len(d.Traits) > maxTraits {
		return fmt.Errorf("%w: more than %d traits", ErrInvalidDevice, maxTraits)
	}
	for _, t := range d.Traits {
		if !isTrait(t) {
			return fmt.Errorf("%w: unknown trait %q", ErrInvalidDevice, t)
		}
	}
	name := strings.TrimSpace(d.Name.Name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidDevice)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidDevice, maxNameLength)
	}
	if err := validateMapSize(d.Attributes, "attributes", 0); err != nil {
		return err
	}
	if err := validateMapSize(d.CustomData, "customData", 0); err != nil {
		return err
	}
	for cmd := range d.Commands {
		if !strings.HasPrefix(cmd, "action.devices.commands.") {
			return fmt.Errorf("%w: unknown command %q", ErrInvalidDevice, cmd)
		}
	}
	return ValidateState(d.State)
}

// ValidateID checks a device identifier.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidDevice)
	}
	if len(id) > maxIDLength || !idRegex.MatchString(id) {
		return fmt.Errorf("%w: malformed id %q", ErrInvalidDevice, id)
	}
	return nil
}

// ValidateState bounds a state map.
func ValidateState(state map[string]any) error {
	if len(state) > maxStateKeys {
		return fmt.Errorf("%w: more than %d keys", ErrInvalidState, maxStateKeys)
	}
	if err := validateMapSize(state, "state", 0); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return nil
}

// validateMapSize recursively bounds the size of a JSON-like map.
func validateMapSize(m map[string]any, field string, depth int) error {
	if depth > maxNestingDepth {
		return fmt.Errorf("%w: %s exceeds maximum nesting depth", ErrInvalidDevice, field)
	}
	if len(m) > maxConfigKeys && depth > 0 {
		return fmt.Errorf("%w: %s nested map too large", ErrInvalidDevice, field)
	}
	for k, v := range m {
		if len(k) > maxStringValueLen {
			return fmt.Errorf("%w: %s key too long", ErrInvalidDevice, field)
		}
		if err := validateValueSize(v, field, depth); err != nil {
			return err
		}
	}
	return nil
}

func validateValueSize(v any, field string, depth int) error {
	switch val := v.(type) {
	case string:
		if len(val) > maxStringValueLen {
			return fmt.Errorf("%w: %s string value too long", ErrInvalidDevice, field)
		}
	case map[string]any:
		return validateMapSize(val, field, depth+1)
	case []any:
		if len(val) > maxArrayLen {
			return fmt.Errorf("%w: %s array too large", ErrInvalidDevice, field)
		}
		for _, elem := range val {
			if err := validateValueSize(elem, field, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
