package core

// DeviceCommand is the tagged-variant replacement for the "open dict" payload
// the distilled spec describes. Protocol handlers consume it with a type
// switch; they never re-introspect a map.
type DeviceCommand interface {
	isDeviceCommand()
}

// PowerOn turns the device fully on, independent of colour/brightness.
type PowerOn struct{}

// PowerOff turns the device off.
type PowerOff struct{}

// SetColor sets RGB(W) color. W is nil when the device/mapping has no white
// channel.
type SetColor struct {
	R, G, B uint8
	W       *uint8
}

// SetBrightness sets brightness on a 0-255 scale.
type SetBrightness struct {
	Value uint8
}

// SetKelvin sets color temperature in Kelvin.
type SetKelvin struct {
	Kelvin uint16
}

// Composite bundles multiple commands that must be sent together, in order,
// as one logical update (e.g. Govee's "_multiple" batch).
type Composite struct {
	Commands []DeviceCommand
}

func (PowerOn) isDeviceCommand()       {}
func (PowerOff) isDeviceCommand()      {}
func (SetColor) isDeviceCommand()      {}
func (SetBrightness) isDeviceCommand() {}
func (SetKelvin) isDeviceCommand()     {}
func (Composite) isDeviceCommand()     {}

// DeviceStateUpdate is what the mapping engine hands to the store for
// enqueueing, and what the sender ultimately wraps via a protocol handler.
type DeviceStateUpdate struct {
	DeviceID  string
	Payload   DeviceCommand
	ContextID string // optional trace id, e.g. "dmx-artnet-1-42-<uuid>"
}

// EqualDeviceCommand reports whether two commands carry the same value, used
// by the mapping engine's change-detection to drop no-op updates. SetColor's
// W pointers are compared by the value they point to; a nil W differs from a
// non-nil one.
func EqualDeviceCommand(a, b DeviceCommand) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case PowerOn:
		_, ok := b.(PowerOn)
		return ok
	case PowerOff:
		_, ok := b.(PowerOff)
		return ok
	case SetColor:
		bv, ok := b.(SetColor)
		if !ok || av.R != bv.R || av.G != bv.G || av.B != bv.B {
			return false
		}
		if (av.W == nil) != (bv.W == nil) {
			return false
		}
		return av.W == nil || *av.W == *bv.W
	case SetBrightness:
		bv, ok := b.(SetBrightness)
		return ok && av.Value == bv.Value
	case SetKelvin:
		bv, ok := b.(SetKelvin)
		return ok && av.Kelvin == bv.Kelvin
	case Composite:
		bv, ok := b.(Composite)
		if !ok || len(av.Commands) != len(bv.Commands) {
			return false
		}
		for i := range av.Commands {
			if !EqualDeviceCommand(av.Commands[i], bv.Commands[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
