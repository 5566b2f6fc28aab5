// Package capability resolves per-device lighting capabilities (most
// importantly color_temp_range for kelvin scaling) from either a static
// catalog (Govee/WiZ, which never self-report it) or the device's own
// discovery/poll data (LIFX). The struct shape is adapted from the teacher's
// OFL fixture-capability JSON schema (internal/services/ofl/types.go),
// narrowed from a full fixture-definition catalog down to the handful of
// fields the mapping engine actually consults.
package capability

// ColorTempRange is the device-supported Kelvin range for temperature
// mapping. Absent means "skip kelvin updates" per spec Open Question #4.
type ColorTempRange struct {
	MinKelvin uint16
	MaxKelvin uint16
}

// Capabilities is the resolved capability set for one device.
type Capabilities struct {
	HasRGB         bool
	HasWhite       bool
	HasBrightness  bool
	ColorTempRange *ColorTempRange
}

// Provider resolves capabilities for a device. Two implementations exist:
// catalog (model-keyed JSON file, for Govee) and reported (device record
// fields populated by discovery/poll, for LIFX).
type Provider interface {
	Resolve(deviceID, model string) (Capabilities, bool)
}
