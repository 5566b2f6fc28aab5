package capability

import "sync"

// Reported is a capability provider for devices that self-report their
// color temperature range during discovery/polling (LIFX). It is populated
// directly, rather than loaded from a file. Set is called from the
// discovery goroutine while Resolve is called concurrently from the mapping
// engine's Reload, so access is mutex-guarded.
type Reported struct {
	mu       sync.RWMutex
	byDevice map[string]Capabilities
}

// NewReported creates an empty device-reported provider.
func NewReported() *Reported {
	return &Reported{byDevice: make(map[string]Capabilities)}
}

// Set records (or replaces) the capabilities reported for a device.
func (r *Reported) Set(deviceID string, caps Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDevice[deviceID] = caps
}

// Resolve implements Provider. model is ignored; resolution is by device id.
func (r *Reported) Resolve(deviceID string, _ string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.byDevice[deviceID]
	return caps, ok
}

// LIFXColorTempRange is the fixed kelvin range LIFX color bulbs advertise
// (spec §4.5.2); used to seed Reported entries as devices are discovered.
var LIFXColorTempRange = ColorTempRange{MinKelvin: 2500, MaxKelvin: 9000}
