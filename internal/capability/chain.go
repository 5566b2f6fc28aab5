package capability

// Chain tries each Provider in order and returns the first resolved result,
// letting the mapping engine consult a single CapabilityProvider regardless
// of which vendor (catalog-backed Govee, device-reported LIFX) owns a
// device (§4.9's "registry" generalisation of the teacher's OFL lookup).
type Chain []Provider

// Resolve returns the first match across the chain.
func (c Chain) Resolve(deviceID, model string) (Capabilities, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if caps, ok := p.Resolve(deviceID, model); ok {
			return caps, true
		}
	}
	return Capabilities{}, false
}
