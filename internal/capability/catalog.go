package capability

import (
	"encoding/json"
	"os"
)

// catalogEntry mirrors the teacher's OFLFixture/OFLCapability JSON shape
// (internal/services/ofl/types.go), trimmed to the fields a LAN lighting
// bridge needs rather than a full stage-fixture definition.
type catalogEntry struct {
	Model          string  `json:"model"`
	HasRGB         bool    `json:"hasRgb"`
	HasWhite       bool    `json:"hasWhite"`
	HasBrightness  bool    `json:"hasBrightness"`
	MinColorTempK  *uint16 `json:"minColorTempKelvin,omitempty"`
	MaxColorTempK  *uint16 `json:"maxColorTempKelvin,omitempty"`
}

// Catalog is a model-keyed, file-backed capability provider for devices
// that never self-report capabilities over the wire (Govee).
type Catalog struct {
	byModel map[string]catalogEntry
}

// LoadCatalog reads a JSON array of catalogEntry from path. A missing file
// yields an empty catalog rather than an error, since a capability catalog
// is a convenience, not a hard dependency of the bridge's startup.
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{byModel: make(map[string]catalogEntry)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}

	var entries []catalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	for _, e := range entries {
		c.byModel[e.Model] = e
	}
	return c, nil
}

// Resolve implements Provider. deviceID is ignored; resolution is by model.
func (c *Catalog) Resolve(_ string, model string) (Capabilities, bool) {
	entry, ok := c.byModel[model]
	if !ok {
		return Capabilities{}, false
	}
	caps := Capabilities{
		HasRGB:        entry.HasRGB,
		HasWhite:      entry.HasWhite,
		HasBrightness: entry.HasBrightness,
	}
	if entry.MinColorTempK != nil && entry.MaxColorTempK != nil {
		caps.ColorTempRange = &ColorTempRange{MinKelvin: *entry.MinColorTempK, MaxKelvin: *entry.MaxColorTempK}
	}
	return caps, true
}
