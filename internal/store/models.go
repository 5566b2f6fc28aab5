package store

import "time"

// Device is a runtime record for a network lighting device: either
// user-created (manual) or surfaced by discovery. The core only mutates
// runtime fields (Enabled is user-owned and survives rediscovery); model
// metadata (capabilities) is populated by discovery/catalog lookup.
type Device struct {
	ID         string `gorm:"primaryKey"`
	Protocol   string `gorm:"index"`
	IP         string
	Port       int
	Model      string
	Manual     bool
	Discovered bool
	Configured bool // sticky: true once a user has ever edited this device
	Enabled    bool

	Capabilities string `gorm:"type:text"` // JSON-encoded capability map

	FirstSeen time.Time
	LastSeen  time.Time

	Offline          bool
	PollFailureCount int
	PollLastSuccess  *time.Time
	PollLastFailure  *time.Time
	PollState        string `gorm:"type:text"` // JSON-encoded normalised poll state

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MappingRecord is a user-authored DMX-channel-to-device mapping.
type MappingRecord struct {
	ID           string `gorm:"primaryKey"`
	DeviceID     string `gorm:"index"`
	Universe     uint16 `gorm:"index"`
	Channel      int    // 1-based
	Length       int
	MappingType  string // "range" | "discrete"
	Field        string // r,g,b,w,dimmer,brightness,kelvin (discrete only)
	Template     string // rgb, rgbw, brightness_rgb, master_only, rgbwa, rgbaw, brightness, temperature
	AllowOverlap bool
	Order        string // JSON array of field order, e.g. ["r","g","b"]
	Gamma        float64
	Dimmer       float64
	WhitePolicy  string // "gamma" | "passthrough"

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PendingUpdate is a queued device update awaiting the sender.
type PendingUpdate struct {
	ID        string `gorm:"primaryKey"`
	DeviceID  string `gorm:"index"`
	Payload   CommandColumn `gorm:"type:text"`
	ContextID string
	CreatedAt time.Time
}

// DeadLetter is an update the sender gave up delivering.
type DeadLetter struct {
	ID        string `gorm:"primaryKey"`
	DeviceID  string `gorm:"index"`
	Payload   CommandColumn `gorm:"type:text"`
	Reason    string
	Attempts  int
	FirstSeen time.Time
	CreatedAt time.Time
}
