package store

import (
	"context"
	"time"

	"github.com/lacylights-go/dmxbridge/internal/core"
)

// PollTarget is a device eligible for liveness polling.
type PollTarget struct {
	DeviceID string
	IP       string
	Protocol string
	Port     int
}

// ManualProbeTarget is a user-configured device the discovery service
// unicast-probes every cycle.
type ManualProbeTarget struct {
	DeviceID string
	IP       string
	Protocol string
}

// DiscoveryResult is what a discovery probe response folds into the store.
type DiscoveryResult struct {
	DeviceID     string
	Protocol     string
	IP           string
	Port         int
	Model        string
	Capabilities map[string]string
}

// DeviceStore is the persistence contract THE CORE consumes. All methods are
// safe for concurrent use; the reference implementation relies on SQLite's
// own locking (WAL mode with a busy timeout) to serialize writes.
type DeviceStore interface {
	Mappings(ctx context.Context) ([]MappingRecord, error)
	ManualProbeTargets(ctx context.Context) ([]ManualProbeTarget, error)
	PollTargets(ctx context.Context) ([]PollTarget, error)

	RecordDiscovery(ctx context.Context, result DiscoveryResult) error
	RecordPollSuccess(ctx context.Context, deviceID string, state map[string]any) error
	RecordPollFailure(ctx context.Context, deviceID string, offlineThreshold int) error

	EnqueueState(ctx context.Context, update core.DeviceStateUpdate) error
	PendingDeviceIDs(ctx context.Context) ([]string, error)
	PopNextFor(ctx context.Context, deviceID string) (*core.DeviceStateUpdate, error)

	MarkStale(ctx context.Context, olderThan time.Duration) error
	DeadLetter(ctx context.Context, deviceID string, payload core.DeviceCommand, reason string) error

	// GetDevice is not part of the spec's store contract text but is needed
	// by the sender/poller to resolve ip/enabled/offline before dispatch;
	// it is the natural read-side counterpart of RecordDiscovery.
	GetDevice(ctx context.Context, deviceID string) (*Device, error)
}

// ErrDeviceNotFound is returned by GetDevice when no such device exists.
var ErrDeviceNotFound = deviceNotFoundError{}

type deviceNotFoundError struct{}

func (deviceNotFoundError) Error() string { return "device not found" }
