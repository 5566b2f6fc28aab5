package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	"github.com/lacylights-go/dmxbridge/internal/protocol"
	"github.com/lacylights-go/dmxbridge/internal/store"
)

type fakeStore struct {
	targets      []store.PollTarget
	successes    map[string]int
	failures     map[string]int
	failThreshold map[string]int
}

func (f *fakeStore) Mappings(ctx context.Context) ([]store.MappingRecord, error) { return nil, nil }
func (f *fakeStore) ManualProbeTargets(ctx context.Context) ([]store.ManualProbeTarget, error) {
	return nil, nil
}
func (f *fakeStore) PollTargets(ctx context.Context) ([]store.PollTarget, error) {
	return f.targets, nil
}
func (f *fakeStore) RecordDiscovery(ctx context.Context, result store.DiscoveryResult) error {
	return nil
}
func (f *fakeStore) RecordPollSuccess(ctx context.Context, deviceID string, state map[string]any) error {
	f.successes[deviceID]++
	return nil
}
func (f *fakeStore) RecordPollFailure(ctx context.Context, deviceID string, offlineThreshold int) error {
	f.failures[deviceID]++
	f.failThreshold[deviceID] = offlineThreshold
	return nil
}
func (f *fakeStore) EnqueueState(ctx context.Context, update core.DeviceStateUpdate) error { return nil }
func (f *fakeStore) PendingDeviceIDs(ctx context.Context) ([]string, error)               { return nil, nil }
func (f *fakeStore) PopNextFor(ctx context.Context, deviceID string) (*core.DeviceStateUpdate, error) {
	return nil, nil
}
func (f *fakeStore) MarkStale(ctx context.Context, olderThan time.Duration) error { return nil }
func (f *fakeStore) DeadLetter(ctx context.Context, deviceID string, payload core.DeviceCommand, reason string) error {
	return nil
}
func (f *fakeStore) GetDevice(ctx context.Context, deviceID string) (*store.Device, error) {
	return nil, nil
}

type unreachableHandler struct{}

func (unreachableHandler) ProtocolName() string                { return "fake" }
func (unreachableHandler) DefaultPort() int                     { return 9 } // discard port, never responds
func (unreachableHandler) DefaultTransport() protocol.Transport { return protocol.TransportUDP }
func (unreachableHandler) WrapCommand(core.DeviceCommand) ([][]byte, error) {
	return nil, nil
}
func (unreachableHandler) SupportsPolling() bool            { return true }
func (unreachableHandler) BuildPollRequest() ([]byte, error) { return []byte("poll"), nil }
func (unreachableHandler) ParsePollResponse([]byte) (map[string]any, error) {
	return nil, nil
}
func (unreachableHandler) CapabilityProvider() capability.Provider { return nil }

func baseConfig() Config {
	return Config{
		Enabled:          true,
		Interval:         5 * time.Millisecond,
		Timeout:          30 * time.Millisecond,
		OfflineThreshold: 2,
		RatePerSecond:    100,
		RateBurst:        100,
		BatchSize:        10,
		FailureThreshold: 5,
		FailureCooldown:  time.Second,
	}
}

func TestNextBatch_RotatesCursorAcrossCycles(t *testing.T) {
	fs := &fakeStore{
		targets: []store.PollTarget{
			{DeviceID: "a"}, {DeviceID: "b"}, {DeviceID: "c"},
		},
		successes: map[string]int{}, failures: map[string]int{}, failThreshold: map[string]int{},
	}
	cfg := baseConfig()
	cfg.BatchSize = 2
	s := New(fs, nil, cfg, logging.Noop(), metrics.Noop())

	first := s.nextBatch(fs.targets)
	require.Equal(t, []string{"a", "b"}, ids(first))

	second := s.nextBatch(fs.targets)
	require.Equal(t, []string{"c", "a"}, ids(second))
}

func ids(targets []store.PollTarget) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.DeviceID
	}
	return out
}

func TestPollOne_RecordsFailureOnTimeout(t *testing.T) {
	fs := &fakeStore{successes: map[string]int{}, failures: map[string]int{}, failThreshold: map[string]int{}}
	cfg := baseConfig()
	cfg.Timeout = 20 * time.Millisecond
	s := New(fs, map[string]protocol.Handler{"fake": unreachableHandler{}}, cfg, logging.Noop(), metrics.Noop())

	target := store.PollTarget{DeviceID: "dev-X", Protocol: "fake", IP: "127.0.0.1", Port: 1}
	s.pollOne(context.Background(), target)

	require.Equal(t, 1, fs.failures["dev-X"])
	require.Equal(t, 2, fs.failThreshold["dev-X"])
}
