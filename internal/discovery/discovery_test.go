package discovery

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	"github.com/lacylights-go/dmxbridge/internal/protocol/lifx"
	"github.com/lacylights-go/dmxbridge/internal/store"
)

type fakeStore struct {
	mu         sync.Mutex
	discovered []store.DiscoveryResult
}

func (f *fakeStore) Mappings(ctx context.Context) ([]store.MappingRecord, error) { return nil, nil }
func (f *fakeStore) ManualProbeTargets(ctx context.Context) ([]store.ManualProbeTarget, error) {
	return nil, nil
}
func (f *fakeStore) PollTargets(ctx context.Context) ([]store.PollTarget, error) { return nil, nil }
func (f *fakeStore) RecordDiscovery(ctx context.Context, result store.DiscoveryResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovered = append(f.discovered, result)
	return nil
}
func (f *fakeStore) RecordPollSuccess(ctx context.Context, deviceID string, state map[string]any) error {
	return nil
}
func (f *fakeStore) RecordPollFailure(ctx context.Context, deviceID string, offlineThreshold int) error {
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

func (f *fakeStore) results() []store.DiscoveryResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.DiscoveryResult, len(f.discovered))
	copy(out, f.discovered)
	return out
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	fs := &fakeStore{}
	reported := capability.NewReported()
	svc, err := New(fs, reported, Config{
		Interval:        time.Hour,
		ResponseTimeout: 150 * time.Millisecond,
		StaleAfter:      time.Hour,
	}, logging.Noop(), metrics.Noop())
	require.NoError(t, err)
	t.Cleanup(func() {
		svc.goveeConn.Close()
		svc.lifxConn.Close()
	})
	return svc, fs
}

func TestCollectGovee_DedupesDuplicateResponsesInOneCycle(t *testing.T) {
	svc, fs := newTestService(t)

	src, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer src.Close()

	goveeAddr := svc.goveeConn.LocalAddr().(*net.UDPAddr)
	dst := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: goveeAddr.Port}

	payload, err := json.Marshal(map[string]any{
		"msg": map[string]any{
			"cmd": "scan",
			"data": map[string]any{
				"ip":     "127.0.0.1",
				"device": "AA:BB",
				"sku":    "H6159",
			},
		},
	})
	require.NoError(t, err)

	src.WriteTo(payload, dst)
	src.WriteTo(payload, dst)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	svc.collectGovee(ctx)

	results := fs.results()
	require.Len(t, results, 1)
	require.Equal(t, "govee-AA:BB", results[0].DeviceID)
	require.Equal(t, "govee", results[0].Protocol)
}

func TestCollectLIFX_StateServiceRecordsAndPopulatesCapabilities(t *testing.T) {
	svc, fs := newTestService(t)

	src, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer src.Close()

	lifxAddr := svc.lifxConn.LocalAddr().(*net.UDPAddr)
	dst := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: lifxAddr.Port}

	frame := lifx.Encode(lifx.UnicastHeader(lifx.TypeStateService, 0, [8]byte{}), []byte{1, 0x98, 0xDD, 0, 0})
	src.WriteTo(frame, dst)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	svc.collectLIFX(ctx)

	results := fs.results()
	require.Len(t, results, 1)
	require.Equal(t, "lifx", results[0].Protocol)

	caps, ok := svc.reported.Resolve(results[0].DeviceID, "")
	require.True(t, ok)
	require.True(t, caps.HasRGB)
	require.True(t, caps.HasBrightness)
}
