package sacn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	sacnpkt "github.com/lacylights-go/dmxbridge/pkg/sacn"
	"github.com/stretchr/testify/require"
)

func TestListener_DecodesUnicastPacket(t *testing.T) {
	l, err := New(Options{Port: 0, Multicast: false}, logging.Noop(), metrics.Noop())
	require.NoError(t, err)
	defer l.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	data := make([]byte, 512)
	data[0] = 77
	raw := sacnpkt.Build(sacnpkt.BuildOptions{Universe: 3, Sequence: 5, Priority: 120, Data: data})

	sender, err := net.DialUDP("udp4", nil, l.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer sender.Close()
	_, err = sender.Write(raw)
	require.NoError(t, err)

	select {
	case frame := <-l.Frames:
		require.Equal(t, uint16(3), frame.Universe)
		require.Equal(t, uint8(5), frame.Sequence)
		require.Equal(t, core.SourceSACN, frame.SourceProtocol)
		require.EqualValues(t, 120, frame.Priority)
		require.Equal(t, byte(77), frame.Data[0])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded frame")
	}
}

func TestListener_IgnoresPreviewData(t *testing.T) {
	l, err := New(Options{Port: 0, Multicast: false}, logging.Noop(), metrics.Noop())
	require.NoError(t, err)
	defer l.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	raw := sacnpkt.Build(sacnpkt.BuildOptions{Universe: 1, Priority: 100, Data: make([]byte, 512), Preview: true})

	sender, err := net.DialUDP("udp4", nil, l.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer sender.Close()
	_, err = sender.Write(raw)
	require.NoError(t, err)

	select {
	case frame := <-l.Frames:
		t.Fatalf("expected no frame for preview data, got %+v", frame)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestListener_StopInterruptsRun(t *testing.T) {
	l, err := New(Options{Port: 0, Multicast: false}, logging.Noop(), metrics.Noop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		l.Run(context.Background())
		close(done)
	}()

	l.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
