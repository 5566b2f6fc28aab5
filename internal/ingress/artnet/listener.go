// Package artnet listens for Art-Net (ArtDMX) UDP packets and turns each
// valid one into a core.DmxFrame for the priority merger. The socket
// ownership and stop-channel shutdown idiom mirrors the teacher's
// internal/services/dmx.Service.
package artnet

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	"github.com/lacylights-go/dmxbridge/pkg/artnet"
)

// FixedPriority is the priority assigned to every Art-Net frame; Art-Net
// carries no per-packet priority field, unlike sACN.
const FixedPriority = 50

// Listener receives Art-Net DMX packets on a UDP socket and publishes
// decoded frames to Frames.
type Listener struct {
	Frames chan core.DmxFrame

	conn *net.UDPConn
	log  logging.Logger
	met  metrics.Metrics

	stopChan chan struct{}
	doneChan chan struct{}
}

// New binds a UDP socket on port (0.0.0.0:port) and returns a Listener ready
// to Run. The socket is bound eagerly so callers can detect a port conflict
// before starting the bridge's other subsystems.
func New(port int, log logging.Logger, met metrics.Metrics) (*Listener, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "artnet: listen on port %d", port)
	}
	if met == nil {
		met = metrics.Noop()
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Listener{
		Frames:   make(chan core.DmxFrame, 64),
		conn:     conn,
		log:      log,
		met:      met,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Run reads packets until ctx is cancelled or Stop is called. It returns
// once the read loop has exited; the caller should launch it in its own
// goroutine.
func (l *Listener) Run(ctx context.Context) {
	defer close(l.doneChan)

	go func() {
		select {
		case <-ctx.Done():
			l.conn.Close()
		case <-l.stopChan:
			l.conn.Close()
		}
	}()

	buf := make([]byte, 2048)
	for {
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			default:
				l.log.Warn("artnet: read error", logging.Fields{"error": err.Error()})
				return
			}
		}

		pkt, err := artnet.ParseDMXPacket(buf[:n])
		if err != nil {
			l.met.IncCounter("ingest_rejected", map[string]string{"protocol": "artnet"})
			l.log.Debug("artnet: dropped malformed packet", logging.Fields{
				"error": err.Error(),
				"src":   src.String(),
			})
			continue
		}

		sourceID := fmt.Sprintf("artnet-%s:%d-u%d", src.IP.String(), src.Port, pkt.Universe)
		frame, err := core.NewDmxFrame(pkt.Universe, pkt.Data, pkt.Sequence, core.SourceArtNet, FixedPriority, time.Now().UnixNano(), sourceID)
		if err != nil {
			l.met.IncCounter("ingest_rejected", map[string]string{"protocol": "artnet"})
			l.log.Warn("artnet: rejected decoded packet", logging.Fields{"error": err.Error()})
			continue
		}

		l.met.IncCounter("ingest_accepted", map[string]string{"protocol": "artnet"})
		select {
		case l.Frames <- frame:
		default:
			// Drop-oldest backpressure: make room for the newest frame rather
			// than block the read loop on a slow mapping engine.
			select {
			case <-l.Frames:
			default:
			}
			select {
			case l.Frames <- frame:
			default:
			}
			l.met.IncCounter("ingest_frame_dropped", map[string]string{"protocol": "artnet"})
		}
	}
}

// Stop interrupts the read loop and waits for Run to return.
func (l *Listener) Stop() {
	select {
	case <-l.stopChan:
	default:
		close(l.stopChan)
	}
	<-l.doneChan
}

// LocalAddr returns the bound socket address, mainly for tests.
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}
