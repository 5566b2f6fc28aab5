// Package sacn listens for sACN/E1.31 UDP packets, joining a multicast
// group per configured universe, and turns each valid data packet into a
// core.DmxFrame for the priority merger. Multicast group membership uses
// golang.org/x/net/ipv4, the same idiom the pack's other sACN receiver
// uses, since the standard library's net package cannot join more than one
// multicast group on a single socket.
package sacn

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"

	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	"github.com/lacylights-go/dmxbridge/pkg/sacn"
)

// Listener receives sACN DMX data packets and publishes decoded frames to
// Frames. It supports multicast (one group per universe, per E1.31 §9.3.2)
// or plain unicast reception on the same port.
type Listener struct {
	Frames chan core.DmxFrame

	packetConn *ipv4.PacketConn
	rawConn    net.PacketConn
	log        logging.Logger
	met        metrics.Metrics

	stopChan chan struct{}
	doneChan chan struct{}
}

// Options configures a Listener.
type Options struct {
	Port      int
	Multicast bool
	Universes []int  // only consulted when Multicast is true
	Iface     string // optional bind interface name for multicast joins
}

// New binds a UDP socket on port and, if requested, joins the multicast
// group for every configured universe.
func New(opts Options, log logging.Logger, met metrics.Metrics) (*Listener, error) {
	if log == nil {
		log = logging.Noop()
	}
	if met == nil {
		met = metrics.Noop()
	}

	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return nil, errors.Wrapf(err, "sacn: listen on port %d", opts.Port)
	}

	p := ipv4.NewPacketConn(conn)

	if opts.Multicast {
		var iface *net.Interface
		if opts.Iface != "" {
			iface, err = net.InterfaceByName(opts.Iface)
			if err != nil {
				conn.Close()
				return nil, errors.Wrapf(err, "sacn: interface %q", opts.Iface)
			}
		}
		for _, u := range opts.Universes {
			if u <= 0 || u > sacn.MaxUniverse {
				log.Warn("sacn: skipping invalid universe in multicast join list", logging.Fields{"universe": u})
				continue
			}
			group, err := sacn.MulticastAddress(uint16(u))
			if err != nil {
				conn.Close()
				return nil, err
			}
			if err := p.JoinGroup(iface, &net.UDPAddr{IP: net.ParseIP(group)}); err != nil {
				conn.Close()
				return nil, errors.Wrapf(err, "sacn: join group %s for universe %d", group, u)
			}
			log.Debug("sacn: joined multicast group", logging.Fields{"universe": u, "group": group})
		}
	}

	return &Listener{
		Frames:     make(chan core.DmxFrame, 64),
		packetConn: p,
		rawConn:    conn,
		log:        log,
		met:        met,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// Run reads packets until ctx is cancelled or Stop is called.
func (l *Listener) Run(ctx context.Context) {
	defer close(l.doneChan)

	go func() {
		select {
		case <-ctx.Done():
			l.rawConn.Close()
		case <-l.stopChan:
			l.rawConn.Close()
		}
	}()

	buf := make([]byte, 1144) // root+framing+DMP headers (126) + 512 channels, generously rounded
	for {
		n, _, addr, err := l.packetConn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			default:
				l.log.Warn("sacn: read error", logging.Fields{"error": err.Error()})
				return
			}
		}

		pkt, err := sacn.Parse(buf[:n])
		if err != nil {
			l.met.IncCounter("ingest_rejected", map[string]string{"protocol": "sacn"})
			l.log.Debug("sacn: dropped malformed packet", logging.Fields{"error": err.Error(), "src": addr})
			continue
		}

		if pkt.Preview {
			l.log.Debug("sacn: ignoring preview data", logging.Fields{"universe": pkt.Universe})
			continue
		}
		if pkt.StreamTerminated {
			// The source will time out naturally via the priority merger;
			// no frame is delivered.
			l.log.Info("sacn: stream terminated", logging.Fields{"universe": pkt.Universe, "source": pkt.SourceName})
			continue
		}

		sourceID := fmt.Sprintf("sacn-%x-u%d", pkt.CID[:4], pkt.Universe)
		frame, err := core.NewDmxFrame(pkt.Universe, pkt.Data[:], pkt.Sequence, core.SourceSACN, pkt.Priority, time.Now().UnixNano(), sourceID)
		if err != nil {
			l.met.IncCounter("ingest_rejected", map[string]string{"protocol": "sacn"})
			l.log.Warn("sacn: rejected decoded packet", logging.Fields{"error": err.Error()})
			continue
		}

		l.met.IncCounter("ingest_accepted", map[string]string{"protocol": "sacn"})
		select {
		case l.Frames <- frame:
		default:
			select {
			case <-l.Frames:
			default:
			}
			select {
			case l.Frames <- frame:
			default:
			}
			l.met.IncCounter("ingest_frame_dropped", map[string]string{"protocol": "sacn"})
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
	return l.rawConn.LocalAddr()
}
