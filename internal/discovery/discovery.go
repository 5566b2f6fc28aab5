// Package discovery runs the periodic device-discovery cycle: broadcast
// Govee and LIFX scans, collect responses for a short window, then mark
// stale devices. The cycle's ticker-plus-stopChan shape mirrors the
// teacher's dmx.Service.transmitLoop, generalised from a single transmit
// into a multi-step probe/sleep/mark-stale cycle (§4.6).
package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	"github.com/lacylights-go/dmxbridge/internal/protocol/govee"
	"github.com/lacylights-go/dmxbridge/internal/protocol/lifx"
	"github.com/lacylights-go/dmxbridge/internal/store"
)

// Config tunes the discovery cycle. Manual probe targets are not part of
// Config: they are user-configured devices read fresh from the store each
// cycle via ManualProbeTargets, so additions/removals take effect without a
// restart.
type Config struct {
	Interval        time.Duration
	ResponseTimeout time.Duration
	StaleAfter      time.Duration
}

// Service owns the discovery sockets and runs the periodic cycle.
type Service struct {
	st       store.DeviceStore
	reported *capability.Reported
	cfg      Config
	log      logging.Logger
	met      metrics.Metrics

	goveeConn net.PacketConn // bound to the Govee response port
	lifxConn  net.PacketConn // bound to the LIFX port, used for both send/recv

	stopChan chan struct{}
	doneChan chan struct{}
}

// New binds the discovery sockets. reported is populated with LIFX's fixed
// color-temp range as devices are discovered.
func New(st store.DeviceStore, reported *capability.Reported, cfg Config, log logging.Logger, met metrics.Metrics) (*Service, error) {
	if log == nil {
		log = logging.Noop()
	}
	if met == nil {
		met = metrics.Noop()
	}

	goveeConn, err := net.ListenPacket("udp4", ":"+strconv.Itoa(govee.ResponsePort))
	if err != nil {
		return nil, err
	}
	lifxConn, err := net.ListenPacket("udp4", ":"+strconv.Itoa(lifx.Port))
	if err != nil {
		goveeConn.Close()
		return nil, err
	}

	return &Service{
		st: st, reported: reported, cfg: cfg, log: log, met: met,
		goveeConn: goveeConn, lifxConn: lifxConn,
		stopChan: make(chan struct{}), doneChan: make(chan struct{}),
	}, nil
}

// Run loops the discovery cycle until ctx is cancelled or Stop is called.
func (s *Service) Run(ctx context.Context) {
	defer close(s.doneChan)

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stopChan:
		}
		s.goveeConn.Close()
		s.lifxConn.Close()
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Stop interrupts the discovery loop and waits for Run to return.
func (s *Service) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	<-s.doneChan
}

func (s *Service) runCycle(ctx context.Context) {
	s.sendGoveeScan()
	s.sendLIFXGetServiceBroadcast()
	s.sendManualProbes(ctx)

	collectCtx, cancel := context.WithTimeout(ctx, s.cfg.ResponseTimeout)
	defer cancel()
	s.collectResponses(collectCtx)

	if err := s.st.MarkStale(ctx, s.cfg.StaleAfter); err != nil {
		s.log.Warn("discovery: mark stale failed", logging.Fields{"error": err.Error()})
	}
}

func (s *Service) sendGoveeScan() {
	req, err := govee.BuildScanRequest()
	if err != nil {
		s.log.Warn("discovery: govee scan encode failed", logging.Fields{"error": err.Error()})
		return
	}
	dst := &net.UDPAddr{IP: net.ParseIP(govee.DiscoveryMulticastAddr), Port: govee.DiscoveryMulticastPort}
	if _, err := s.goveeConn.WriteTo(req, dst); err != nil {
		s.log.Warn("discovery: govee scan send failed", logging.Fields{"error": err.Error()})
	}
}

func (s *Service) sendLIFXGetServiceBroadcast() {
	req := lifx.BuildGetServiceBroadcast(0)
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: lifx.Port}
	if _, err := s.lifxConn.WriteTo(req, dst); err != nil {
		s.log.Warn("discovery: lifx broadcast failed", logging.Fields{"error": err.Error()})
	}
}

func (s *Service) sendManualProbes(ctx context.Context) {
	probes, err := s.st.ManualProbeTargets(ctx)
	if err != nil {
		s.log.Warn("discovery: failed to load manual probe targets", logging.Fields{"error": err.Error()})
		return
	}
	for _, probe := range probes {
		switch probe.Protocol {
		case "govee":
			req, err := govee.BuildScanRequest()
			if err != nil {
				continue
			}
			s.goveeConn.WriteTo(req, &net.UDPAddr{IP: net.ParseIP(probe.IP), Port: govee.DiscoveryMulticastPort})
		case "lifx":
			req := lifx.BuildGetServiceBroadcast(0)
			s.lifxConn.WriteTo(req, &net.UDPAddr{IP: net.ParseIP(probe.IP), Port: lifx.Port})
		}
	}
}

// collectResponses runs the Govee and LIFX collectors concurrently, each
// over its own dedup map (the two protocols never share a key namespace, so
// there is no need to share or synchronize a single map between them).
func (s *Service) collectResponses(ctx context.Context) {
	goveeDone := make(chan struct{})
	go func() {
		defer close(goveeDone)
		s.collectGovee(ctx)
	}()

	s.collectLIFX(ctx)
	<-goveeDone
}

func (s *Service) collectGovee(ctx context.Context) {
	seen := make(map[string]bool)
	buf := make([]byte, 2048)
	for {
		s.goveeConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := s.goveeConn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		resp, ok := govee.ParseScanResponse(buf[:n])
		if !ok {
			continue
		}
		key := "govee|" + resp.Device + "|" + resp.IP
		if seen[key] {
			continue
		}
		seen[key] = true

		ip := resp.IP
		if ip == "" {
			if udpAddr, ok := addr.(*net.UDPAddr); ok {
				ip = udpAddr.IP.String()
			}
		}
		s.record(ctx, store.DiscoveryResult{
			DeviceID: "govee-" + resp.Device,
			Protocol: "govee",
			IP:       ip,
			Port:     govee.ControlPort,
			Model:    resp.SKU,
		})
	}
}

func (s *Service) collectLIFX(ctx context.Context) {
	seen := make(map[string]bool)
	asked := make(map[string]bool)
	buf := make([]byte, 2048)
	for {
		s.lifxConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, addr, err := s.lifxConn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}

		msgType, ok := lifx.MessageType(buf[:n])
		if !ok {
			continue
		}

		switch msgType {
		case lifx.TypeStateService:
			ip := udpAddr.IP.String()
			deviceID := "lifx-" + ip
			key := "lifx|" + deviceID
			if seen[key] {
				continue
			}
			seen[key] = true

			s.reported.Set(deviceID, capability.Capabilities{HasRGB: true, HasBrightness: true, ColorTempRange: &capability.LIFXColorTempRange})
			s.record(ctx, store.DiscoveryResult{DeviceID: deviceID, Protocol: "lifx", IP: ip, Port: lifx.Port})

			askKey := deviceID + "|" + ip
			if !asked[askKey] {
				asked[askKey] = true
				s.lifxConn.WriteTo(lifx.BuildGetLabel(0), udpAddr)
				s.lifxConn.WriteTo(lifx.BuildGetVersion(0), udpAddr)
				s.lifxConn.WriteTo(lifx.BuildGetHostFirmware(0), udpAddr)
			}
		case lifx.TypeStateLabel:
			if label, ok := lifx.ParseStateLabel(buf[:n]); ok {
				s.log.Debug("discovery: lifx label", logging.Fields{"ip": udpAddr.IP.String(), "label": label})
			}
		}
	}
}

func (s *Service) record(ctx context.Context, result store.DiscoveryResult) {
	if err := s.st.RecordDiscovery(ctx, result); err != nil {
		s.log.Warn("discovery: record failed", logging.Fields{"device": result.DeviceID, "error": err.Error()})
		return
	}
	s.met.IncCounter("discovery_recorded", map[string]string{"protocol": result.Protocol})
}
