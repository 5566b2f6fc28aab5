// Package poller runs the liveness-polling main loop: rotating-cursor batch
// selection over poll-eligible devices, concurrent token-bucket-paced polls
// fanned out with golang.org/x/sync/errgroup, and health-monitor-gated
// cooldown on repeated cycle failures (§4.8). The loop sleeps PollInterval
// between cycles with a context-aware time.After rather than a ticker.
package poller

import (
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lacylights-go/dmxbridge/internal/health"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	"github.com/lacylights-go/dmxbridge/internal/protocol"
	"github.com/lacylights-go/dmxbridge/internal/ratelimit"
	"github.com/lacylights-go/dmxbridge/internal/store"
)

const subsystemName = "poller"

// Config tunes the poll cycle, sourced from config.Config.
type Config struct {
	Enabled           bool
	Interval          time.Duration
	Timeout           time.Duration
	OfflineThreshold  int
	RatePerSecond     float64
	RateBurst         float64
	BatchSize         int
	FailureThreshold  int
	FailureCooldown   time.Duration
}

// Service runs the poll loop against every protocol.Handler that supports
// polling.
type Service struct {
	st       store.DeviceStore
	handlers map[string]protocol.Handler
	cfg      Config
	log      logging.Logger
	met      metrics.Metrics
	health   *health.Monitor
	bucket   *ratelimit.Bucket

	cursor int

	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a poll Service. handlers maps a device's Protocol field to the
// handler that builds/parses its poll traffic.
func New(st store.DeviceStore, handlers map[string]protocol.Handler, cfg Config, log logging.Logger, met metrics.Metrics) *Service {
	if log == nil {
		log = logging.Noop()
	}
	if met == nil {
		met = metrics.Noop()
	}
	return &Service{
		st:       st,
		handlers: handlers,
		cfg:      cfg,
		log:      log,
		met:      met,
		health:   health.New(cfg.FailureThreshold, cfg.FailureCooldown),
		bucket:   ratelimit.New(cfg.RatePerSecond, cfg.RateBurst),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Run loops the poll cycle until ctx is cancelled or Stop is called. A no-op
// if polling is disabled.
func (s *Service) Run(ctx context.Context) {
	defer close(s.doneChan)
	if !s.cfg.Enabled {
		return
	}

	for {
		if remaining := s.health.CooldownRemaining(subsystemName); remaining > 0 {
			if !s.sleep(ctx, remaining) {
				return
			}
			continue
		}

		if err := s.runCycle(ctx); err != nil {
			s.log.Warn("poller: cycle failed", logging.Fields{"error": err.Error()})
			s.health.RecordFailure(subsystemName)
		} else {
			s.health.RecordSuccess(subsystemName)
		}

		if !s.sleep(ctx, s.cfg.Interval) {
			return
		}
	}
}

// Stop interrupts the poll loop and waits for Run to return.
func (s *Service) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	<-s.doneChan
}

func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	targets, err := s.st.PollTargets(ctx)
	if err != nil {
		return err
	}
	targets = s.pollable(targets)
	if len(targets) == 0 {
		return nil
	}

	batch := s.nextBatch(targets)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, target := range batch {
		target := target
		group.Go(func() error {
			s.pollOne(groupCtx, target)
			return nil
		})
	}
	return group.Wait()
}

// pollable filters to targets whose protocol handler supports polling.
func (s *Service) pollable(targets []store.PollTarget) []store.PollTarget {
	out := make([]store.PollTarget, 0, len(targets))
	for _, t := range targets {
		if h, ok := s.handlers[t.Protocol]; ok && h.SupportsPolling() {
			out = append(out, t)
		}
	}
	return out
}

// nextBatch selects up to cfg.BatchSize targets starting at the rotating
// cursor, wrapping around so every device is eventually covered.
func (s *Service) nextBatch(targets []store.PollTarget) []store.PollTarget {
	n := len(targets)
	size := s.cfg.BatchSize
	if size <= 0 || size > n {
		size = n
	}

	batch := make([]store.PollTarget, 0, size)
	for i := 0; i < size; i++ {
		batch = append(batch, targets[(s.cursor+i)%n])
	}
	s.cursor = (s.cursor + size) % n
	return batch
}

func (s *Service) pollOne(ctx context.Context, target store.PollTarget) {
	if wait := s.bucket.Wait(); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}

	handler := s.handlers[target.Protocol]
	req, err := handler.BuildPollRequest()
	if err != nil {
		s.recordFailure(ctx, target)
		return
	}

	port := target.Port
	if port == 0 {
		port = handler.DefaultPort()
	}
	addr := net.JoinHostPort(target.IP, strconv.Itoa(port))

	conn, err := net.DialTimeout("udp", addr, s.cfg.Timeout)
	if err != nil {
		s.recordFailure(ctx, target)
		return
	}
	defer conn.Close()

	if _, err := conn.Write(req); err != nil {
		s.recordFailure(ctx, target)
		return
	}

	conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout))
	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		s.recordFailure(ctx, target)
		return
	}

	state, err := handler.ParsePollResponse(buf[:n])
	if err != nil || state == nil {
		s.recordFailure(ctx, target)
		return
	}

	if err := s.st.RecordPollSuccess(ctx, target.DeviceID, state); err != nil {
		s.log.Warn("poller: record success failed", logging.Fields{"device": target.DeviceID, "error": err.Error()})
		return
	}
	s.met.IncCounter("poll_success", map[string]string{"protocol": target.Protocol})
}

func (s *Service) recordFailure(ctx context.Context, target store.PollTarget) {
	if err := s.st.RecordPollFailure(ctx, target.DeviceID, s.cfg.OfflineThreshold); err != nil {
		s.log.Warn("poller: record failure failed", logging.Fields{"device": target.DeviceID, "error": err.Error()})
	}
	s.met.IncCounter("poll_failure", map[string]string{"protocol": target.Protocol})
}
