// Package sender dispatches queued device updates to the network: one
// lazily-spawned worker goroutine per device, each rate-limited and retried
// with exponential backoff, grounded on the teacher's per-resource-goroutine-
// with-stopChan idiom (dmx.Service, fade.Engine, playback.Service's
// per-cue-list timer maps). Retry/backoff has no teacher precedent; it is
// built directly from time.Duration arithmetic and math/rand jitter per
// §4.7/§7, the same "no extra dependency" posture the teacher itself takes
// (it never imports a backoff library either).
package sender

import (
	"context"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	"github.com/lacylights-go/dmxbridge/internal/protocol"
	"github.com/lacylights-go/dmxbridge/internal/ratelimit"
	"github.com/lacylights-go/dmxbridge/internal/store"
)

// Config holds the sender's rate/backoff/shutdown tuning, sourced from
// config.Config.
type Config struct {
	MaxSendRate            float64
	SendBurst               float64
	BackoffBase             time.Duration
	BackoffFactor           float64
	BackoffMax              time.Duration
	QueuePollInterval       time.Duration
	IdleWait                time.Duration
	MaxAttempts             int
	GraceDeadline           time.Duration
	MultipleCommandSpacing  time.Duration

	// DryRun, if set, drains the queue through a no-op transport: every
	// worker still pops, wraps and rate-limits commands, but nothing is
	// ever written to a socket.
	DryRun bool
}

// discardConn is the dry-run transport: writes succeed and vanish.
type discardConn struct{ net.Conn }

func (discardConn) Write(p []byte) (int, error) { return len(p), nil }
func (discardConn) Close() error                { return nil }

// Dispatcher owns one worker per device id, spawned on first Notify and
// reaped after IdleWait with no pending work.
type Dispatcher struct {
	store    store.DeviceStore
	handlers map[string]protocol.Handler
	cfg      Config
	log      logging.Logger
	met      metrics.Metrics

	mu      sync.Mutex
	workers map[string]*worker
	wg      sync.WaitGroup
	dialer  func(network, addr string) (net.Conn, error)

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Dispatcher. handlers maps a device's Protocol field (e.g.
// "govee", "lifx") to the protocol.Handler that wraps its commands.
func New(st store.DeviceStore, handlers map[string]protocol.Handler, cfg Config, log logging.Logger, met metrics.Metrics) *Dispatcher {
	if log == nil {
		log = logging.Noop()
	}
	if met == nil {
		met = metrics.Noop()
	}
	dialer := func(network, addr string) (net.Conn, error) {
		return net.Dial(network, addr)
	}
	if cfg.DryRun {
		dialer = func(network, addr string) (net.Conn, error) {
			return discardConn{}, nil
		}
	}
	return &Dispatcher{
		store:    st,
		handlers: handlers,
		cfg:      cfg,
		log:      log,
		met:      met,
		workers:  make(map[string]*worker),
		dialer:   dialer,
	}
}

// Start arms the dispatcher; ctx cancellation (or Stop) begins graceful
// shutdown of every worker.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
}

// Notify wakes (spawning if necessary) the worker for deviceID. Called after
// EnqueueState so the worker doesn't have to rely solely on its poll
// interval.
func (d *Dispatcher) Notify(deviceID string) {
	d.mu.Lock()
	w, ok := d.workers[deviceID]
	if !ok {
		w = newWorker(d, deviceID)
		d.workers[deviceID] = w
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			w.run()
			d.mu.Lock()
			delete(d.workers, deviceID)
			d.mu.Unlock()
		}()
	}
	d.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop cancels every worker and waits up to cfg.GraceDeadline for them to
// drain in-flight sends before returning.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d.cfg.GraceDeadline):
		d.log.Warn("sender: grace deadline exceeded, some workers still draining", nil)
	}
}

type worker struct {
	d        *Dispatcher
	deviceID string
	wake     chan struct{}
	bucket   *ratelimit.Bucket
}

func newWorker(d *Dispatcher, deviceID string) *worker {
	return &worker{
		d:        d,
		deviceID: deviceID,
		wake:     make(chan struct{}, 1),
		bucket:   ratelimit.New(d.cfg.MaxSendRate, d.cfg.SendBurst),
	}
}

func (w *worker) run() {
	idleTimer := time.NewTimer(w.d.cfg.IdleWait)
	defer idleTimer.Stop()

	for {
		update, err := w.d.store.PopNextFor(w.d.ctx, w.deviceID)
		if err != nil {
			w.d.log.Warn("sender: pop failed", logging.Fields{"device": w.deviceID, "error": err.Error()})
		}
		if update == nil {
			select {
			case <-w.d.ctx.Done():
				return
			case <-w.wake:
				continue
			case <-time.After(w.d.cfg.QueuePollInterval):
				continue
			case <-idleTimer.C:
				return // reaped: idle past IdleWait with nothing pending
			}
		}

		w.deliver(*update)
		if !idleTimer.Stop() {
			select {
			case <-idleTimer.C:
			default:
			}
		}
		idleTimer.Reset(w.d.cfg.IdleWait)
	}
}

func (w *worker) deliver(update core.DeviceStateUpdate) {
	device, err := w.d.store.GetDevice(w.d.ctx, update.DeviceID)
	if err != nil || device == nil {
		w.deadLetter(update, "device_unavailable")
		return
	}
	if !device.Enabled || device.Offline || device.IP == "" {
		reason := "device_unavailable"
		if device.IP == "" {
			reason = "missing_ip"
		}
		w.deadLetter(update, reason)
		return
	}

	handler, ok := w.d.handlers[device.Protocol]
	if !ok {
		w.deadLetter(update, "unsupported_protocol")
		return
	}

	messages, err := handler.WrapCommand(update.Payload)
	if err != nil {
		w.deadLetter(update, "encode_error")
		return
	}

	port := device.Port
	if port == 0 {
		port = handler.DefaultPort()
	}
	addr := net.JoinHostPort(device.IP, portString(port))

	var attempt int
	for {
		if w.d.ctx.Err() != nil {
			return
		}
		if wait := w.bucket.Wait(); wait > 0 {
			select {
			case <-time.After(wait):
			case <-w.d.ctx.Done():
				return
			}
		}

		if err := w.sendBatch(addr, messages); err == nil {
			w.d.met.IncCounter("send_success", map[string]string{"protocol": device.Protocol})
			return
		}

		attempt++
		if attempt >= w.d.cfg.MaxAttempts {
			w.d.met.IncCounter("send_failed", map[string]string{"protocol": device.Protocol})
			w.deadLetter(update, "send_failed_after_retries")
			return
		}

		delay := backoffDelay(w.d.cfg, attempt)
		w.d.log.Debug("sender: retrying after send failure", logging.Fields{
			"device": update.DeviceID, "attempt": attempt, "delay": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-w.d.ctx.Done():
			return
		}
	}
}

func (w *worker) sendBatch(addr string, messages [][]byte) error {
	conn, err := w.d.dialer("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	for i, msg := range messages {
		if _, err := conn.Write(msg); err != nil {
			return err
		}
		if i < len(messages)-1 {
			time.Sleep(w.d.cfg.MultipleCommandSpacing)
		}
	}
	return nil
}

func (w *worker) deadLetter(update core.DeviceStateUpdate, reason string) {
	if err := w.d.store.DeadLetter(w.d.ctx, update.DeviceID, update.Payload, reason); err != nil {
		w.d.log.Error("sender: failed to record dead letter", logging.Fields{"device": update.DeviceID, "error": err.Error()})
	}
	w.d.met.IncCounter("dead_letter", map[string]string{"reason": reason})
}

// backoffDelay implements §4.7's delay = min(backoffMax, base*factor^attempt)
// plus +/-10% jitter.
func backoffDelay(cfg Config, attempt int) time.Duration {
	d := float64(cfg.BackoffBase)
	for i := 0; i < attempt; i++ {
		d *= cfg.BackoffFactor
	}
	if max := float64(cfg.BackoffMax); d > max {
		d = max
	}
	jitter := 1 + (rand.Float64()*0.2 - 0.1)
	return time.Duration(d * jitter)
}

func portString(p int) string {
	return strconv.Itoa(p)
}
