package mapping

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/eventbus"
	"github.com/lacylights-go/dmxbridge/internal/logging"
	"github.com/lacylights-go/dmxbridge/internal/merger"
	"github.com/lacylights-go/dmxbridge/internal/metrics"
	"github.com/lacylights-go/dmxbridge/internal/store"
)

// compiledMapping is one validated MappingRecord ready to be applied. The
// color-temp range is resolved once at reload time (not per frame) since it
// requires a capability lookup keyed by the device's model.
type compiledMapping struct {
	deviceID       string
	channel        int // 1-based
	length         int
	spec           Spec
	colorTempRange *capability.ColorTempRange
}

// snapshot is the immutable, atomically-swapped compiled mapping set.
type snapshot struct {
	byUniverse map[uint16][]compiledMapping
}

// Engine turns winning DMX frames into debounced, deduplicated device state
// updates enqueued into the store.
type Engine struct {
	store  store.DeviceStore
	merger *merger.Merger
	caps   capability.Provider
	log    logging.Logger
	met    metrics.Metrics

	debounceSeconds        time.Duration
	traceContextIDs        bool
	traceContextSampleRate float64

	snap atomic.Pointer[snapshot]

	mu             sync.Mutex
	lastPayload    map[string]core.DeviceCommand
	pending        map[string]core.DeviceStateUpdate
	debounceTimers map[string]*time.Timer

	unsubscribes []eventbus.Unsubscribe

	// OnEnqueued, if set, is called after a debounced update is flushed into
	// the store, so the sender dispatcher can wake the device's worker
	// instead of waiting for its queue-poll interval.
	OnEnqueued func(deviceID string)
}

// Config configures an Engine.
type Config struct {
	DebounceSeconds        time.Duration
	TraceContextIDs        bool
	TraceContextSampleRate float64
}

// New constructs an Engine. Call Start to load mappings and subscribe to
// reload events.
func New(st store.DeviceStore, m *merger.Merger, caps capability.Provider, cfg Config, log logging.Logger, met metrics.Metrics) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	if met == nil {
		met = metrics.Noop()
	}
	return &Engine{
		store:                  st,
		merger:                 m,
		caps:                   caps,
		log:                    log,
		met:                    met,
		debounceSeconds:        cfg.DebounceSeconds,
		traceContextIDs:        cfg.TraceContextIDs,
		traceContextSampleRate: cfg.TraceContextSampleRate,
		lastPayload:            make(map[string]core.DeviceCommand),
		pending:                make(map[string]core.DeviceStateUpdate),
		debounceTimers:         make(map[string]*time.Timer),
	}
}

// Start loads mappings from the store and, if bus is non-nil, subscribes to
// mapping change events for automatic reload.
func (e *Engine) Start(ctx context.Context, bus *eventbus.Bus) error {
	if err := e.Reload(ctx); err != nil {
		return err
	}
	if bus != nil {
		for _, evt := range []eventbus.EventType{eventbus.EventMappingCreated, eventbus.EventMappingUpdated, eventbus.EventMappingDeleted} {
			unsub := bus.Subscribe(evt, func(eventbus.Event) {
				if err := e.Reload(context.Background()); err != nil {
					e.log.Warn("mapping: reload after event failed", logging.Fields{"error": err.Error()})
				}
			})
			e.unsubscribes = append(e.unsubscribes, unsub)
		}
	}
	return nil
}

// Stop unsubscribes from reload events and flushes any pending updates.
func (e *Engine) Stop(ctx context.Context) {
	for _, unsub := range e.unsubscribes {
		unsub()
	}
	e.unsubscribes = nil
	e.flushPending(ctx)
}

// Reload rebuilds the compiled mapping snapshot from the store, skipping
// and logging invalid records rather than aborting.
func (e *Engine) Reload(ctx context.Context) error {
	records, err := e.store.Mappings(ctx)
	if err != nil {
		return err
	}

	overlapRejected := rejectOverlaps(records)

	byUniverse := make(map[uint16][]compiledMapping)
	for _, rec := range records {
		if rec.Channel <= 0 || rec.Length <= 0 {
			e.log.Warn("mapping: skipping, invalid channel or length", logging.Fields{
				"deviceId": rec.DeviceID, "universe": rec.Universe, "channel": rec.Channel, "length": rec.Length,
			})
			continue
		}

		if overlapRejected[rec.ID] {
			e.log.Warn("mapping: skipping, overlaps another mapping without allowOverlap", logging.Fields{
				"deviceId": rec.DeviceID, "universe": rec.Universe, "channel": rec.Channel, "length": rec.Length,
			})
			continue
		}

		spec, err := buildSpec(rec)
		if err != nil {
			e.log.Warn("mapping: skipping, invalid spec", logging.Fields{
				"deviceId": rec.DeviceID, "universe": rec.Universe, "error": err.Error(),
			})
			continue
		}

		if rec.Length < spec.RequiredChannels {
			e.log.Warn("mapping: skipping, insufficient length for required channels", logging.Fields{
				"deviceId": rec.DeviceID, "universe": rec.Universe, "length": rec.Length, "required": spec.RequiredChannels,
			})
			continue
		}

		byUniverse[rec.Universe] = append(byUniverse[rec.Universe], compiledMapping{
			deviceID:       rec.DeviceID,
			channel:        rec.Channel,
			length:         rec.Length,
			spec:           spec,
			colorTempRange: e.resolveColorTempRange(ctx, rec.DeviceID),
		})
	}

	e.snap.Store(&snapshot{byUniverse: byUniverse})
	e.log.Info("mapping: reloaded", logging.Fields{"universes": len(byUniverse), "records": len(records)})
	return nil
}

// rejectOverlaps finds every pair of mapping records in the same universe
// whose channel ranges intersect and, unless both sides set AllowOverlap,
// marks both as rejected. Records that Reload skips as invalid (bad
// channel/length, invalid spec, insufficient length) take no part in the
// check, so they cannot knock out a valid mapping.
func rejectOverlaps(records []store.MappingRecord) map[string]bool {
	byUniverse := make(map[uint16][]store.MappingRecord)
	for _, rec := range records {
		if rec.Channel <= 0 || rec.Length <= 0 {
			continue
		}
		if spec, err := buildSpec(rec); err != nil || rec.Length < spec.RequiredChannels {
			continue
		}
		byUniverse[rec.Universe] = append(byUniverse[rec.Universe], rec)
	}

	rejected := make(map[string]bool)
	for _, recs := range byUniverse {
		for i := 0; i < len(recs); i++ {
			for j := i + 1; j < len(recs); j++ {
				a, b := recs[i], recs[j]
				if !rangesOverlap(a.Channel, a.Length, b.Channel, b.Length) {
					continue
				}
				if a.AllowOverlap && b.AllowOverlap {
					continue
				}
				rejected[a.ID] = true
				rejected[b.ID] = true
			}
		}
	}
	return rejected
}

func rangesOverlap(channelA, lengthA, channelB, lengthB int) bool {
	startA, endA := channelA, channelA+lengthA
	startB, endB := channelB, channelB+lengthB
	return startA < endB && startB < endA
}

func (e *Engine) resolveColorTempRange(ctx context.Context, deviceID string) *capability.ColorTempRange {
	if e.caps == nil {
		return nil
	}
	dev, err := e.store.GetDevice(ctx, deviceID)
	if err != nil || dev == nil {
		return nil
	}
	caps, ok := e.caps.Resolve(deviceID, dev.Model)
	if !ok {
		return nil
	}
	return caps.ColorTempRange
}

// ProcessFrame merges frame via the priority merger, and if it wins, applies
// the compiled mapping for its universe and schedules the resulting device
// updates for debounced delivery.
func (e *Engine) ProcessFrame(ctx context.Context, frame core.DmxFrame) {
	winner, won := e.merger.Merge(frame)
	if !won {
		return
	}

	snap := e.snap.Load()
	if snap == nil {
		return
	}
	mappings, ok := snap.byUniverse[winner.Universe]
	if !ok {
		return
	}

	var contextID string
	if e.traceContextIDs && sampleHit(e.traceContextSampleRate) {
		contextID = fmt.Sprintf("dmx-%s-%d-%d-%s", winner.SourceProtocol, winner.Universe, winner.Sequence, uuid.New().String())
	}

	for _, m := range mappings {
		update, ok := e.apply(m, winner.Data[:], contextID)
		if !ok {
			continue
		}
		e.scheduleUpdate(update)
	}
}

func (e *Engine) apply(m compiledMapping, data []byte, contextID string) (core.DeviceStateUpdate, bool) {
	start := m.channel - 1
	end := start + m.length
	if start < 0 || end > len(data) {
		return core.DeviceStateUpdate{}, false
	}
	slice := data[start:end]

	values := make(map[Field]uint8, len(m.spec.Fields))
	for i, f := range m.spec.Fields {
		raw := slice[i]
		if isColorField(f) || (f == FieldW && m.spec.WhitePolicy == WhitePolicyGamma) {
			values[f] = shape(raw, m.spec.Gamma, m.spec.Dimmer)
		} else {
			values[f] = raw
		}
	}

	payload := buildPayload(values, m.colorTempRange)
	if payload == nil {
		return core.DeviceStateUpdate{}, false
	}

	return core.DeviceStateUpdate{DeviceID: m.deviceID, Payload: payload, ContextID: contextID}, true
}

func isColorField(f Field) bool {
	switch f {
	case FieldR, FieldG, FieldB, FieldA:
		return true
	default:
		return false
	}
}

// shape applies v' = round(dimmer * 255 * (v/255)^gamma).
func shape(v uint8, gamma, dimmer float64) uint8 {
	norm := float64(v) / 255.0
	shaped := dimmer * 255.0 * math.Pow(norm, gamma)
	if shaped < 0 {
		shaped = 0
	}
	if shaped > 255 {
		shaped = 255
	}
	return uint8(math.Round(shaped))
}

func sampleHit(rate float64) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}
	return rand.Float64() <= rate
}

func (e *Engine) scheduleUpdate(update core.DeviceStateUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, ok := e.lastPayload[update.DeviceID]; ok && core.EqualDeviceCommand(prev, update.Payload) {
		return
	}
	e.lastPayload[update.DeviceID] = update.Payload
	e.pending[update.DeviceID] = update
	e.met.IncCounter("dmx_update_scheduled", map[string]string{"deviceId": update.DeviceID})

	if t, exists := e.debounceTimers[update.DeviceID]; exists {
		t.Reset(e.debounceSeconds)
		return
	}
	deviceID := update.DeviceID
	e.debounceTimers[deviceID] = time.AfterFunc(e.debounceSeconds, func() {
		e.flushOne(context.Background(), deviceID)
	})
}

func (e *Engine) flushOne(ctx context.Context, deviceID string) {
	e.mu.Lock()
	update, ok := e.pending[deviceID]
	if ok {
		delete(e.pending, deviceID)
	}
	delete(e.debounceTimers, deviceID)
	e.mu.Unlock()

	if !ok {
		return
	}
	if err := e.store.EnqueueState(ctx, update); err != nil {
		e.log.Warn("mapping: failed to enqueue device update", logging.Fields{"deviceId": deviceID, "error": err.Error()})
		return
	}
	if e.OnEnqueued != nil {
		e.OnEnqueued(deviceID)
	}
}

func (e *Engine) flushPending(ctx context.Context) {
	e.mu.Lock()
	timers := e.debounceTimers
	e.debounceTimers = make(map[string]*time.Timer)
	pending := e.pending
	e.pending = make(map[string]core.DeviceStateUpdate)
	e.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
	for deviceID, update := range pending {
		if err := e.store.EnqueueState(ctx, update); err != nil {
			e.log.Warn("mapping: failed to flush pending update", logging.Fields{"deviceId": deviceID, "error": err.Error()})
			continue
		}
		if e.OnEnqueued != nil {
			e.OnEnqueued(deviceID)
		}
	}
}
