// Package health implements the per-subsystem failure-cooldown circuit
// breaker §4.8 refers to ("check health monitor: if the poller subsystem is
// in cooldown..."). It generalises the teacher's playback.Service pattern of
// a small mutex-guarded counter map (there used for active-fade bookkeeping)
// to a trip/reset/cooldown state machine.
package health

import (
	"sync"
	"time"
)

// Monitor tracks consecutive failures per named subsystem and trips a
// cooldown once a threshold is reached.
type Monitor struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  map[string]int
	cooldownUntil map[string]time.Time
	now       func() time.Time
}

// New creates a Monitor that trips after threshold consecutive failures and
// stays tripped for cooldown.
func New(threshold int, cooldown time.Duration) *Monitor {
	return &Monitor{
		threshold:     threshold,
		cooldown:      cooldown,
		failures:      make(map[string]int),
		cooldownUntil: make(map[string]time.Time),
		now:           time.Now,
	}
}

// RecordSuccess resets a subsystem's failure count.
func (m *Monitor) RecordSuccess(subsystem string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[subsystem] = 0
}

// RecordFailure increments a subsystem's failure count and trips its
// cooldown once the threshold is reached.
func (m *Monitor) RecordFailure(subsystem string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[subsystem]++
	if m.failures[subsystem] >= m.threshold {
		m.cooldownUntil[subsystem] = m.now().Add(m.cooldown)
	}
}

// CooldownRemaining reports how much longer subsystem must wait before
// resuming, or zero if it isn't tripped.
func (m *Monitor) CooldownRemaining(subsystem string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.cooldownUntil[subsystem]
	if !ok {
		return 0
	}
	remaining := until.Sub(m.now())
	if remaining <= 0 {
		delete(m.cooldownUntil, subsystem)
		m.failures[subsystem] = 0
		return 0
	}
	return remaining
}
