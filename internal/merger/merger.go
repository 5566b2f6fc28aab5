// Package merger resolves which of possibly several DMX sources (ArtNet,
// sACN) currently owns a universe. Ported from the bridge's PriorityMerger:
// the highest-priority active source per universe wins; ties keep whichever
// source already held the win; sources that stop sending are evicted after
// Timeout.
package merger

import (
	"sync"
	"time"

	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/logging"
)

// Timeout is how long a source may go silent before it is evicted from a
// universe's active set, per the E1.31 source-loss recommendation.
const Timeout = 2500 * time.Millisecond

// Merger tracks, per universe, the set of currently active sources and
// decides which frame should be forwarded downstream.
type Merger struct {
	mu         sync.Mutex
	active     map[uint16]map[string]core.DmxFrame
	lastWinner map[uint16]string
	log        logging.Logger
}

// New creates an empty Merger.
func New(log logging.Logger) *Merger {
	if log == nil {
		log = logging.Noop()
	}
	return &Merger{
		active:     make(map[uint16]map[string]core.DmxFrame),
		lastWinner: make(map[uint16]string),
		log:        log,
	}
}

// Merge records frame as an active source for its universe and returns the
// winning frame plus true if frame itself is the current winner. It returns
// false if a higher-priority source currently owns the universe.
func (m *Merger) Merge(frame core.DmxFrame) (core.DmxFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Unix(0, frame.TimestampNanos)
	m.removeStaleLocked(frame.Universe, now)

	sources, ok := m.active[frame.Universe]
	if !ok {
		sources = make(map[string]core.DmxFrame)
		m.active[frame.Universe] = sources
	}
	sources[frame.SourceID] = frame

	winner := m.selectWinner(frame.Universe, frame, sources)

	if prev := m.lastWinner[frame.Universe]; prev != winner.SourceID {
		m.lastWinner[frame.Universe] = winner.SourceID
		m.log.Info("dmx source priority change", logging.Fields{
			"universe":       frame.Universe,
			"winner":         string(winner.SourceProtocol),
			"winnerPriority": winner.Priority,
			"sourceCount":    len(sources),
		})
	}

	if winner.SourceID == frame.SourceID {
		return winner, true
	}

	m.log.Debug("dmx frame rejected, lower priority", logging.Fields{
		"universe":        frame.Universe,
		"thisProtocol":    string(frame.SourceProtocol),
		"thisPriority":    frame.Priority,
		"winnerProtocol":  string(winner.SourceProtocol),
		"winnerPriority":  winner.Priority,
	})
	return core.DmxFrame{}, false
}

// selectWinner picks the highest-priority active source for a universe. On
// an exact priority tie it keeps the incumbent (the previous winner) rather
// than flapping to whichever source happened to be iterated last, per the
// merger's tie-keeps-incumbent rule.
func (m *Merger) selectWinner(universe uint16, frame core.DmxFrame, sources map[string]core.DmxFrame) core.DmxFrame {
	var maxPriority uint8
	first := true
	for _, f := range sources {
		if first || f.Priority > maxPriority {
			maxPriority = f.Priority
			first = false
		}
	}

	if incumbentID := m.lastWinner[universe]; incumbentID != "" {
		if incumbent, ok := sources[incumbentID]; ok && incumbent.Priority == maxPriority {
			return incumbent
		}
	}
	if frame.Priority == maxPriority {
		return frame
	}
	for _, f := range sources {
		if f.Priority == maxPriority {
			return f
		}
	}
	return frame
}

func (m *Merger) removeStaleLocked(universe uint16, now time.Time) {
	sources, ok := m.active[universe]
	if !ok {
		return
	}
	for sourceID, f := range sources {
		if now.Sub(time.Unix(0, f.TimestampNanos)) > Timeout {
			delete(sources, sourceID)
			m.log.Info("dmx source timed out", logging.Fields{
				"universe":       universe,
				"sourceProtocol": string(f.SourceProtocol),
				"sourceID":       sourceID,
			})
		}
	}
	if len(sources) == 0 {
		delete(m.active, universe)
		delete(m.lastWinner, universe)
	}
}

// ActiveSourceCount reports how many sources are currently active for a
// universe, mainly for diagnostics and tests.
func (m *Merger) ActiveSourceCount(universe uint16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active[universe])
}

// ActiveUniverses lists universes with at least one active source.
func (m *Merger) ActiveUniverses() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint16, 0, len(m.active))
	for u := range m.active {
		out = append(out, u)
	}
	return out
}
