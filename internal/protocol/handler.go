// Package protocol declares the per-vendor wire-protocol contract the sender
// and poller consume. It mirrors the original bridge's ProtocolHandler
// abstract base (protocol/base.py): a name, a default transport/port, a way
// to turn an abstract core.DeviceCommand into one or more wire messages, and
// an optional polling round-trip.
package protocol

import (
	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/core"
)

// Transport identifies the socket kind a handler's messages travel over.
type Transport string

const (
	TransportUDP Transport = "udp"
	TransportTCP Transport = "tcp"
)

// Handler adapts a core.DeviceCommand into wire messages for one vendor
// protocol, and optionally supports a poll round-trip for liveness/state
// refresh. Implementations must be safe for concurrent use; the sender and
// poller call into the same Handler instance from many goroutines.
type Handler interface {
	ProtocolName() string
	DefaultPort() int
	DefaultTransport() Transport

	// WrapCommand projects an abstract command into one or more ordered wire
	// messages. A Composite command yields more than one message; callers
	// must send them in the returned order with Handler-appropriate spacing.
	WrapCommand(cmd core.DeviceCommand) ([][]byte, error)

	SupportsPolling() bool
	// BuildPollRequest is only called when SupportsPolling is true.
	BuildPollRequest() ([]byte, error)
	// ParsePollResponse turns a raw poll response into a normalised state
	// map suitable for DeviceStore.RecordPollSuccess. A nil, nil result
	// means the response could not be parsed as a poll reply.
	ParsePollResponse(data []byte) (map[string]any, error)

	CapabilityProvider() capability.Provider
}
