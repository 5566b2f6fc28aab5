// Package core holds the protocol-agnostic types shared by every stage of the
// bridge pipeline: the DMX frame produced by ingress, and the device command
// sum type consumed by protocol handlers.
package core

import (
	"fmt"
)

// DMXUniverseMax is the highest legal universe number (E1.31 §6.2.7).
const DMXUniverseMax = 63999

// DMXDataLength is the fixed channel count of a DMX universe.
const DMXDataLength = 512

// SourceProtocol identifies which wire protocol produced a DmxFrame.
type SourceProtocol string

const (
	SourceArtNet SourceProtocol = "artnet"
	SourceSACN   SourceProtocol = "sacn"
)

// DmxFrame is a protocol-agnostic snapshot of one universe from one source,
// produced by ingress and consumed by the priority merger and mapping engine.
// Once constructed via NewDmxFrame it is treated as immutable.
type DmxFrame struct {
	Universe       uint16
	Data           [DMXDataLength]byte
	Sequence       uint8
	SourceProtocol SourceProtocol
	Priority       uint8
	TimestampNanos int64 // monotonic clock reading at receipt
	SourceID       string
}

// NewDmxFrame validates and constructs a DmxFrame. data must be exactly
// DMXDataLength bytes; callers that receive a shorter payload must pad it
// first (ingress codecs do this).
func NewDmxFrame(universe uint16, data []byte, sequence uint8, proto SourceProtocol, priority uint8, timestampNanos int64, sourceID string) (DmxFrame, error) {
	if len(data) != DMXDataLength {
		return DmxFrame{}, fmt.Errorf("dmx frame must have exactly %d bytes, got %d", DMXDataLength, len(data))
	}
	if priority > 200 {
		return DmxFrame{}, fmt.Errorf("dmx priority must be 0-200, got %d", priority)
	}
	if universe > DMXUniverseMax {
		return DmxFrame{}, fmt.Errorf("dmx universe must be 0-%d, got %d", DMXUniverseMax, universe)
	}

	var f DmxFrame
	f.Universe = universe
	copy(f.Data[:], data)
	f.Sequence = sequence
	f.SourceProtocol = proto
	f.Priority = priority
	f.TimestampNanos = timestampNanos
	f.SourceID = sourceID
	return f, nil
}
