// Package lifx implements protocol.Handler for LIFX's binary LAN protocol:
// a fixed 36-byte header followed by a message-type-specific payload, all
// little-endian. Header encode/decode mirrors the teacher's
// pkg/artnet/packet.go (encoding/binary field-by-field packing) applied to a
// second wire protocol.
package lifx

import (
	"encoding/binary"
	"fmt"
)

// Port is where every LIFX message (control, poll, discovery) is sent and
// received.
const Port = 56700

// sourceID tags outbound packets as originating from this bridge, per the
// protocol's source field (arbitrary, but stable helps filter echoes).
const sourceID uint32 = 0x4C494658 // "LIFX"

const (
	protocolVersion   uint16 = 1024
	headerSize               = 36
	flagAddressable   uint16 = 1 << 12
	flagTagged        uint16 = 1 << 13
	flagResRequired   uint8  = 1 << 0
	flagAckRequired   uint8  = 1 << 1
)

// Header is the fixed 36-byte frame header shared by every LIFX message.
type Header struct {
	Size        uint16
	Tagged      bool
	Source      uint32
	Target      [8]byte // 6-byte MAC + 2 zero bytes; zero means broadcast
	ResRequired bool
	AckRequired bool
	Sequence    uint8
	Type        uint16
}

// Encode serializes a header and payload into a complete wire frame.
func Encode(h Header, payload []byte) []byte {
	h.Size = uint16(headerSize + len(payload))
	buf := make([]byte, headerSize+len(payload))

	binary.LittleEndian.PutUint16(buf[0:2], h.Size)

	protoFlags := protocolVersion | flagAddressable
	if h.Tagged {
		protoFlags |= flagTagged
	}
	binary.LittleEndian.PutUint16(buf[2:4], protoFlags)

	binary.LittleEndian.PutUint32(buf[4:8], h.Source)
	copy(buf[8:16], h.Target[:])
	// buf[16:22] reserved, left zero

	var flags uint8
	if h.ResRequired {
		flags |= flagResRequired
	}
	if h.AckRequired {
		flags |= flagAckRequired
	}
	buf[22] = flags
	buf[23] = h.Sequence
	// buf[24:32] reserved, left zero

	binary.LittleEndian.PutUint16(buf[32:34], h.Type)
	// buf[34:36] reserved, left zero

	copy(buf[headerSize:], payload)
	return buf
}

// Decode parses a header and returns it plus the trailing payload slice.
func Decode(raw []byte) (Header, []byte, error) {
	if len(raw) < headerSize {
		return Header{}, nil, fmt.Errorf("lifx: packet too short: %d bytes", len(raw))
	}

	size := binary.LittleEndian.Uint16(raw[0:2])
	if int(size) > len(raw) {
		return Header{}, nil, fmt.Errorf("lifx: declared size %d exceeds received %d bytes", size, len(raw))
	}

	protoFlags := binary.LittleEndian.Uint16(raw[2:4])
	if protoFlags&0x0FFF != protocolVersion {
		return Header{}, nil, fmt.Errorf("lifx: unexpected protocol version %d", protoFlags&0x0FFF)
	}

	var h Header
	h.Size = size
	h.Tagged = protoFlags&flagTagged != 0
	h.Source = binary.LittleEndian.Uint32(raw[4:8])
	copy(h.Target[:], raw[8:16])
	flags := raw[22]
	h.ResRequired = flags&flagResRequired != 0
	h.AckRequired = flags&flagAckRequired != 0
	h.Sequence = raw[23]
	h.Type = binary.LittleEndian.Uint16(raw[32:34])

	return h, raw[headerSize:size], nil
}

// BroadcastHeader builds a tagged, zero-target header suitable for discovery
// probes sent to the LAN broadcast address.
func BroadcastHeader(msgType uint16, sequence uint8) Header {
	return Header{Tagged: true, Source: sourceID, Sequence: sequence, Type: msgType}
}

// UnicastHeader builds a header targeting a specific device MAC.
func UnicastHeader(msgType uint16, sequence uint8, target [8]byte) Header {
	return Header{Tagged: false, Source: sourceID, Target: target, Sequence: sequence, Type: msgType}
}
