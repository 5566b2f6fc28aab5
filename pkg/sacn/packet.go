// Package sacn provides sACN/E1.31 (Streaming ACN) packet parsing, per
// ANSI E1.31-2018. It decodes the root/framing/DMP layer envelope down to
// the DMX payload; it does not implement a transmitter, since the bridge
// only ever receives sACN.
package sacn

import (
	"encoding/binary"
	"fmt"
)

const (
	// DefaultPort is the standard E1.31 UDP port.
	DefaultPort = 5568

	// MinPriority and MaxPriority bound the E1.31 Priority field.
	MinPriority = 0
	MaxPriority = 200
	// DefaultPriority is substituted for any out-of-range Priority byte.
	DefaultPriority = 100

	// MaxUniverse is the highest legal universe number.
	MaxUniverse = 63999

	// DMXDataLength is the fixed channel count of a decoded universe.
	DMXDataLength = 512

	vectorRootE131Data    = 0x00000004
	vectorE131DataPacket  = 0x00000002
	vectorDMPSetProperty  = 0x02
	preambleSize          = 0x0010
	postambleSize         = 0x0000
	minPacketSize         = 126
)

// acnPacketIdentifier is the fixed 12-byte ACN root layer identifier.
var acnPacketIdentifier = []byte("ASC-E1.17\x00\x00\x00")

// Packet is a decoded sACN/E1.31 data packet.
type Packet struct {
	Universe          uint16
	Sequence          uint8
	Priority          uint8
	Data              [DMXDataLength]byte
	SourceName        string
	CID               [16]byte
	SyncAddress       uint16
	Preview           bool
	StreamTerminated  bool
}

// Parse decodes an E1.31 data packet. It returns an error for any
// structural violation or unsupported vector; callers must drop the packet
// and increment a rejection metric rather than propagate the error.
func Parse(raw []byte) (Packet, error) {
	if len(raw) < minPacketSize {
		return Packet{}, fmt.Errorf("sacn: packet too short (%d bytes)", len(raw))
	}

	off := 0
	readU16 := func() uint16 { v := binary.BigEndian.Uint16(raw[off : off+2]); off += 2; return v }
	readU32 := func() uint32 { v := binary.BigEndian.Uint32(raw[off : off+4]); off += 4; return v }
	readU8 := func() uint8 { v := raw[off]; off++; return v }

	// Root layer.
	if p := readU16(); p != preambleSize {
		return Packet{}, fmt.Errorf("sacn: bad preamble size 0x%04x", p)
	}
	if p := readU16(); p != postambleSize {
		return Packet{}, fmt.Errorf("sacn: bad postamble size 0x%04x", p)
	}
	if string(raw[off:off+12]) != string(acnPacketIdentifier) {
		return Packet{}, fmt.Errorf("sacn: bad ACN packet identifier")
	}
	off += 12
	readU16() // root flags+length, unused
	if v := readU32(); v != vectorRootE131Data {
		return Packet{}, fmt.Errorf("sacn: unsupported root vector 0x%08x", v)
	}
	var cid [16]byte
	copy(cid[:], raw[off:off+16])
	off += 16

	// Framing layer.
	readU16() // framing flags+length, unused
	if v := readU32(); v != vectorE131DataPacket {
		return Packet{}, fmt.Errorf("sacn: unsupported framing vector 0x%08x", v)
	}
	nameBytes := raw[off : off+64]
	off += 64
	sourceName := decodeSourceName(nameBytes)

	priority := readU8()
	if priority < MinPriority || priority > MaxPriority {
		priority = DefaultPriority
	}

	syncAddress := readU16()
	sequence := readU8()

	options := readU8()
	preview := options&0x80 != 0
	terminated := options&0x40 != 0

	universe := readU16()
	if universe == 0 || universe > MaxUniverse {
		return Packet{}, fmt.Errorf("sacn: invalid universe %d", universe)
	}

	// DMP layer.
	flagsLength := readU16()
	dmpLength := flagsLength & 0x0FFF
	_ = dmpLength
	if v := readU8(); v != vectorDMPSetProperty {
		return Packet{}, fmt.Errorf("sacn: unsupported DMP vector 0x%02x", v)
	}
	off++ // address type & data type, unused

	if v := readU16(); v != 0 {
		return Packet{}, fmt.Errorf("sacn: unexpected DMP first address %d", v)
	}
	if v := readU16(); v != 1 {
		return Packet{}, fmt.Errorf("sacn: unexpected DMP address increment %d", v)
	}

	propertyCount := int(readU16())
	channelCount := propertyCount - 1
	if channelCount < 0 || channelCount > DMXDataLength {
		return Packet{}, fmt.Errorf("sacn: invalid dmx channel count %d", channelCount)
	}

	if off >= len(raw) {
		return Packet{}, fmt.Errorf("sacn: truncated packet before start code")
	}
	startCode := readU8()
	if startCode != 0x00 {
		return Packet{}, fmt.Errorf("sacn: unsupported START code 0x%02x", startCode)
	}

	if len(raw) < off+channelCount {
		return Packet{}, fmt.Errorf("sacn: truncated dmx data, want %d bytes got %d", channelCount, len(raw)-off)
	}

	var data [DMXDataLength]byte
	copy(data[:], raw[off:off+channelCount])

	return Packet{
		Universe:         universe,
		Sequence:         sequence,
		Priority:         priority,
		Data:             data,
		SourceName:       sourceName,
		CID:              cid,
		SyncAddress:      syncAddress,
		Preview:          preview,
		StreamTerminated: terminated,
	}, nil
}

func decodeSourceName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// BuildOptions configures Build for constructing test fixtures and, in
// principle, a future transmitter.
type BuildOptions struct {
	Universe   uint16
	Sequence   uint8
	Priority   uint8
	SourceName string
	CID        [16]byte
	Data       []byte // up to DMXDataLength bytes; zero-padded
	Preview    bool
	Terminated bool
}

// Build encodes an E1.31 data packet. It is the inverse of Parse and exists
// primarily to construct realistic fixtures in tests.
func Build(opts BuildOptions) []byte {
	data := make([]byte, DMXDataLength)
	copy(data, opts.Data)

	buf := make([]byte, 0, minPacketSize+DMXDataLength)
	put16 := func(v uint16) { buf = binary.BigEndian.AppendUint16(buf, v) }
	put32 := func(v uint32) { buf = binary.BigEndian.AppendUint32(buf, v) }

	put16(preambleSize)
	put16(postambleSize)
	buf = append(buf, acnPacketIdentifier...)
	put16(0x7000 | uint16(38+len(acnPacketIdentifier)+len(data))) // flags+length, approximate
	put32(vectorRootE131Data)
	buf = append(buf, opts.CID[:]...)

	put16(0x7000 | uint16(77+len(data))) // framing flags+length, approximate
	put32(vectorE131DataPacket)
	name := make([]byte, 64)
	copy(name, opts.SourceName)
	buf = append(buf, name...)
	buf = append(buf, opts.Priority)
	put16(0) // sync address
	buf = append(buf, opts.Sequence)

	options := byte(0)
	if opts.Preview {
		options |= 0x80
	}
	if opts.Terminated {
		options |= 0x40
	}
	buf = append(buf, options)
	put16(opts.Universe)

	propertyCount := uint16(len(data) + 1)
	put16(0x7000 | uint16(10+len(data))) // DMP flags+length, approximate
	buf = append(buf, vectorDMPSetProperty)
	buf = append(buf, 0xa1) // address type & data type
	put16(0)                // first property address
	put16(1)                // address increment
	put16(propertyCount)
	buf = append(buf, 0x00) // DMX START code
	buf = append(buf, data...)

	return buf
}

// MulticastAddress returns the E1.31 universe-scoped multicast group:
// 239.255.(universe >> 8).(universe & 0xFF).
func MulticastAddress(universe uint16) (string, error) {
	if universe == 0 || universe > MaxUniverse {
		return "", fmt.Errorf("sacn: universe must be 1-%d, got %d", MaxUniverse, universe)
	}
	hi := (universe >> 8) & 0xFF
	lo := universe & 0xFF
	return fmt.Sprintf("239.255.%d.%d", hi, lo), nil
}
