package artnet

import "testing"

// buildTestDMXPacket assembles a well-formed OpDmx packet for ParseDMXPacket
// fixtures; universe is 0-based wire format.
func buildTestDMXPacket(universe uint16, channels []byte, sequence byte) []byte {
	packet := make([]byte, PacketSize)
	copy(packet[0:8], ArtNetID)
	packet[8], packet[9] = byte(OpCodeDMX&0xFF), byte(OpCodeDMX>>8)
	packet[10], packet[11] = byte(ProtocolVersion>>8), byte(ProtocolVersion)
	packet[12] = sequence
	packet[13] = 0
	packet[14], packet[15] = byte(universe), byte(universe>>8)
	packet[16], packet[17] = byte(DMXDataLength>>8), byte(DMXDataLength&0xFF)
	copy(packet[18:18+len(channels)], channels)
	return packet
}

func TestParseDMXPacket_RoundTrip(t *testing.T) {
	channels := make([]byte, 512)
	channels[0], channels[1], channels[2] = 10, 20, 30

	raw := buildTestDMXPacket(0, channels, 42)

	got, err := ParseDMXPacket(raw)
	if err != nil {
		t.Fatalf("ParseDMXPacket() error = %v", err)
	}
	if got.Universe != 0 {
		t.Errorf("Universe = %d, want 0", got.Universe)
	}
	if got.Sequence != 42 {
		t.Errorf("Sequence = %d, want 42", got.Sequence)
	}
	if len(got.Data) != 512 {
		t.Fatalf("Data length = %d, want 512", len(got.Data))
	}
	if got.Data[0] != 10 || got.Data[1] != 20 || got.Data[2] != 30 {
		t.Errorf("Data[0:3] = %v, want [10 20 30]", got.Data[0:3])
	}
}

func TestParseDMXPacket_BadMagic(t *testing.T) {
	raw := buildTestDMXPacket(0, make([]byte, 512), 0)
	raw[0] = 'X'
	if _, err := ParseDMXPacket(raw); err == nil {
		t.Fatal("expected error for bad magic id")
	}
}

func TestParseDMXPacket_TooShort(t *testing.T) {
	if _, err := ParseDMXPacket([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short packet")
	}
}

func TestParseDMXPacket_TruncatedData(t *testing.T) {
	raw := buildTestDMXPacket(0, make([]byte, 512), 0)
	truncated := raw[:18+100] // header claims length 512 but only 100 bytes follow
	if _, err := ParseDMXPacket(truncated); err == nil {
		t.Fatal("expected error for truncated dmx data")
	}
}

func TestParseDMXPacket_UniverseFromHigherUniverse(t *testing.T) {
	raw := buildTestDMXPacket(3, make([]byte, 512), 0) // universe 4 (1-based) => wire universe 3
	got, err := ParseDMXPacket(raw)
	if err != nil {
		t.Fatalf("ParseDMXPacket() error = %v", err)
	}
	if got.Universe != 3 {
		t.Errorf("Universe = %d, want 3", got.Universe)
	}
}

func TestParseDMXPacket_RejectsOldProtocolVersion(t *testing.T) {
	raw := buildTestDMXPacket(0, make([]byte, 512), 0)
	raw[10], raw[11] = 0, 13 // version 13, below the minimum of 14
	if _, err := ParseDMXPacket(raw); err == nil {
		t.Fatal("expected error for protocol version below minimum")
	}
}

func TestParseDMXPacket_RejectsWrongOpcode(t *testing.T) {
	raw := buildTestDMXPacket(0, make([]byte, 512), 0)
	raw[8], raw[9] = 0x00, 0x40 // OpPoll, not OpDmx
	if _, err := ParseDMXPacket(raw); err == nil {
		t.Fatal("expected error for unsupported opcode")
	}
}
