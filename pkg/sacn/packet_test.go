package sacn

import "testing"

func TestParse_RoundTrip(t *testing.T) {
	data := make([]byte, 512)
	data[0], data[1], data[2] = 10, 20, 30
	var cid [16]byte
	copy(cid[:], []byte{0xde, 0xad, 0xbe, 0xef})

	raw := Build(BuildOptions{
		Universe:   5,
		Sequence:   9,
		Priority:   150,
		SourceName: "test-source",
		CID:        cid,
		Data:       data,
	})

	pkt, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if pkt.Universe != 5 {
		t.Errorf("Universe = %d, want 5", pkt.Universe)
	}
	if pkt.Sequence != 9 {
		t.Errorf("Sequence = %d, want 9", pkt.Sequence)
	}
	if pkt.Priority != 150 {
		t.Errorf("Priority = %d, want 150", pkt.Priority)
	}
	if pkt.SourceName != "test-source" {
		t.Errorf("SourceName = %q, want %q", pkt.SourceName, "test-source")
	}
	if pkt.CID != cid {
		t.Errorf("CID = %v, want %v", pkt.CID, cid)
	}
	if pkt.Data[0] != 10 || pkt.Data[1] != 20 || pkt.Data[2] != 30 {
		t.Errorf("Data[0:3] = %v, want [10 20 30]", pkt.Data[0:3])
	}
	if pkt.Preview || pkt.StreamTerminated {
		t.Errorf("expected no preview/terminated flags")
	}
}

func TestParse_OutOfRangePriorityClampsToDefault(t *testing.T) {
	raw := Build(BuildOptions{Universe: 1, Priority: 250, Data: make([]byte, 512)})
	pkt, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if pkt.Priority != DefaultPriority {
		t.Errorf("Priority = %d, want clamped default %d", pkt.Priority, DefaultPriority)
	}
}

func TestParse_PreviewFlag(t *testing.T) {
	raw := Build(BuildOptions{Universe: 1, Priority: 100, Data: make([]byte, 512), Preview: true})
	pkt, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !pkt.Preview {
		t.Errorf("expected Preview = true")
	}
}

func TestParse_StreamTerminatedFlag(t *testing.T) {
	raw := Build(BuildOptions{Universe: 1, Priority: 100, Data: make([]byte, 512), Terminated: true})
	pkt, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !pkt.StreamTerminated {
		t.Errorf("expected StreamTerminated = true")
	}
}

func TestParse_RejectsZeroUniverse(t *testing.T) {
	raw := Build(BuildOptions{Universe: 0, Data: make([]byte, 512)})
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for universe 0")
	}
}

func TestParse_RejectsTooShort(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short packet")
	}
}

func TestParse_RejectsBadIdentifier(t *testing.T) {
	raw := Build(BuildOptions{Universe: 1, Data: make([]byte, 512)})
	raw[4] = 'X' // corrupt ACN packet identifier
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for bad identifier")
	}
}

func TestMulticastAddress(t *testing.T) {
	tests := []struct {
		universe uint16
		want     string
	}{
		{1, "239.255.0.1"},
		{256, "239.255.1.0"},
		{63999, "239.255.249.255"},
	}
	for _, tt := range tests {
		got, err := MulticastAddress(tt.universe)
		if err != nil {
			t.Fatalf("MulticastAddress(%d) error = %v", tt.universe, err)
		}
		if got != tt.want {
			t.Errorf("MulticastAddress(%d) = %q, want %q", tt.universe, got, tt.want)
		}
	}
}

func TestMulticastAddress_RejectsZero(t *testing.T) {
	if _, err := MulticastAddress(0); err == nil {
		t.Fatal("expected error for universe 0")
	}
}
