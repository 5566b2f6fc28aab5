package lifx

import "encoding/binary"

// BuildGetServiceBroadcast encodes the tagged, zero-target GetService probe
// sent to the LAN broadcast address at the start of each discovery cycle.
func BuildGetServiceBroadcast(sequence uint8) []byte {
	hdr := BroadcastHeader(TypeGetService, sequence)
	return Encode(hdr, nil)
}

// StateService is a discovered device's answer to GetService: the transport
// (always 1 = UDP) and the port it actually listens on (normally Port, but
// devices are free to report something else).
type StateService struct {
	Service uint8
	Port    uint32
}

// ParseStateService decodes a StateService reply. Only the service and port
// are returned; the header's Target field is not used, and discovery
// identifies devices by the reply's source IP.
func ParseStateService(data []byte) (StateService, bool) {
	hdr, payload, err := Decode(data)
	if err != nil || hdr.Type != TypeStateService || len(payload) < 5 {
		return StateService{}, false
	}
	return StateService{
		Service: payload[0],
		Port:    binary.LittleEndian.Uint32(payload[1:5]),
	}, true
}

// BuildGetVersion, BuildGetLabel and BuildGetHostFirmware are the per-device
// unicast follow-ups sent once per (deviceId, ip) per discovery epoch after
// a StateService response, per §4.5.2's dedup idiom.
func BuildGetVersion(sequence uint8) []byte      { return Encode(UnicastHeader(TypeGetVersion, sequence, [8]byte{}), nil) }
func BuildGetLabel(sequence uint8) []byte        { return Encode(UnicastHeader(TypeGetLabel, sequence, [8]byte{}), nil) }
func BuildGetHostFirmware(sequence uint8) []byte { return Encode(UnicastHeader(TypeGetHostFirmware, sequence, [8]byte{}), nil) }

// ParseStateLabel decodes a StateLabel reply's null-trimmed 32-byte label.
func ParseStateLabel(data []byte) (string, bool) {
	hdr, payload, err := Decode(data)
	if err != nil || hdr.Type != TypeStateLabel || len(payload) < 32 {
		return "", false
	}
	end := len(payload)
	for i, b := range payload[:32] {
		if b == 0 {
			end = i
			break
		}
	}
	return string(payload[:end]), true
}

// MessageType reports a decoded frame's type without requiring the caller
// to know the payload shape, for dispatch in the discovery listener.
func MessageType(data []byte) (uint16, bool) {
	hdr, _, err := Decode(data)
	if err != nil {
		return 0, false
	}
	return hdr.Type, true
}
