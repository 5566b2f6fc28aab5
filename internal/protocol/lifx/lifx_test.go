package lifx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lacylights-go/dmxbridge/internal/core"
)

func TestHeader_RoundTrip(t *testing.T) {
	hdr := UnicastHeader(TypeLightSetColor, 7, [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	hdr.AckRequired = true
	raw := Encode(hdr, setColorPayload(HSBK{Hue: 100, Saturation: 200, Brightness: 300, Kelvin: 3500}, 1000))

	decoded, payload, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, TypeLightSetColor, decoded.Type)
	require.EqualValues(t, 7, decoded.Sequence)
	require.True(t, decoded.AckRequired)
	require.False(t, decoded.Tagged)
	require.Len(t, payload, 13)
}

func TestRGBToHSBK_PureRed(t *testing.T) {
	hsbk := RGBToHSBK(255, 0, 0, 3500)
	require.InDelta(t, 0, hsbk.Hue, 5)
	require.InDelta(t, 65535, hsbk.Saturation, 5)
	require.InDelta(t, 65535, hsbk.Brightness, 5)
	require.Equal(t, uint16(3500), hsbk.Kelvin)
}

func TestRGBToHSBK_ClampsKelvin(t *testing.T) {
	hsbk := RGBToHSBK(1, 1, 1, 100)
	require.Equal(t, KelvinMin, hsbk.Kelvin)
	hsbk = RGBToHSBK(1, 1, 1, 20000)
	require.Equal(t, KelvinMax, hsbk.Kelvin)
}

func TestWrapCommand_SetColorProducesLightSetColorFrame(t *testing.T) {
	h := New(nil)
	msgs, err := h.WrapCommand(core.SetColor{R: 0, G: 255, B: 0})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	hdr, _, err := Decode(msgs[0])
	require.NoError(t, err)
	require.Equal(t, TypeLightSetColor, hdr.Type)
}

func TestWrapCommand_CompositeEmitsPowerAndColor(t *testing.T) {
	h := New(nil)
	msgs, err := h.WrapCommand(core.Composite{Commands: []core.DeviceCommand{
		core.PowerOn{},
		core.SetColor{R: 10, G: 20, B: 30},
	}})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	hdr0, _, err := Decode(msgs[0])
	require.NoError(t, err)
	require.Equal(t, TypeLightSetPower, hdr0.Type)

	hdr1, _, err := Decode(msgs[1])
	require.NoError(t, err)
	require.Equal(t, TypeLightSetColor, hdr1.Type)
}

func TestParsePollResponse_DecodesLightState(t *testing.T) {
	h := New(nil)
	payload := make([]byte, 52)
	putU16(payload[0:2], 10000)
	putU16(payload[2:4], 65535)
	putU16(payload[4:6], 65535)
	putU16(payload[6:8], 3500)
	putU16(payload[10:12], 65535)
	copy(payload[12:], []byte("Kitchen"))

	hdr := UnicastHeader(TypeLightState, 1, [8]byte{})
	raw := Encode(hdr, payload)

	state, err := h.ParsePollResponse(raw)
	require.NoError(t, err)
	require.Equal(t, true, state["power"])
	require.Equal(t, "Kitchen", state["label"])
}

func TestBuildGetServiceBroadcast_IsTagged(t *testing.T) {
	raw := BuildGetServiceBroadcast(1)
	hdr, _, err := Decode(raw)
	require.NoError(t, err)
	require.True(t, hdr.Tagged)
	require.Equal(t, TypeGetService, hdr.Type)
}
