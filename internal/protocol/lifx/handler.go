package lifx

import (
	"fmt"
	"sync/atomic"

	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/protocol"
)

// defaultKelvin is the colour temperature sent with an RGB SetColor when no
// kelvin is given.
const defaultKelvin uint16 = 3500

// Handler implements protocol.Handler for LIFX devices.
//
// The sender addresses a device purely by its discovered IP (over UDP), so
// WrapCommand has no access to the device's real 6-byte MAC; unicast frames
// are built with an all-zero target, which LIFX firmware accepts for
// commands delivered directly to a device's IP.
type Handler struct {
	reported *capability.Reported
	seq      uint32
}

// New builds a LIFX handler. caps is populated as devices are discovered
// (color_temp_range is fixed at §4.5.2's [2500,9000] for every LIFX color
// bulb, but the Reported provider keeps the mapping engine protocol-agnostic).
func New(caps *capability.Reported) *Handler {
	return &Handler{reported: caps}
}

func (h *Handler) ProtocolName() string                { return "lifx" }
func (h *Handler) DefaultPort() int                     { return Port }
func (h *Handler) DefaultTransport() protocol.Transport { return protocol.TransportUDP }
func (h *Handler) SupportsPolling() bool                { return true }
func (h *Handler) CapabilityProvider() capability.Provider { return h.reported }

func (h *Handler) nextSequence() uint8 {
	return uint8(atomic.AddUint32(&h.seq, 1))
}

// WrapCommand projects an abstract command onto the Light:: message family.
// A Composite folds any colour/kelvin/brightness sub-commands into a single
// SetColor frame (LIFX has no separate brightness-only message) alongside an
// independent SetLightPower frame when power is also requested.
func (h *Handler) WrapCommand(cmd core.DeviceCommand) ([][]byte, error) {
	switch v := cmd.(type) {
	case core.PowerOn:
		return [][]byte{h.encodeLightPower(true)}, nil
	case core.PowerOff:
		return [][]byte{h.encodeLightPower(false)}, nil
	case core.SetColor:
		hsbk := RGBToHSBK(v.R, v.G, v.B, defaultKelvin)
		return [][]byte{h.encodeSetColor(hsbk)}, nil
	case core.SetBrightness:
		// LIFX has no brightness-only message; brightness is a component of
		// SetColor, so a bare SetBrightness is sent as a brightness-only
		// override over the device's last-known hue/saturation/kelvin
		// (here approximated as white at the requested brightness, since
		// WrapCommand has no access to current device state).
		hsbk := BrightnessOverride(HSBK{Kelvin: KelvinMin}, v.Value)
		return [][]byte{h.encodeSetColor(hsbk)}, nil
	case core.SetKelvin:
		hsbk := HSBK{Kelvin: clampKelvin(v.Kelvin), Brightness: 65535}
		return [][]byte{h.encodeSetColor(hsbk)}, nil
	case core.Composite:
		return h.wrapComposite(v)
	default:
		return nil, fmt.Errorf("lifx: unsupported command %T", cmd)
	}
}

func (h *Handler) wrapComposite(c core.Composite) ([][]byte, error) {
	var out [][]byte
	var hsbk HSBK
	haveColor := false
	var powerMsg []byte
	havePower := false
	powerOn := false

	for _, sub := range c.Commands {
		switch v := sub.(type) {
		case core.PowerOn:
			havePower, powerOn = true, true
		case core.PowerOff:
			havePower, powerOn = true, false
		case core.SetColor:
			kelvin := hsbk.Kelvin
			if kelvin == 0 {
				kelvin = defaultKelvin
			}
			hsbk = RGBToHSBK(v.R, v.G, v.B, kelvin)
			haveColor = true
		case core.SetKelvin:
			hsbk.Kelvin = clampKelvin(v.Kelvin)
			haveColor = true
		case core.SetBrightness:
			hsbk = BrightnessOverride(hsbk, v.Value)
			haveColor = true
		default:
			return nil, fmt.Errorf("lifx: unsupported composite sub-command %T", sub)
		}
	}

	if havePower {
		powerMsg = h.encodeLightPower(powerOn)
		out = append(out, powerMsg)
	}
	if haveColor {
		out = append(out, h.encodeSetColor(hsbk))
	}
	return out, nil
}

func (h *Handler) encodeSetColor(hsbk HSBK) []byte {
	hdr := UnicastHeader(TypeLightSetColor, h.nextSequence(), [8]byte{})
	return Encode(hdr, setColorPayload(hsbk, 0))
}

func (h *Handler) encodeLightPower(on bool) []byte {
	hdr := UnicastHeader(TypeLightSetPower, h.nextSequence(), [8]byte{})
	return Encode(hdr, setLightPowerPayload(on, 0))
}

// BuildPollRequest emits Light::Get, answered with Light::State.
func (h *Handler) BuildPollRequest() ([]byte, error) {
	hdr := UnicastHeader(TypeLightGet, h.nextSequence(), [8]byte{})
	return Encode(hdr, nil), nil
}

// ParsePollResponse decodes a Light::State frame into the normalised
// {hue,sat,brightness,kelvin,power,label,color:{r,g,b}} shape from §4.5.2.
func (h *Handler) ParsePollResponse(data []byte) (map[string]any, error) {
	hdr, payload, err := Decode(data)
	if err != nil {
		return nil, nil
	}
	if hdr.Type != TypeLightState {
		return nil, nil
	}
	state, ok := parseLightState(payload)
	if !ok {
		return nil, nil
	}

	r, g, b := HSBKToRGB(state.Color)
	return map[string]any{
		"hue":                     state.Color.Hue,
		"sat":                     state.Color.Saturation,
		"brightness":              state.Color.Brightness,
		"brightness_normalized":   uint8(uint32(state.Color.Brightness) * 255 / 65535),
		"kelvin":                  state.Color.Kelvin,
		"power":                   state.Power,
		"label":                   state.Label,
		"color":                   map[string]uint8{"r": r, "g": g, "b": b},
	}, nil
}
