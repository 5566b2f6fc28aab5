// Package govee implements protocol.Handler for Govee's LAN control API:
// JSON commands over UDP, a fixed control port, and a multicast discovery
// scan. Message shapes are grounded on the original bridge's protocol/govee.py,
// and the JSON encode/decode style follows the teacher's use of
// encoding/json for sparse payloads in playback.Service.ExecuteCueDmx.
package govee

import (
	"encoding/json"
	"fmt"

	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/core"
	"github.com/lacylights-go/dmxbridge/internal/protocol"
)

const (
	// ControlPort is where Govee devices listen for commands.
	ControlPort = 4003
	// DiscoveryMulticastAddr is the group Govee devices listen on for scans.
	DiscoveryMulticastAddr = "239.255.255.250"
	// DiscoveryMulticastPort is the port scans are sent to.
	DiscoveryMulticastPort = 4001
	// ResponsePort is the local port Govee scan/status responses arrive on.
	ResponsePort = 4002
)

// Handler implements protocol.Handler for Govee devices.
type Handler struct {
	catalog capability.Provider
}

// New builds a Govee handler backed by a capability catalog (Govee devices
// never self-report color_temp_range, so a static catalog is required for
// kelvin mapping to work at all; a nil catalog simply resolves nothing).
func New(catalog capability.Provider) *Handler {
	return &Handler{catalog: catalog}
}

func (h *Handler) ProtocolName() string               { return "govee" }
func (h *Handler) DefaultPort() int                    { return ControlPort }
func (h *Handler) DefaultTransport() protocol.Transport { return protocol.TransportUDP }
func (h *Handler) SupportsPolling() bool               { return true }
func (h *Handler) CapabilityProvider() capability.Provider { return h.catalog }

type envelope struct {
	Msg message `json:"msg"`
}

type message struct {
	Cmd  string `json:"cmd"`
	Data any    `json:"data"`
}

type turnData struct {
	Value int `json:"value"`
}

type colorwcData struct {
	Color            *rgb `json:"color,omitempty"`
	ColorTemInKelvin int  `json:"colorTemInKelvin"`
}

type rgb struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

type brightnessData struct {
	Value uint8 `json:"value"`
}

// WrapCommand projects an abstract command onto Govee's turn/colorwc/
// brightness trio, preserving the mandatory turn -> colour -> brightness
// ordering within a Composite so devices don't clamp on a half-applied
// state (§4.5.1).
func (h *Handler) WrapCommand(cmd core.DeviceCommand) ([][]byte, error) {
	switch v := cmd.(type) {
	case core.PowerOn:
		return encodeOne("turn", turnData{Value: 1})
	case core.PowerOff:
		return encodeOne("turn", turnData{Value: 0})
	case core.SetColor:
		return encodeOne("colorwc", colorwcData{Color: &rgb{R: v.R, G: v.G, B: v.B}})
	case core.SetBrightness:
		return encodeOne("brightness", brightnessData{Value: v.Value})
	case core.SetKelvin:
		return encodeOne("colorwc", colorwcData{ColorTemInKelvin: int(v.Kelvin)})
	case core.Composite:
		return h.wrapComposite(v)
	default:
		return nil, fmt.Errorf("govee: unsupported command %T", cmd)
	}
}

// wrapComposite orders sub-commands turn -> colorwc -> brightness regardless
// of the order they appear in Commands, and folds any colour/kelvin
// sub-commands into a single colorwc message per §4.5.1. A PowerOff
// sub-command is exclusive: turning off with any colour/brightness still
// emits only the single turn value=0 message, since a powered-off device
// has nothing left to clamp against.
func (h *Handler) wrapComposite(c core.Composite) ([][]byte, error) {
	var turnMsg, brightMsg []byte
	var color *rgb
	var kelvin int
	haveColor := false
	turnOff := false

	for _, sub := range c.Commands {
		switch v := sub.(type) {
		case core.PowerOn:
			msgs, err := encodeOne("turn", turnData{Value: 1})
			if err != nil {
				return nil, err
			}
			turnMsg = msgs[0]
		case core.PowerOff:
			msgs, err := encodeOne("turn", turnData{Value: 0})
			if err != nil {
				return nil, err
			}
			turnMsg = msgs[0]
			turnOff = true
		case core.SetColor:
			color = &rgb{R: v.R, G: v.G, B: v.B}
			haveColor = true
		case core.SetKelvin:
			kelvin = int(v.Kelvin)
			haveColor = true
		case core.SetBrightness:
			msgs, err := encodeOne("brightness", brightnessData{Value: v.Value})
			if err != nil {
				return nil, err
			}
			brightMsg = msgs[0]
		default:
			return nil, fmt.Errorf("govee: unsupported composite sub-command %T", sub)
		}
	}

	if turnOff {
		return [][]byte{turnMsg}, nil
	}

	var out [][]byte
	if turnMsg != nil {
		out = append(out, turnMsg)
	}
	if haveColor {
		msgs, err := encodeOne("colorwc", colorwcData{Color: color, ColorTemInKelvin: kelvin})
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	if brightMsg != nil {
		out = append(out, brightMsg)
	}
	return out, nil
}

func encodeOne(cmd string, data any) ([][]byte, error) {
	b, err := json.Marshal(envelope{Msg: message{Cmd: cmd, Data: data}})
	if err != nil {
		return nil, err
	}
	return [][]byte{b}, nil
}

// BuildPollRequest emits the devStatus scan Govee devices answer with their
// current power/brightness/color state.
func (h *Handler) BuildPollRequest() ([]byte, error) {
	return json.Marshal(envelope{Msg: message{Cmd: "devStatus", Data: struct{}{}}})
}

// ParsePollResponse flattens Govee's nested msg.data (or a bare data dict,
// as scan responses sometimes arrive) into a normalised state map, coercing
// on/off and 0/1 power fields to bool.
func (h *Handler) ParsePollResponse(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil
	}

	body := raw
	if msg, ok := raw["msg"].(map[string]any); ok {
		body = msg
	}
	if d, ok := body["data"].(map[string]any); ok {
		body = d
	}
	if len(body) == 0 {
		return nil, nil
	}

	state := make(map[string]any, len(body))
	for k, v := range body {
		state[k] = coerce(k, v)
	}
	return state, nil
}

func coerce(key string, v any) any {
	if key != "onOff" && key != "power" && key != "status" {
		return v
	}
	switch val := v.(type) {
	case string:
		return val == "on" || val == "1"
	case float64:
		return val != 0
	default:
		return v
	}
}
