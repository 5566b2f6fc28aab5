package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/lacylights-go/dmxbridge/internal/core"
)

// commandJSON is the on-disk tagged encoding of a core.DeviceCommand, since
// GORM has no native support for storing a Go sum type in a single column.
type commandJSON struct {
	Kind     string           `json:"kind"`
	R        uint8            `json:"r,omitempty"`
	G        uint8            `json:"g,omitempty"`
	B        uint8            `json:"b,omitempty"`
	W        *uint8           `json:"w,omitempty"`
	Value    uint8            `json:"value,omitempty"`
	Kelvin   uint16           `json:"kelvin,omitempty"`
	Commands []commandJSON    `json:"commands,omitempty"`
}

// CommandColumn wraps a core.DeviceCommand so it can be stored/loaded as a
// single JSON column via GORM's driver.Valuer/sql.Scanner hooks.
type CommandColumn struct {
	Command core.DeviceCommand
}

func encodeCommand(c core.DeviceCommand) commandJSON {
	switch v := c.(type) {
	case core.PowerOn:
		return commandJSON{Kind: "power_on"}
	case core.PowerOff:
		return commandJSON{Kind: "power_off"}
	case core.SetColor:
		return commandJSON{Kind: "set_color", R: v.R, G: v.G, B: v.B, W: v.W}
	case core.SetBrightness:
		return commandJSON{Kind: "set_brightness", Value: v.Value}
	case core.SetKelvin:
		return commandJSON{Kind: "set_kelvin", Kelvin: v.Kelvin}
	case core.Composite:
		sub := make([]commandJSON, len(v.Commands))
		for i, c := range v.Commands {
			sub[i] = encodeCommand(c)
		}
		return commandJSON{Kind: "composite", Commands: sub}
	default:
		return commandJSON{Kind: "unknown"}
	}
}

func decodeCommand(j commandJSON) (core.DeviceCommand, error) {
	switch j.Kind {
	case "power_on":
		return core.PowerOn{}, nil
	case "power_off":
		return core.PowerOff{}, nil
	case "set_color":
		return core.SetColor{R: j.R, G: j.G, B: j.B, W: j.W}, nil
	case "set_brightness":
		return core.SetBrightness{Value: j.Value}, nil
	case "set_kelvin":
		return core.SetKelvin{Kelvin: j.Kelvin}, nil
	case "composite":
		cmds := make([]core.DeviceCommand, len(j.Commands))
		for i, sub := range j.Commands {
			c, err := decodeCommand(sub)
			if err != nil {
				return nil, err
			}
			cmds[i] = c
		}
		return core.Composite{Commands: cmds}, nil
	default:
		return nil, fmt.Errorf("unknown device command kind %q", j.Kind)
	}
}

// Value implements driver.Valuer.
func (c CommandColumn) Value() (driver.Value, error) {
	if c.Command == nil {
		return nil, nil
	}
	b, err := json.Marshal(encodeCommand(c.Command))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *CommandColumn) Scan(value any) error {
	if value == nil {
		c.Command = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type %T for CommandColumn", value)
	}

	var j commandJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return err
	}
	cmd, err := decodeCommand(j)
	if err != nil {
		return err
	}
	c.Command = cmd
	return nil
}
