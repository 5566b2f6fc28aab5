package mapping

import (
	"math"

	"github.com/lacylights-go/dmxbridge/internal/capability"
	"github.com/lacylights-go/dmxbridge/internal/core"
)

// buildPayload assembles the abstract device command from a compiled
// mapping's resolved field values. A master/dimmer field present alongside
// color fields scales those color fields multiplicatively (brightness_rgb);
// alone, it becomes a brightness command (master_only). A kelvin field is
// dropped (no command emitted for it) when the device has no known
// color-temp range, per the "absent capability skips kelvin" decision.
func buildPayload(values map[Field]uint8, colorTempRange *capability.ColorTempRange) core.DeviceCommand {
	var commands []core.DeviceCommand

	_, hasR := values[FieldR]
	_, hasG := values[FieldG]
	_, hasB := values[FieldB]
	_, hasW := values[FieldW]
	_, hasA := values[FieldA]
	colorPresent := hasR || hasG || hasB || hasW || hasA

	dimmerRaw, hasDimmer := values[FieldDimmer]

	if colorPresent {
		r, g, b := values[FieldR], values[FieldG], values[FieldB]
		if hasDimmer {
			factor := float64(dimmerRaw) / 255.0
			r = scaleChannel(r, factor)
			g = scaleChannel(g, factor)
			b = scaleChannel(b, factor)
		}
		cmd := core.SetColor{R: r, G: g, B: b}
		if hasW {
			w := values[FieldW]
			if hasDimmer {
				w = scaleChannel(w, float64(dimmerRaw)/255.0)
			}
			cmd.W = &w
		}
		// rgbaw/rgbwa carry an independent amber channel which the core's
		// abstract command set has no dedicated slot for; fold it into the
		// white channel only when no white channel is already present.
		if hasA && !hasW {
			a := values[FieldA]
			if hasDimmer {
				a = scaleChannel(a, float64(dimmerRaw)/255.0)
			}
			cmd.W = &a
		}
		commands = append(commands, cmd)
	} else if hasDimmer {
		commands = append(commands, core.SetBrightness{Value: dimmerRaw})
	}

	if brightness, ok := values[FieldBrightness]; ok {
		commands = append(commands, core.SetBrightness{Value: brightness})
	}

	if kelvinRaw, ok := values[FieldKelvin]; ok && colorTempRange != nil {
		kelvin := scaleKelvin(kelvinRaw, *colorTempRange)
		commands = append(commands, core.SetKelvin{Kelvin: kelvin})
	}

	switch len(commands) {
	case 0:
		return nil
	case 1:
		return commands[0]
	default:
		return core.Composite{Commands: commands}
	}
}

func scaleChannel(v uint8, factor float64) uint8 {
	scaled := float64(v) * factor
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 255 {
		scaled = 255
	}
	return uint8(math.Round(scaled))
}

// scaleKelvin maps a DMX byte (0..255) linearly onto [MinKelvin, MaxKelvin].
func scaleKelvin(v uint8, r capability.ColorTempRange) uint16 {
	if r.MaxKelvin <= r.MinKelvin {
		return r.MinKelvin
	}
	span := float64(r.MaxKelvin - r.MinKelvin)
	k := float64(r.MinKelvin) + (float64(v)/255.0)*span
	return uint16(math.Round(k))
}
