package lifx

import "math"

// HSBK is LIFX's colour representation: hue/saturation/brightness/kelvin,
// each a full-range u16 (0..65535).
type HSBK struct {
	Hue        uint16
	Saturation uint16
	Brightness uint16
	Kelvin     uint16
}

// RGBToHSBK converts 8-bit RGB to HSBK via the standard RGB->HSV transform,
// scaling hue/saturation/value up to LIFX's 16-bit range. kelvin is clamped
// to [KelvinMin, KelvinMax].
func RGBToHSBK(r, g, b uint8, kelvin uint16) HSBK {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	var hue float64
	switch {
	case delta == 0:
		hue = 0
	case max == rf:
		hue = 60 * math.Mod((gf-bf)/delta, 6)
	case max == gf:
		hue = 60 * ((bf-rf)/delta + 2)
	default:
		hue = 60 * ((rf-gf)/delta + 4)
	}
	if hue < 0 {
		hue += 360
	}

	var sat float64
	if max > 0 {
		sat = delta / max
	}

	return HSBK{
		Hue:        uint16(hue / 360 * 65535),
		Saturation: uint16(sat * 65535),
		Brightness: uint16(max * 65535),
		Kelvin:     clampKelvin(kelvin),
	}
}

// BrightnessOverride returns hsbk with Brightness replaced by an explicit
// 0-255 value scaled to the full u16 range, used when a payload carries an
// independent brightness field alongside colour.
func BrightnessOverride(hsbk HSBK, value uint8) HSBK {
	hsbk.Brightness = uint16(uint32(value) * 65535 / 255)
	return hsbk
}

func clampKelvin(k uint16) uint16 {
	if k < KelvinMin {
		return KelvinMin
	}
	if k > KelvinMax {
		return KelvinMax
	}
	return k
}

// HSBKToRGB converts an HSBK color back to 8-bit RGB, used to normalise a
// Light::State poll response into the {color:{r,g,b}} shape §4.5.2 asks for.
func HSBKToRGB(hsbk HSBK) (r, g, b uint8) {
	h := float64(hsbk.Hue) / 65535 * 360
	s := float64(hsbk.Saturation) / 65535
	v := float64(hsbk.Brightness) / 65535

	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	return uint8((rf + m) * 255), uint8((gf + m) * 255), uint8((bf + m) * 255)
}
