// Package mapping expands winning DMX frames into per-device state updates:
// template-driven channel layout, gamma/dimmer shaping, kelvin scaling,
// change detection, and per-device debounce.
package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/lacylights-go/dmxbridge/internal/store"
)

// Field identifies one DMX-controlled device attribute within a mapping.
type Field string

const (
	FieldR          Field = "r"
	FieldG          Field = "g"
	FieldB          Field = "b"
	FieldW          Field = "w"
	FieldA          Field = "a"
	FieldDimmer     Field = "dimmer"
	FieldBrightness Field = "brightness"
	FieldKelvin     Field = "kelvin"
)

// WhitePolicy controls whether gamma/dimmer shaping applies to the white
// channel of an RGBW-family template.
type WhitePolicy string

const (
	WhitePolicyGamma       WhitePolicy = "gamma"
	WhitePolicyPassthrough WhitePolicy = "passthrough"
)

// templateFields is the ordered field layout each named template expands to.
var templateFields = map[string][]Field{
	"rgb":             {FieldR, FieldG, FieldB},
	"rgbw":             {FieldR, FieldG, FieldB, FieldW},
	"brightness_rgb":  {FieldDimmer, FieldR, FieldG, FieldB},
	"master_only":     {FieldDimmer},
	"rgbwa":           {FieldR, FieldG, FieldB, FieldW, FieldA},
	"rgbaw":           {FieldR, FieldG, FieldB, FieldA, FieldW},
	"brightness":      {FieldBrightness},
	"temperature":     {FieldKelvin},
}

// Spec is the compiled, validated shape of one mapping record: which fields
// occupy which offsets and how their raw DMX bytes should be shaped.
type Spec struct {
	Fields          []Field
	RequiredChannels int
	Gamma           float64
	Dimmer          float64
	WhitePolicy     WhitePolicy
}

// buildSpec resolves a MappingRecord into a Spec, mirroring the teacher's
// validation-then-continue posture: the caller skips and logs a WARN on
// any error rather than aborting the whole reload.
func buildSpec(rec store.MappingRecord) (Spec, error) {
	gamma := 1.0
	if rec.Gamma > 0 {
		gamma = rec.Gamma
	}
	dimmer := 1.0
	if rec.Dimmer > 0 {
		dimmer = rec.Dimmer
	}
	whitePolicy := WhitePolicyGamma
	if rec.WhitePolicy == string(WhitePolicyPassthrough) {
		whitePolicy = WhitePolicyPassthrough
	}

	if rec.MappingType == "discrete" {
		if rec.Field == "" {
			return Spec{}, fmt.Errorf("discrete mapping missing field")
		}
		return Spec{
			Fields:           []Field{Field(rec.Field)},
			RequiredChannels: 1,
			Gamma:            gamma,
			Dimmer:           dimmer,
			WhitePolicy:      whitePolicy,
		}, nil
	}

	fields, ok := templateFields[rec.Template]
	if !ok {
		return Spec{}, fmt.Errorf("unknown template %q", rec.Template)
	}

	if rec.Order != "" {
		ordered, err := applyFieldOrder(fields, rec.Order)
		if err != nil {
			return Spec{}, err
		}
		fields = ordered
	}

	return Spec{
		Fields:           fields,
		RequiredChannels: len(fields),
		Gamma:            gamma,
		Dimmer:           dimmer,
		WhitePolicy:      whitePolicy,
	}, nil
}

// applyFieldOrder overrides a template's default field order with a
// persisted JSON array of field names (e.g. `["g","r","b"]`), rejecting any
// order that isn't an exact permutation of the template's own field set.
func applyFieldOrder(defaultFields []Field, orderJSON string) ([]Field, error) {
	var names []string
	if err := json.Unmarshal([]byte(orderJSON), &names); err != nil {
		return nil, fmt.Errorf("invalid order %q: %w", orderJSON, err)
	}
	if len(names) != len(defaultFields) {
		return nil, fmt.Errorf("order %q has %d fields, template requires %d", orderJSON, len(names), len(defaultFields))
	}

	remaining := make(map[Field]int, len(defaultFields))
	for _, f := range defaultFields {
		remaining[f]++
	}

	ordered := make([]Field, len(names))
	for i, n := range names {
		f := Field(n)
		if remaining[f] == 0 {
			return nil, fmt.Errorf("order %q is not a permutation of the template's fields", orderJSON)
		}
		remaining[f]--
		ordered[i] = f
	}
	return ordered, nil
}
