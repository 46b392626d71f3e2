// Package units implements MTConnect unit conversion as pure,
// side-effect-free functions keyed by (native, target) unit pairs, with
// composition for compound units (SPEC_FULL.md §9 Design Notes).
package units

import "fmt"

// Each table maps a unit to its multiplicative scale into the table's base
// unit (length, mass, angle). Conversions compose: KILOGRAM/MILLIMETER from
// GRAM/INCH is simpleFactor("GRAM","KILOGRAM") / simpleFactor("INCH","MILLIMETER").
var lengthToMillimeter = map[string]float64{
	"MILLIMETER": 1,
	"CENTIMETER": 10,
	"METER":      1000,
	"INCH":       25.4,
	"FOOT":       304.8,
}

var massToGram = map[string]float64{
	"GRAM":     1,
	"KILOGRAM": 1000,
	"POUND":    453.59237,
	"OUNCE":    28.349523125,
}

var angleToDegree = map[string]float64{
	"DEGREE": 1,
	"RADIAN": 57.29577951308232,
}

var tables = []map[string]float64{lengthToMillimeter, massToGram, angleToDegree}

// simpleFactor returns the scale from native to target for one of the known
// unit dimensions, or ok=false if neither unit belongs to a known table or
// they belong to different tables.
func simpleFactor(native, target string) (float64, bool) {
	for _, table := range tables {
		nf, nok := table[native]
		tf, tok := table[target]
		if nok && tok {
			return nf / tf, true
		}
	}
	return 0, false
}

// Converter applies scale*value + offset to convert a native-unit reading
// into a target unit.
type Converter struct {
	Scale  float64
	Offset float64
}

func (c Converter) Convert(v float64) float64 {
	return v*c.Scale + c.Offset
}

// Simple builds a Converter between two units of the same dimension, e.g.
// Simple("FOOT", "MILLIMETER").
func Simple(native, target string) (Converter, error) {
	if native == target {
		return Converter{Scale: 1}, nil
	}
	f, ok := simpleFactor(native, target)
	if !ok {
		return Converter{}, fmt.Errorf("no known conversion from %s to %s", native, target)
	}
	return Converter{Scale: f}, nil
}

// Compound builds a Converter for a ratio of two dimensions, e.g.
// Compound("GRAM", "INCH", "KILOGRAM", "MILLIMETER") for GRAM/INCH →
// KILOGRAM/MILLIMETER (SPEC_FULL.md §9 example).
func Compound(nativeNum, nativeDen, targetNum, targetDen string) (Converter, error) {
	num, err := Simple(nativeNum, targetNum)
	if err != nil {
		return Converter{}, err
	}
	den, err := Simple(nativeDen, targetDen)
	if err != nil {
		return Converter{}, err
	}
	return Converter{Scale: num.Scale / den.Scale}, nil
}

// WithOffset returns a copy of c with an additive offset applied after
// scaling (e.g. CELSIUS → FAHRENHEIT needs both scale and offset).
func (c Converter) WithOffset(offset float64) Converter {
	c.Offset = offset
	return c
}
