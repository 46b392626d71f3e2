package model

// Category classifies a DataItem's observation kind (spec.md §3 DataItem).
type Category string

const (
	CategorySample    Category = "SAMPLE"
	CategoryEvent     Category = "EVENT"
	CategoryCondition Category = "CONDITION"
)

// Representation describes the shape of a DataItem's value.
type Representation string

const (
	RepresentationValue      Representation = "VALUE"
	RepresentationDataSet    Representation = "DATA_SET"
	RepresentationTable      Representation = "TABLE"
	RepresentationTimeSeries Representation = "TIME_SERIES"
)

const Unavailable = "UNAVAILABLE"

// UnitConverter applies a scale and offset to convert a native-unit reading
// into the DataItem's declared Units (SPEC_FULL.md §9 / internal/units).
type UnitConverter struct {
	Scale  float64
	Offset float64
}

func (c UnitConverter) Convert(v float64) float64 {
	if c.Scale == 0 {
		return v + c.Offset
	}
	return v*c.Scale + c.Offset
}

// DataItem declares a named channel produced by a physical or logical
// device component (spec.md §3).
type DataItem struct {
	ID             string
	Category       Category
	Type           string
	SubType        string
	Representation Representation
	Units          string
	NativeUnits    string
	Converter      *UnitConverter
	ConstantValue  *Value
	Discrete       bool
	SourceAdapter  string // binds this data item to an adapter/source name
	FilterDelta    float64
	Period         float64 // seconds; PeriodFilter rate limit (spec.md §4.1.1)

	owner *Component
}

func (d *DataItem) IsCondition() bool { return d.Category == CategoryCondition }
func (d *DataItem) IsDataSet() bool {
	return d.Representation == RepresentationDataSet || d.Representation == RepresentationTable
}

// InitialValue returns the value a data item should hold before its first
// observation: its declared constant, or UNAVAILABLE (spec.md §4.4
// "Data-item initialization").
func (d *DataItem) InitialValue() Value {
	if d.ConstantValue != nil {
		return *d.ConstantValue
	}
	return StringValue(Unavailable)
}
