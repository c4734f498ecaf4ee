package topology

import (
	"fmt"
	"math"
)

// Range describes the slider bounds for one parameter
type Range struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
}

// RangeError reports a parameter outside its slider bounds
type RangeError struct {
	Range Range
	Value float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be between %.2f and %.2f, got %g", e.Range.Name, e.Range.Min, e.Range.Max, e.Value)
}

// Ranges holds the bounds for VR, VF and VYL
type Ranges struct {
	VR  Range `json:"vr"`
	VF  Range `json:"vf"`
	VYL Range `json:"vyl"`
}

// DefaultRanges returns the slider bounds the models were trained over
func DefaultRanges() Ranges {
	return Ranges{
		VR:  Range{Name: "vr", Label: "VR (volume ratio)", Min: 0.5, Max: 2.0, Default: 1.0, Step: 0.01},
		VF:  Range{Name: "vf", Label: "VF (volume fraction)", Min: 0.1, Max: 0.9, Default: 0.5, Step: 0.01},
		VYL: Range{Name: "vyl", Label: "VYL (load Y position)", Min: -1.0, Max: 1.0, Default: 0.0, Step: 0.01},
	}
}

// DefaultParams returns the slider defaults
func DefaultParams() Params {
	r := DefaultRanges()
	return Params{VR: r.VR.Default, VF: r.VF.Default, VYL: r.VYL.Default}
}

// Contains reports whether v lies within [Min, Max]
func (r Range) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= r.Min && v <= r.Max
}

// Validate returns a *RangeError when v is out of bounds
func (r Range) Validate(v float64) error {
	if !r.Contains(v) {
		return &RangeError{Range: r, Value: v}
	}
	return nil
}

// Validate checks every parameter against its range
func (rs Ranges) Validate(p Params) error {
	if err := rs.VR.Validate(p.VR); err != nil {
		return err
	}
	if err := rs.VF.Validate(p.VF); err != nil {
		return err
	}
	return rs.VYL.Validate(p.VYL)
}

// List returns the ranges in slider order
func (rs Ranges) List() []Range {
	return []Range{rs.VR, rs.VF, rs.VYL}
}

// Validate checks p against the default ranges
func (p Params) Validate() error {
	return DefaultRanges().Validate(p)
}
