package domain

import "fmt"

// TargetClass is a training label. Non-negative values are hazard
// classes; DeadStormClass marks a storm that dissipated inside the
// labeling lead-time window.
type TargetClass int

// DeadStormClass is the negative label assigned to storms that died
// before their lead-time window closed. Only wind-type targets use it.
const DeadStormClass TargetClass = -2

// HazardKind distinguishes the two label families produced upstream.
type HazardKind string

const (
	HazardTornado HazardKind = "tornado"
	HazardWind    HazardKind = "wind"
)

// TargetSpec declares the label scheme for one target variable. It is an
// explicit record rather than an open class->anything map so that
// unrecognized options fail at compile time, not at 3 a.m. in a training
// run.
type TargetSpec struct {
	Hazard HazardKind
	// NumHazardClasses counts the non-negative classes 0..n-1. Tornado
	// targets are always 2 (no tornado / tornado).
	NumHazardClasses int
	// IncludeDeadStorms adds DeadStormClass to the class list. Wind
	// targets only.
	IncludeDeadStorms bool
}

// Validate fails fast on inconsistent label schemes.
func (s TargetSpec) Validate() error {
	switch s.Hazard {
	case HazardTornado:
		if s.NumHazardClasses != 2 {
			return fmt.Errorf("tornado targets are binary, got %d classes", s.NumHazardClasses)
		}
		if s.IncludeDeadStorms {
			return fmt.Errorf("tornado targets have no dead-storm class")
		}
	case HazardWind:
		if s.NumHazardClasses < 2 {
			return fmt.Errorf("wind targets need at least 2 classes, got %d", s.NumHazardClasses)
		}
	default:
		return fmt.Errorf("unknown hazard kind %q", s.Hazard)
	}
	return nil
}

// Classes returns every class the scheme can emit, dead-storm class
// first, hazard classes in ascending order.
func (s TargetSpec) Classes() []TargetClass {
	classes := make([]TargetClass, 0, s.NumHazardClasses+1)
	if s.IncludeDeadStorms {
		classes = append(classes, DeadStormClass)
	}
	for c := 0; c < s.NumHazardClasses; c++ {
		classes = append(classes, TargetClass(c))
	}
	return classes
}
