// Package generator assembles class-balanced training batches from a
// stream of labeled storm-image examples.
//
// Rare-class oversampling works online: examples accumulate in memory,
// file time by file time, until two quotas are met (enough distinct file
// times, enough examples of every class the sampling spec asks for).
// Saturated classes are dropped as they stream in so a 1000:1 null/hit
// imbalance on disk never has to fit in memory.
package generator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/storm-nowcast/internal/domain"
)

// ClassCounts maps each target class to a number of examples.
type ClassCounts map[domain.TargetClass]int

// Total sums the counts over all classes.
func (c ClassCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// SamplingSpec declares the per-class composition of a training batch.
// A nil *SamplingSpec means no downsampling: batches take whatever class
// mix the files contain.
type SamplingSpec struct {
	FractionByClass map[domain.TargetClass]float64
}

// Validate fails fast on fractions that are negative or do not sum to 1.
func (s *SamplingSpec) Validate(target domain.TargetSpec) error {
	if len(s.FractionByClass) == 0 {
		return fmt.Errorf("sampling spec has no class fractions")
	}

	declared := make(map[domain.TargetClass]bool)
	for _, c := range target.Classes() {
		declared[c] = true
	}

	fractions := make([]float64, 0, len(s.FractionByClass))
	for class, f := range s.FractionByClass {
		if !declared[class] {
			return fmt.Errorf("sampling fraction given for class %d, which target %q does not emit", class, target.Hazard)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("sampling fraction for class %d is %v, must be in [0, 1]", class, f)
		}
		fractions = append(fractions, f)
	}

	if sum := floats.Sum(fractions); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("sampling fractions sum to %v, must sum to 1", sum)
	}
	return nil
}

// PerBatchClassCounts converts a sampling spec into the number of
// examples each class contributes to one batch. With no spec, every
// class is allowed up to the full batch size (no downsampling).
func PerBatchClassCounts(numExamplesPerBatch int, target domain.TargetSpec, spec *SamplingSpec) ClassCounts {
	counts := make(ClassCounts)
	if spec == nil {
		for _, class := range target.Classes() {
			counts[class] = numExamplesPerBatch
		}
		return counts
	}

	for class, fraction := range spec.FractionByClass {
		counts[class] = int(math.Round(fraction * float64(numExamplesPerBatch)))
	}
	return counts
}

// ExamplesLeftByClass reports how many more examples of each class are
// still wanted. Downsampling does not begin until both in-memory quotas
// are met: before that every class keeps its full per-batch allowance,
// because early files may be unrepresentative of the class mix.
func ExamplesLeftByClass(
	numExamplesPerBatch, numFileTimesPerBatch int,
	perBatch ClassCounts,
	numExamplesInMemory, numFileTimesInMemory int,
	inMemory ClassCounts,
) ClassCounts {
	left := make(ClassCounts, len(perBatch))

	if numExamplesInMemory < numExamplesPerBatch || numFileTimesInMemory < numFileTimesPerBatch {
		for class, n := range perBatch {
			left[class] = n
		}
		return left
	}

	for class, n := range perBatch {
		left[class] = max(n-inMemory[class], 0)
	}
	return left
}

// NeedDeadStorms reports whether any negative (dead-storm) class still
// wants examples. When false, readers can skip dead storms entirely.
func NeedDeadStorms(counts ClassCounts) bool {
	for class, n := range counts {
		if class < 0 && n > 0 {
			return true
		}
	}
	return false
}

// CountClasses tallies target values over the classes a target spec
// declares. Values outside the declared set are ignored.
func CountClasses(targets []domain.TargetClass, target domain.TargetSpec) ClassCounts {
	counts := make(ClassCounts)
	for _, class := range target.Classes() {
		counts[class] = 0
	}
	for _, v := range targets {
		if _, ok := counts[v]; ok {
			counts[v]++
		}
	}
	return counts
}

// StoppingCriterion decides whether enough examples are in memory to cut
// a batch. It returns the in-memory class tally alongside the decision.
//
// With a sampling spec, reading stops only when the file-time quota is
// met and every class has filled its per-batch allowance. Without one,
// the total example count is all that matters.
func StoppingCriterion(
	numExamplesPerBatch, numFileTimesPerBatch int,
	perBatch ClassCounts,
	numFileTimesInMemory int,
	spec *SamplingSpec,
	target domain.TargetSpec,
	targetsInMemory []domain.TargetClass,
) (ClassCounts, bool) {
	inMemory := CountClasses(targetsInMemory, target)

	if numFileTimesInMemory < numFileTimesPerBatch {
		return inMemory, false
	}

	if spec == nil {
		return inMemory, len(targetsInMemory) >= numExamplesPerBatch
	}

	for class, wanted := range perBatch {
		if inMemory[class] < wanted {
			return inMemory, false
		}
	}
	return inMemory, true
}
