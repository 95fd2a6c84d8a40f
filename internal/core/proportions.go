package core

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidProportions = errors.New("invalid proportions")

// ProportionSettings splits shared expenses between the two parties, in percent.
type ProportionSettings struct {
	P1 float64 `json:"person1"`
	P2 float64 `json:"person2"`
}

// DefaultProportions is an even split.
func DefaultProportions() ProportionSettings {
	return ProportionSettings{P1: 50, P2: 50}
}

// Validate requires both values in [0,100] summing to 100.
func (p ProportionSettings) Validate() error {
	if math.IsNaN(p.P1) || math.IsNaN(p.P2) {
		return fmt.Errorf("%w: not a number", ErrInvalidProportions)
	}
	if p.P1 < 0 || p.P1 > 100 || p.P2 < 0 || p.P2 > 100 {
		return fmt.Errorf("%w: %v/%v out of range", ErrInvalidProportions, p.P1, p.P2)
	}
	if !NearlyEqual(p.P1+p.P2, 100) {
		return fmt.Errorf("%w: %v + %v != 100", ErrInvalidProportions, p.P1, p.P2)
	}
	return nil
}

// Normalize repairs a pair that does not sum to 100 by scaling both values.
// Negative or NaN inputs count as zero; an all-zero pair becomes 50/50.
func (p ProportionSettings) Normalize() ProportionSettings {
	if p.Validate() == nil {
		return p
	}
	p1, p2 := clampNonNegative(p.P1), clampNonNegative(p.P2)
	sum := p1 + p2
	if sum == 0 || math.IsInf(sum, 0) {
		return DefaultProportions()
	}
	n1 := Round2(p1 * 100 / sum)
	return ProportionSettings{P1: n1, P2: Round2(100 - n1)}
}

func clampNonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
