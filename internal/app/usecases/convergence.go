package usecases

import (
	"math"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

// ConvergenceMode selects how tear-edge residuals are measured.
type ConvergenceMode string

const (
	// ConvergenceAbsolute measures max |new - old| across all components.
	ConvergenceAbsolute ConvergenceMode = "absolute"
	// ConvergenceRelative measures max |new - old| / max(1, |old|), which
	// keeps large-magnitude flow components from dominating the criterion.
	ConvergenceRelative ConvergenceMode = "relative"
)

// ConvergencePolicy measures the change of one tear edge between iterations.
type ConvergencePolicy struct {
	Mode ConvergenceMode
}

// Residual returns the scalar change between the previous and current value
// of a tear edge. Length mismatches count the extra components at full
// magnitude so a width change can never converge silently.
func (p ConvergencePolicy) Residual(old, current flowsheet.Stream) float64 {
	n := len(old)
	if len(current) > n {
		n = len(current)
	}
	max := 0.0
	for i := 0; i < n; i++ {
		var o, c float64
		if i < len(old) {
			o = old[i]
		}
		if i < len(current) {
			c = current[i]
		}
		d := math.Abs(c - o)
		if p.Mode == ConvergenceRelative {
			d /= math.Max(1, math.Abs(o))
		}
		if d > max {
			max = d
		}
	}
	return max
}
