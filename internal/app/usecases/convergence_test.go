package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

func TestConvergencePolicy_Residual(t *testing.T) {
	tests := []struct {
		name    string
		mode    ConvergenceMode
		old     flowsheet.Stream
		current flowsheet.Stream
		want    float64
	}{
		{
			name: "absolute max change",
			mode: ConvergenceAbsolute,
			old:  flowsheet.Stream{1, 2, 3}, current: flowsheet.Stream{1.5, 2, 0},
			want: 3,
		},
		{
			name: "identical streams",
			mode: ConvergenceAbsolute,
			old:  flowsheet.Stream{1, 2}, current: flowsheet.Stream{1, 2},
			want: 0,
		},
		{
			name: "relative scales by old magnitude",
			mode: ConvergenceRelative,
			old:  flowsheet.Stream{1000, 1}, current: flowsheet.Stream{1010, 1},
			want: 0.01,
		},
		{
			name: "relative floors the denominator at one",
			mode: ConvergenceRelative,
			old:  flowsheet.Stream{0.001}, current: flowsheet.Stream{0.501},
			want: 0.5,
		},
		{
			name: "longer current counts extras at full magnitude",
			mode: ConvergenceAbsolute,
			old:  flowsheet.Stream{1}, current: flowsheet.Stream{1, 4},
			want: 4,
		},
		{
			name: "shorter current counts the missing tail",
			mode: ConvergenceAbsolute,
			old:  flowsheet.Stream{1, 7}, current: flowsheet.Stream{1},
			want: 7,
		},
		{
			name: "both empty",
			mode: ConvergenceAbsolute,
			old:  nil, current: nil,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ConvergencePolicy{Mode: tt.mode}
			assert.InDelta(t, tt.want, p.Residual(tt.old, tt.current), 1e-12)
		})
	}
}
