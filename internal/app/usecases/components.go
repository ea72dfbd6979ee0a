package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowsim/flowsim/internal/core/flowsheet"
)

// Builtin component errors
var (
	ErrMissingParam       = errors.New("required parameter missing")
	ErrInvalidParam       = errors.New("invalid parameter value")
	ErrInvalidInputDomain = errors.New("input outside valid domain")
)

// FlowIndex is the default position of the volumetric flow component within
// a stream vector, following the activated-sludge state convention.
const FlowIndex = 14

// Builtin component-type tags.
const (
	KindSource   = "source"
	KindCombiner = "combiner"
	KindSplitter = "splitter"
	KindCSTR     = "cstr"
	KindGain     = "gain"
	KindSink     = "sink"
)

// DefaultRegistry returns a registry with all builtin unit operations. The
// builtins are deliberately simple numerics; real kinetic models plug in
// through the same Factory contract.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of builtins cannot collide.
	_ = r.Register(KindSource, newSource)
	_ = r.Register(KindCombiner, newCombiner)
	_ = r.Register(KindSplitter, newSplitter)
	_ = r.Register(KindCSTR, newCSTR)
	_ = r.Register(KindGain, newGain)
	_ = r.Register(KindSink, newSink)
	return r
}

func flowIndexParam(params flowsheet.Params, width int) (int, error) {
	idx := int(params.Scalar("flow_index", FlowIndex))
	if idx < 0 || idx >= width {
		return 0, fmt.Errorf("flow_index %d out of range for stream width %d: %w", idx, width, ErrInvalidParam)
	}
	return idx, nil
}

func inputOrZero(inputs map[string]flowsheet.Stream, port string, width int) flowsheet.Stream {
	if s, ok := inputs[port]; ok && s != nil {
		return s
	}
	return flowsheet.ZeroStream(width)
}

// source emits a constant stream every step.
type source struct {
	out flowsheet.Stream
}

func newSource(nodeID string, width int, params flowsheet.Params) (Component, error) {
	vec, ok := params.Vector("output")
	if !ok {
		return nil, fmt.Errorf("source %q: parameter \"output\": %w", nodeID, ErrMissingParam)
	}
	if len(vec) != width {
		return nil, fmt.Errorf("source %q: output width %d != stream width %d: %w", nodeID, len(vec), width, ErrInvalidParam)
	}
	return &source{out: flowsheet.Stream(vec).Clone()}, nil
}

func (c *source) Step(_ context.Context, _ float64, _ map[string]flowsheet.Stream) (map[string]flowsheet.Stream, error) {
	return map[string]flowsheet.Stream{"out": c.out.Clone()}, nil
}

// combiner mixes all present input streams flow-weighted: concentrations are
// averaged by flow, flows add up.
type combiner struct {
	width   int
	flowIdx int
}

func newCombiner(nodeID string, width int, params flowsheet.Params) (Component, error) {
	idx, err := flowIndexParam(params, width)
	if err != nil {
		return nil, fmt.Errorf("combiner %q: %w", nodeID, err)
	}
	return &combiner{width: width, flowIdx: idx}, nil
}

func (c *combiner) Step(_ context.Context, _ float64, inputs map[string]flowsheet.Stream) (map[string]flowsheet.Stream, error) {
	out := flowsheet.ZeroStream(c.width)
	totalFlow := 0.0
	for _, s := range inputs {
		if s == nil {
			continue
		}
		q := s[c.flowIdx]
		if q < 0 {
			return nil, fmt.Errorf("negative flow %g: %w", q, ErrInvalidInputDomain)
		}
		totalFlow += q
		for i := range out {
			if i != c.flowIdx {
				out[i] += s[i] * q
			}
		}
	}
	if totalFlow > 0 {
		for i := range out {
			if i != c.flowIdx {
				out[i] /= totalFlow
			}
		}
	}
	out[c.flowIdx] = totalFlow
	return map[string]flowsheet.Stream{"out": out}, nil
}

// splitter divides the input into a main and a side stream. The side stream
// carries the configured side flow (capped by the available flow) at
// unchanged concentrations; the main stream carries the remainder.
type splitter struct {
	width    int
	flowIdx  int
	sideFlow float64
}

func newSplitter(nodeID string, width int, params flowsheet.Params) (Component, error) {
	idx, err := flowIndexParam(params, width)
	if err != nil {
		return nil, fmt.Errorf("splitter %q: %w", nodeID, err)
	}
	side := params.Scalar("side_flow", 0)
	if side < 0 {
		return nil, fmt.Errorf("splitter %q: side_flow %g: %w", nodeID, side, ErrInvalidParam)
	}
	return &splitter{width: width, flowIdx: idx, sideFlow: side}, nil
}

func (c *splitter) Step(_ context.Context, _ float64, inputs map[string]flowsheet.Stream) (map[string]flowsheet.Stream, error) {
	in := inputOrZero(inputs, "in", c.width)
	q := in[c.flowIdx]
	if q < 0 {
		return nil, fmt.Errorf("negative flow %g: %w", q, ErrInvalidInputDomain)
	}
	side := c.sideFlow
	if side > q {
		side = q
	}
	main := in.Clone()
	sideOut := in.Clone()
	main[c.flowIdx] = q - side
	sideOut[c.flowIdx] = side
	return map[string]flowsheet.Stream{"out": main, "side": sideOut}, nil
}

// cstr is a continuous stirred-tank with first-order decay, integrated with
// explicit Euler. It is a state-bearing (temporal) component: the tank
// contents persist across steps, which is what the warm-start guarantees of
// the executor exist for.
type cstr struct {
	width   int
	flowIdx int
	volume  float64
	rate    float64
	state   flowsheet.Stream
}

func newCSTR(nodeID string, width int, params flowsheet.Params) (Component, error) {
	idx, err := flowIndexParam(params, width)
	if err != nil {
		return nil, fmt.Errorf("cstr %q: %w", nodeID, err)
	}
	vol := params.Scalar("volume", 0)
	if vol <= 0 {
		return nil, fmt.Errorf("cstr %q: volume must be positive: %w", nodeID, ErrInvalidParam)
	}
	rate := params.Scalar("rate", 0)
	if rate < 0 {
		return nil, fmt.Errorf("cstr %q: rate must be non-negative: %w", nodeID, ErrInvalidParam)
	}
	state := flowsheet.ZeroStream(width)
	if y0, ok := params.Vector("y0"); ok {
		if len(y0) != width {
			return nil, fmt.Errorf("cstr %q: y0 width %d != stream width %d: %w", nodeID, len(y0), width, ErrInvalidParam)
		}
		state = flowsheet.Stream(y0).Clone()
	}
	return &cstr{width: width, flowIdx: idx, volume: vol, rate: rate, state: state}, nil
}

func (c *cstr) Step(_ context.Context, dt float64, inputs map[string]flowsheet.Stream) (map[string]flowsheet.Stream, error) {
	in := inputOrZero(inputs, "in", c.width)
	q := in[c.flowIdx]
	if q < 0 {
		return nil, fmt.Errorf("negative flow %g: %w", q, ErrInvalidInputDomain)
	}
	dilution := q / c.volume
	for i := range c.state {
		if i == c.flowIdx {
			continue
		}
		c.state[i] += dt * (dilution*(in[i]-c.state[i]) - c.rate*c.state[i])
	}
	out := c.state.Clone()
	out[c.flowIdx] = q // flow passes through
	return map[string]flowsheet.Stream{"out": out}, nil
}

// gain applies the affine map out = gain*in + offset. With |gain| < 1 it is a
// contraction in its input, so loops of gain nodes converge by fixed-point
// iteration.
type gain struct {
	width  int
	gain   float64
	offset flowsheet.Stream
}

func newGain(nodeID string, width int, params flowsheet.Params) (Component, error) {
	g := params.Scalar("gain", 1)
	offset := flowsheet.ZeroStream(width)
	if off, ok := params.Vector("offset"); ok {
		if len(off) != width {
			return nil, fmt.Errorf("gain %q: offset width %d != stream width %d: %w", nodeID, len(off), width, ErrInvalidParam)
		}
		offset = flowsheet.Stream(off).Clone()
	}
	return &gain{width: width, gain: g, offset: offset}, nil
}

func (c *gain) Step(_ context.Context, _ float64, inputs map[string]flowsheet.Stream) (map[string]flowsheet.Stream, error) {
	in := inputOrZero(inputs, "in", c.width)
	if len(in) != c.width {
		return nil, fmt.Errorf("input width %d != stream width %d: %w", len(in), c.width, ErrInvalidInputDomain)
	}
	out := flowsheet.ZeroStream(c.width)
	for i := range out {
		out[i] = c.gain*in[i] + c.offset[i]
	}
	return map[string]flowsheet.Stream{"out": out}, nil
}

// sink records its last input and passes it through, so observation edges can
// be attached downstream of it.
type sink struct {
	width int
	last  flowsheet.Stream
}

func newSink(_ string, width int, _ flowsheet.Params) (Component, error) {
	return &sink{width: width}, nil
}

func (c *sink) Step(_ context.Context, _ float64, inputs map[string]flowsheet.Stream) (map[string]flowsheet.Stream, error) {
	in := inputOrZero(inputs, "in", c.width)
	c.last = in.Clone()
	return map[string]flowsheet.Stream{"out": in.Clone()}, nil
}

// Last returns the most recent stream seen by the sink.
func (c *sink) Last() flowsheet.Stream { return c.last.Clone() }
