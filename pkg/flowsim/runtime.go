package flowsim

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/flowsim/flowsim/internal/app/dto"
	"github.com/flowsim/flowsim/internal/app/services"
	"github.com/flowsim/flowsim/internal/app/usecases"
	"github.com/flowsim/flowsim/internal/core/checkpoint"
	"github.com/flowsim/flowsim/internal/core/flowsheet"
	"github.com/flowsim/flowsim/internal/core/plan"
	"github.com/flowsim/flowsim/internal/ctxlog"
	"github.com/flowsim/flowsim/pkg/config"
)

// Re-export core types for convenience.
type (
	Flowsheet  = flowsheet.Flowsheet
	Node       = flowsheet.Node
	Edge       = flowsheet.Edge
	Stream     = flowsheet.Stream
	Plan       = plan.Plan
	Stage      = plan.Stage
	StepResult = dto.StepResult
)

// Stage kinds, re-exported.
const (
	StageLinear = plan.StageLinear
	StageLoop   = plan.StageLoop
)

type options struct {
	registry *usecases.Registry
	saver    checkpoint.Saver
	resolver config.Resolver
	logger   *slog.Logger
}

// Option customizes runtime construction.
type Option func(*options)

// WithRegistry supplies a component registry; defaults to the builtin one.
// Callers extend the default registry to plug in their own unit operations.
func WithRegistry(r *usecases.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithCheckpointSaver enables periodic checkpoints through the given saver
// when the document's checkpoint_every is non-zero.
func WithCheckpointSaver(s checkpoint.Saver) Option {
	return func(o *options) { o.saver = s }
}

// WithResolver overrides the parameter resolver; defaults to a table
// resolver over the document's parameter table.
func WithResolver(r config.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithLogger sets the logger used for run events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Runtime binds a validated document, its flowsheet, the execution plan, and
// a step executor.
type Runtime struct {
	doc    *config.Document
	fs     *flowsheet.Flowsheet
	plan   *plan.Plan
	exec   *usecases.StepExecutor
	logger *slog.Logger
}

// New builds a runtime from a document. All configuration errors (malformed
// references, bad parameters, unknown component types) surface here, before
// any simulation step executes.
func New(doc *config.Document, opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = usecases.DefaultRegistry()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.resolver == nil {
		resolver, err := config.NewTableResolver(doc.Parameters)
		if err != nil {
			return nil, err
		}
		o.resolver = resolver
	}

	fs, err := config.BuildFlowsheet(doc, o.resolver)
	if err != nil {
		return nil, err
	}

	p, err := plan.Build(fs, plan.Options{
		Tolerance:     doc.Simulation.Tolerance,
		MaxIterations: doc.Simulation.MaxIterations,
		Relaxation:    doc.Simulation.Relaxation,
	})
	if err != nil {
		return nil, err
	}

	exec, err := usecases.NewStepExecutor(fs, p, o.registry, usecases.ExecutorConfig{
		ConvergenceMode: usecases.ConvergenceMode(doc.Simulation.ConvergenceMode),
		NonConvergence:  dto.NonConvergencePolicy(doc.Simulation.OnNonConvergence),
		CheckpointEvery: doc.Simulation.CheckpointEvery,
	})
	if err != nil {
		return nil, err
	}
	if o.saver != nil {
		exec.SetCheckpointService(services.NewCheckpointService(o.saver))
	}

	return &Runtime{doc: doc, fs: fs, plan: p, exec: exec, logger: o.logger}, nil
}

// LoadFile builds a runtime from a JSON or YAML document file.
func LoadFile(path string, opts ...Option) (*Runtime, error) {
	doc, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(doc, opts...)
}

// Flowsheet returns the built graph.
func (rt *Runtime) Flowsheet() *flowsheet.Flowsheet { return rt.fs }

// Plan returns the execution plan.
func (rt *Runtime) Plan() *plan.Plan { return rt.plan }

// Executor returns the underlying step executor for fine-grained control.
func (rt *Runtime) Executor() *usecases.StepExecutor { return rt.exec }

// Step advances the simulation by one timestep.
func (rt *Runtime) Step(ctx context.Context) (*dto.StepResult, error) {
	ctx = ctxlog.WithLogger(ctx, rt.logger)
	return rt.exec.AdvanceStep(ctx, rt.doc.Simulation.Timestep)
}

// Run advances the simulation until end_time, recording the observed edges
// after every step. On error the results collected so far are returned
// alongside it.
func (rt *Runtime) Run(ctx context.Context) (*Results, error) {
	steps := int(math.Ceil(rt.doc.Simulation.EndTime / rt.doc.Simulation.Timestep))
	results := newResults(rt.fs, rt.doc.Observe)

	rt.logger.Info("starting run",
		"flowsheet", rt.fs.ID,
		"steps", steps,
		"stages", len(rt.plan.Stages),
		"loops", rt.plan.LoopCount())

	for i := 0; i < steps; i++ {
		res, err := rt.Step(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i, err)
		}
		results.record(res.SimTime, rt.exec)
	}

	rt.logger.Info("run finished", "flowsheet", rt.fs.ID, "steps", steps)
	return results, nil
}

// Results is the time-indexed table of observed edge values: one row per
// completed step, one column per observed numeric component.
type Results struct {
	EdgeIDs []string
	Columns []string
	Times   []float64
	Rows    [][]float64

	widths map[string]int
}

func newResults(fs *flowsheet.Flowsheet, observe []string) *Results {
	r := &Results{EdgeIDs: observe, widths: make(map[string]int, len(observe))}
	for _, edgeID := range observe {
		r.widths[edgeID] = fs.StreamWidth
		for i := 0; i < fs.StreamWidth; i++ {
			r.Columns = append(r.Columns, fmt.Sprintf("%s[%d]", edgeID, i))
		}
	}
	return r
}

func (r *Results) record(simTime float64, exec *usecases.StepExecutor) {
	row := make([]float64, 0, len(r.Columns))
	for _, edgeID := range r.EdgeIDs {
		width := r.widths[edgeID]
		if val, ok := exec.EdgeValue(edgeID); ok {
			for i := 0; i < width; i++ {
				if i < len(val) {
					row = append(row, val[i])
				} else {
					row = append(row, 0)
				}
			}
		} else {
			row = append(row, make([]float64, width)...)
		}
	}
	r.Times = append(r.Times, simTime)
	r.Rows = append(r.Rows, row)
}

// StepCount returns the number of recorded rows.
func (r *Results) StepCount() int { return len(r.Rows) }

// Last returns the final value recorded for an edge, or nil when nothing was
// recorded.
func (r *Results) Last(edgeID string) []float64 {
	if len(r.Rows) == 0 {
		return nil
	}
	offset := 0
	for _, id := range r.EdgeIDs {
		width := r.widths[id]
		if id == edgeID {
			last := r.Rows[len(r.Rows)-1]
			return last[offset : offset+width]
		}
		offset += width
	}
	return nil
}
