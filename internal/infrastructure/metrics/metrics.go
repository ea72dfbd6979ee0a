package metrics

import (
	"expvar"
)

// Executor metrics (counters) published via expvar.
var (
	stepsTotal           = new(expvar.Int)
	loopIterationsTotal  = new(expvar.Int)
	nodeEvaluationsTotal = new(expvar.Int)
	nonConvergencesTotal = new(expvar.Int)
	rollbacksTotal       = new(expvar.Int)
	checkpointsTotal     = new(expvar.Int)
)

func init() {
	expvar.Publish("flowsim_steps_total", stepsTotal)
	expvar.Publish("flowsim_loop_iterations_total", loopIterationsTotal)
	expvar.Publish("flowsim_node_evaluations_total", nodeEvaluationsTotal)
	expvar.Publish("flowsim_nonconvergences_total", nonConvergencesTotal)
	expvar.Publish("flowsim_rollbacks_total", rollbacksTotal)
	expvar.Publish("flowsim_checkpoints_total", checkpointsTotal)
}

func IncSteps()                 { stepsTotal.Add(1) }
func IncLoopIterations(n int64) { loopIterationsTotal.Add(n) }
func IncNodeEvaluations(n int64) { nodeEvaluationsTotal.Add(n) }
func IncNonConvergences()       { nonConvergencesTotal.Add(1) }
func IncRollbacks()             { rollbacksTotal.Add(1) }
func IncCheckpoints()           { checkpointsTotal.Add(1) }
