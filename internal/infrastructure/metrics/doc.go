// Package metrics exposes expvar-published counters used by the FlowSim
// executor (steps, loop iterations, node evaluations, non-convergences). It
// intentionally avoids external dependencies and is consumed via the standard
// /debug/vars endpoint when a process serves one.
package metrics
