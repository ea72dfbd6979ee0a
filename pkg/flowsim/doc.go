// Package flowsim provides the public façade for building and running
// flowsheet simulations without importing internal packages. It re-exports
// the core graph and plan types for convenience and exposes a Runtime that
// loads a declarative document, builds the execution plan, and drives the
// simulation steps.
package flowsim
