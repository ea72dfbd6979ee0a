// Package prebuilt provides ready-made flowsheet documents: a recycle plant
// layout with two feedback streams and a minimal contraction loop. They serve
// as runnable examples and as fixtures for integration tests.
package prebuilt
