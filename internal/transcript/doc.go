// Package transcript normalizes incoming speech events into the canonical
// segment form consumed by the facilitation engine and the agent team
// coordinator.
//
// The package is pure: ordering and duplicate suppression are the connection
// hub's responsibility, and all state mutation driven by segments happens on
// the owning meeting's serial lane.
package transcript
