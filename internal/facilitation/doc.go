// Package facilitation implements the scrum master engine: a per-meeting
// state machine that tracks cumulative speaking time, applies the active
// mode policy (observer, enforcer, hardcore), and emits edge-triggered
// interventions plus content-derived blockers and action items.
//
// The engine is deliberately not goroutine-safe. Every mutation happens on
// the owning meeting's serial lane, which is what makes the edge-triggered
// threshold flags and monotonic speaker timers safe without locking.
// Classification runs off-lane; its results re-enter through ApplyFindings
// carrying the epoch they were requested under, and stale results are
// dropped rather than applied to a stopped or restarted session.
package facilitation
