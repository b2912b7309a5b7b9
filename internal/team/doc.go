// Package team coordinates a meeting's agent team. An orchestrator (eva)
// classifies meeting content into tasks for specialist agents (sop, cro,
// scrum); the coordinator owns the task ledger, enforces the task lifecycle,
// and relays inter-agent messages. All coordinator methods run on the
// meeting's serial lane; only the LLM calls happen off-lane.
package team
