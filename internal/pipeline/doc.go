// Package pipeline implements the Tellus seven-stage analytical workflow:
// concurrent multi-source intake, tag validation, threshold evaluation,
// convergence scoring, resistance linking, triage, and source verification.
// It defines the Pipeline (pure stage logic), Service (run lifecycle, async
// dispatch, persistence, notification), Store interface, and run records.
package pipeline
