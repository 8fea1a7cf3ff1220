// Package runner drives orchestrated runs: it resolves the recipient agent,
// enforces communication gating, replays the thread view through the agent's
// model, executes requested tools (including delegation to other agents),
// validates candidate responses and persists the outcome.
//
// A run moves through preparing, gated, running, optionally validating loops,
// and persisting. Streaming consumers observe the run through a merged event
// stream whose final-result slot settles exactly once.
package runner
