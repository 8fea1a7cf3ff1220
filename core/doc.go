// Package core defines the shared data model of the AgentRelay runtime: the
// Message entity persisted in thread stores, thread identity helpers, the
// RunResult returned by orchestrated runs and the error taxonomy used across
// packages.
//
// Messages are plain tagged structs rather than free-form maps. Provider
// specific payload fields not covered by the schema survive round trips
// through the Extra map so nothing is lost without silent schema drift.
package core
