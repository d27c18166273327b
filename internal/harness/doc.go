// Package harness runs navigation scenarios against survey definitions.
//
// A scenario names a survey file and a sequence of navigation steps. The
// harness compiles the survey, drives the engine step by step with the HCL
// evaluator, stores every response state in an in-memory store, and checks
// the expectations of each step and the final assertions.
//
// # Scenario Format
//
//	name: skip_ahead
//	description: "Answering yes skips the second group"
//	survey: ../surveys/basic.yaml
//	mode: GROUP_BY_GROUP
//	steps:
//	  - direction: start
//	    expect: { index: Group(G1) }
//	  - direction: next
//	    values: { Q1.value: "yes" }
//	    expect: { index: Group(G3), visible: [Q4] }
//	assertions:
//	  - type: never_visited
//	    codes: [G2]
//	  - type: final_state
//	    index: Group(G3)
//	    values: { Q1.value: "yes" }
//
// Indices use the compact form of ir.IndexString, with a trailing "!" when
// errors are shown.
//
// # Assertion Types
//
//   - visited: the codes were shown, in the given order
//   - never_visited: none of the codes was ever shown
//   - visit_count: the code was shown exactly N times
//   - final_state: the stored response has the index and values
//
// # Deterministic Testing
//
// Seeds come from scenario.seeds (default "seed-1") and stored identifiers
// are sequential, so the same scenario always produces the same trace. The
// trace is compared against testdata/golden/<name>.golden by RunWithGolden.
package harness
