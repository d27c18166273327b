// Package engine navigates a compiled survey.
//
// A navigation step is a pure function of the compiled design, the stored
// response values and the caller's current position. The engine makes one
// batch call to the expression evaluator per step, then runs the
// navigation state machine over the evaluated bindings:
//
//  1. Draw random orders and priorities on Start (or fill missing ones).
//  2. Seed in_current_navigation for the units covered by the current index.
//  3. Sequence every error-free state and evaluate the batch.
//  4. Transition to the next index and reduce the ordered tree to it.
//
// The engine keeps no state between calls. Orders and priorities drawn on
// Start come back in Result.Values and must be supplied again by the caller
// to keep the layout stable.
package engine
