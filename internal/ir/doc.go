// Package ir provides the survey data model shared by every other package.
//
// This package contains the component tree (Survey, Group, Question, Answer),
// the instruction catalogue attached to each node, the reserved-code catalogue,
// dependency keys, navigation types, and the compiled artifact that crosses the
// boundary between the compiler and the navigation engine. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Trees are immutable. Every rewrite goes through Component.Duplicate and
//     returns a new value; nothing holds a parent pointer.
//   - Instruction, NavigationIndex and NavigationDirection are sealed
//     interfaces. Only the types in this package implement them, and every
//     type switch over them handles each variant.
//   - All JSON tags use snake_case.
package ir
