// Package progress evaluates plan deltas reported by long-running tasks.
//
// Evaluate is a pure function of its PlanDelta: the decision selects a row
// of the decision table and exhausted retry evidence forces an abort. Plan
// deltas arriving as JSON are validated against an embedded schema before
// decoding. The package also estimates the point cost of amended plans and
// can propose a cheaper degraded plan when a budget would be exceeded.
package progress
