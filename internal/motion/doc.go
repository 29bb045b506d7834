// Package motion moves shopfloor entities along straight lines.
//
// Each tick moves every axis independently by a fixed step toward the
// target, snapping to the target once the remaining distance is within one
// step. Movement ends on exact equality with the target.
//
// Movements run either inline (MoveTowards) or as independent tasks
// (Start). A JoinSet names the subset of tasks a caller waits for; tasks
// left out of the set keep converging in the background.
package motion
