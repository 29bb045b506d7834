// Package job models work orders: a Job is an ordered chain of process
// steps, each made of operations, with status and progress tracked at
// every level.
//
// Jobs are built from a Catalog of process-step templates. Every Job gets
// deep copies of its steps, so concurrent Jobs never share mutable state.
// One lock per Job guards the Job, its steps, and their operations.
package job
