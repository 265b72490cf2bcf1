// Package task defines the unit of work the gateway scheduler runs.
//
// A task carries a due time and, when executed, returns a tagged Result
// instead of using errors for control flow:
//
//	return task.Continue(t, nowMs+5000), nil    // run me again in 5s
//	return task.Spawn(transportA, transportB), nil
//	return task.Done(), nil                     // finished
//	return task.Stop(), nil                     // terminate the scheduler
//
// Errors returned from Execute are reserved for unexpected failures: the
// scheduler logs them and drops the task.
package task
