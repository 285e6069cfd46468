// Package task manages long-running batch jobs: the persisted Task record
// and its state machine, the dispatcher that creates a task and drives its
// job handler in a supervised background goroutine, the progress reporter
// handlers use to mirror item completion into the record, and the sweeper
// that fails tasks orphaned by a crash or restart so pollers always observe
// a terminal state.
package task
