// Package batch runs a per-item operation over a collection of work items
// with a bounded number of operations in flight. It provides the three
// primitives every bulk job is built from: a bounded concurrency executor
// (Run), a fixed-delay retry wrapper (WithRetry), and a failure-isolating
// batch runner (RunBatch) that never lets a single item's failure escape the
// batch boundary.
package batch
