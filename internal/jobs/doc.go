// Package jobs holds the task handlers that turn documents into dataset
// records: text-processing, question-generation, answer-generation,
// data-distillation and dataset-evaluation.
//
// Every job reads its input from the task's detail, processes the items
// through batch.RunBatch with the configured concurrency and retry policy,
// mirrors progress into the task record and finishes with a Detail document
// of the form {input, summary, results, errors}. Per-item failures land in
// errors; only job-level problems (bad input, no model client, shutdown)
// fail the task.
package jobs
