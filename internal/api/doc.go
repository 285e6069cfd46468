// Package api exposes the task service over HTTP.
//
// Routes (mounted under /api by cmd/server):
//
//	POST   /projects/{projectID}/tasks   create a task, 202 {"task_id"}
//	GET    /projects/{projectID}/tasks   list tasks, newest first
//	GET    /tasks/{taskID}               poll one task
//	PATCH  /tasks/{taskID}               partial update
//	POST   /tasks/{taskID}/abort         mark Aborted
//	DELETE /tasks/{taskID}               remove the record
//
// Errors are mapped to status codes by MapErrorToStatusCode and reported with
// a sanitized message and the request's trace ID; raw errors only reach the
// logs, redacted.
package api
