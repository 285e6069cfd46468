// Package logger sets up the process-wide JSON slog logger and carries
// request- and task-scoped loggers through context.Context.
package logger
