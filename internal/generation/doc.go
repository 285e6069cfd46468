// Package generation defines the language model client used by task
// handlers, the provider registry that builds clients from a task's model
// info, and helpers for pulling reasoning and JSON out of model answers.
//
// Provider implementations live under internal/platform (gemini, openai,
// ollama); this package depends on none of them.
package generation
