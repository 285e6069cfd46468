// Package gemini implements generation.Client on Google's Gemini API.
//
// This package is an infrastructure adapter: it translates a single prompt
// into a GenerateContent call and maps the reply back into an answer and,
// for thinking models, the reasoning parts the API marks as thoughts.
//
// Error handling:
//   - Rate limits, timeouts and 5xx responses map to generation.ErrTransientFailure
//   - Safety blocks map to generation.ErrContentBlocked
//   - Empty or candidate-less replies map to generation.ErrInvalidResponse
//
// Retries are not performed here; callers retry through the batch package.
package gemini
