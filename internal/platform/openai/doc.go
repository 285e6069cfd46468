// Package openai implements generation.Client for the OpenAI chat completions
// API and every endpoint that speaks it (OpenRouter, DeepSeek, vLLM, LM
// Studio, ...). The ModelInfo endpoint, when set, replaces the base URL.
package openai
