// Package ollama implements generation.Client on a local or remote Ollama
// server using the official api package. Reasoning models report their
// thinking in a separate field which becomes the COT.
package ollama
