// Package config loads the server configuration from defaults, an optional
// config.yaml, a .env file and FORGE_* environment variables, and validates
// it before anything is started.
package config
