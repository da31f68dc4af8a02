// Package config handles configuration loading, parsing, and validation
// from environment variables and optional config files. It provides
// type-safe access to the engine and logging settings while keeping
// configuration details separate from the engine itself.
package config
