// Package logger provides structured logging functionality for the
// application, built on log/slog with JSON output.
package logger
