// Package task implements the background task engine: fire-and-forget units
// of work executed at most N at a time, with timeout-bounded retries and a
// graceful, host-driven shutdown. The engine is purely reactive; the host
// (or a Driver) calls RunTasks on its own cadence.
package task
