package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Engine EngineConfig `mapstructure:"engine" validate:"required"`
	Log    LogConfig    `mapstructure:"log"    validate:"required"`
}

// EngineConfig contains the task engine settings.
type EngineConfig struct {
	// MaxRunningTasks caps concurrent task execution. Zero disables
	// dispatch entirely; admission is never bounded by it.
	MaxRunningTasks int `mapstructure:"max_running_tasks" validate:"gte=0"`

	// RunInterval is the cadence at which the driver triggers dispatch
	// cycles.
	RunInterval time.Duration `mapstructure:"run_interval" validate:"gt=0"`

	// ShutdownTimeout bounds the graceful drain on shutdown. Tasks still
	// running when it elapses are abandoned, not interrupted.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// DefaultMaxRetries is the attempt budget for tasks created without an
	// explicit one.
	DefaultMaxRetries int `mapstructure:"default_max_retries" validate:"gte=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}
