package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pfenwick/bgtasks/internal/task"
)

// Load reads configuration from an optional bgtasks.yaml file and from
// environment variables with the BGTASKS_ prefix. Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("engine.max_running_tasks", 10)
	v.SetDefault("engine.run_interval", task.DefaultRunInterval)
	v.SetDefault("engine.shutdown_timeout", 10*time.Second)
	v.SetDefault("engine.default_max_retries", task.DefaultMaxRetries)
	v.SetDefault("log.level", "info")

	v.SetConfigName("bgtasks")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BGTASKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults and environment cover everything.
	}

	// The concurrency cap is checked from the raw value so a non-integer
	// setting is reported distinctly from a negative one.
	maxRunning, err := task.ParseMaxRunningTasks(v.Get("engine.max_running_tasks"))
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Engine.MaxRunningTasks = maxRunning

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
