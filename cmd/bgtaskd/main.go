// bgtaskd is a demonstration host for the background task engine. It loads
// configuration, wires the runner and its dispatch driver together, submits
// a few sample tasks, and drains gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pfenwick/bgtasks/internal/config"
	"github.com/pfenwick/bgtasks/internal/platform/logger"
	"github.com/pfenwick/bgtasks/internal/task"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bgtaskd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Log)

	runner, err := task.NewRunner(task.RunnerConfig{
		MaxRunningTasks: cfg.Engine.MaxRunningTasks,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create task runner: %w", err)
	}

	driver := task.NewDriver(runner, cfg.Engine.RunInterval, log)
	driver.Start()

	runner.AddTasks(sampleTasks(cfg, log)...)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	stop()

	log.Info("shutdown signal received")

	drainCtx, cancel := context.WithTimeout(context.Background(),
		cfg.Engine.ShutdownTimeout)
	defer cancel()

	if err := driver.Stop(drainCtx); err != nil {
		log.Warn("drain incomplete, abandoning remaining tasks", "error", err)
	}
	return nil
}

// sampleTasks gives the daemon something to chew on out of the box.
func sampleTasks(cfg *config.Config, log *slog.Logger) []*task.Task {
	work := func(ctx context.Context, params task.TaskParams) error {
		d, _ := params.Data.(time.Duration)
		time.Sleep(d)
		log.Info("sample task finished", "slept", d)
		return nil
	}

	return []*task.Task{
		task.NewTask(work, task.TaskParams{Data: 200 * time.Millisecond},
			task.WithName("sample"),
			task.WithMaxRetries(cfg.Engine.DefaultMaxRetries)),
		task.NewTask(work, task.TaskParams{Data: 500 * time.Millisecond},
			task.WithName("sample"),
			task.WithMaxRetries(cfg.Engine.DefaultMaxRetries),
			task.WithTimeout(2*time.Second)),
	}
}
