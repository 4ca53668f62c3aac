// Package supervisor keeps a child process running, restarting it after
// crashes with a delay and a cap on restarts within a rolling window.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/rewired-gh/crossarb/internal/logger"
)

// ErrTooManyRestarts is returned when the restart cap is hit.
var ErrTooManyRestarts = errors.New("too many restarts")

const (
	DefaultMaxRestarts  = 3
	DefaultRestartDelay = 60 * time.Second
	DefaultWindow       = time.Hour

	// stopGrace is how long a child gets after SIGTERM before it is killed.
	stopGrace = 10 * time.Second
)

// RunFunc runs the child to completion and returns its exit code. A non-nil
// error means the child could not be run at all.
type RunFunc func(ctx context.Context) (int, error)

// Config tunes restart behavior.
type Config struct {
	MaxRestarts  int
	RestartDelay time.Duration
	Window       time.Duration
}

// Supervisor restarts a child that exits with a non-zero code.
type Supervisor struct {
	cfg     Config
	run     RunFunc
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	history []time.Time
}

// New creates a Supervisor. Zero config fields take the defaults.
func New(cfg Config, run RunFunc) *Supervisor {
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = DefaultMaxRestarts
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Supervisor{
		cfg:   cfg,
		run:   run,
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Run blocks until the child exits cleanly, ctx is cancelled, or the restart
// cap is reached.
func (s *Supervisor) Run(ctx context.Context) error {
	logger.Info("Starting supervisor (max %d restarts per %v, delay %v)",
		s.cfg.MaxRestarts, s.cfg.Window, s.cfg.RestartDelay)

	for {
		if n := s.recentRestarts(); n >= s.cfg.MaxRestarts {
			logger.Error("Restart rate exceeded: %d restarts in the last %v", n, s.cfg.Window)
			return fmt.Errorf("%w: %d within %v", ErrTooManyRestarts, n, s.cfg.Window)
		}

		logger.Info("Starting monitored process")
		code, err := s.run(ctx)
		if ctx.Err() != nil {
			logger.Info("Supervisor stopped")
			return nil
		}

		switch {
		case err != nil:
			logger.Error("Error running process: %v", err)
		case code == 0:
			logger.Info("Process exited cleanly")
			return nil
		default:
			logger.Warn("Process exited with code %d", code)
		}
		s.history = append(s.history, s.now())

		logger.Info("Waiting %v before restart", s.cfg.RestartDelay)
		if err := s.sleep(ctx, s.cfg.RestartDelay); err != nil {
			logger.Info("Supervisor stopped")
			return nil
		}
	}
}

// recentRestarts counts restarts inside the window and forgets older ones.
func (s *Supervisor) recentRestarts() int {
	cutoff := s.now().Add(-s.cfg.Window)
	kept := s.history[:0]
	for _, t := range s.history {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.history = kept
	return len(kept)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CommandRunner runs name with args, sharing the supervisor's stdout and
// stderr. Cancelling ctx sends the child SIGTERM and kills it after a grace
// period. When pidFile is set it holds the child's PID while it runs.
func CommandRunner(name string, args []string, pidFile string) RunFunc {
	return func(ctx context.Context) (int, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Cancel = func() error {
			return cmd.Process.Signal(syscall.SIGTERM)
		}
		cmd.WaitDelay = stopGrace

		if err := cmd.Start(); err != nil {
			return -1, fmt.Errorf("failed to start %s: %w", name, err)
		}
		logger.Info("Process started with PID %d", cmd.Process.Pid)
		if pidFile != "" {
			if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
				logger.Warn("Failed to write PID file: %v", err)
			}
			defer func() {
				if err := os.Remove(pidFile); err != nil && !errors.Is(err, os.ErrNotExist) {
					logger.Warn("Failed to remove PID file: %v", err)
				}
			}()
		}

		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return -1, err
		}
		return 0, nil
	}
}
