package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/supervisor"
)

var (
	binary       = flag.String("binary", "", "Monitor binary to supervise (default: crossarb next to this executable)")
	maxRestarts  = flag.Int("max-restarts", supervisor.DefaultMaxRestarts, "Restarts allowed per rolling window")
	restartDelay = flag.Duration("restart-delay", supervisor.DefaultRestartDelay, "Delay before restarting a crashed process")
	window       = flag.Duration("window", supervisor.DefaultWindow, "Rolling window for the restart cap")
	pidFile      = flag.String("pid-file", "crossarb.pid", "File holding the child PID while it runs (empty disables)")
	logLevel     = flag.String("log-level", "info", "Log level")
	logFormat    = flag.String("log-format", "text", "Log format (json or text)")
)

// Arguments after "--" are passed to the child, e.g.
//
//	crossarb-supervisor -- -config configs/config.yaml
func main() {
	flag.Parse()
	logger.Init(*logLevel, *logFormat)

	bin := *binary
	if bin == "" {
		self, err := os.Executable()
		if err != nil {
			log.Fatalf("Failed to locate executable: %v", err)
		}
		bin = filepath.Join(filepath.Dir(self), "crossarb")
	}
	logger.Info("Supervising %s %v", bin, flag.Args())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := supervisor.New(supervisor.Config{
		MaxRestarts:  *maxRestarts,
		RestartDelay: *restartDelay,
		Window:       *window,
	}, supervisor.CommandRunner(bin, flag.Args(), *pidFile))

	if err := s.Run(ctx); err != nil {
		logger.Fatal("Supervisor exiting: %v", err)
	}
}
