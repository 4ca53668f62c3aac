package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/monitor"
)

// CycleMsg carries the outcome of one monitoring cycle.
type CycleMsg struct {
	Result *monitor.CycleResult
	Err    error
}

// StatsMsg carries refreshed historical totals.
type StatsMsg struct {
	Stats models.HistoricalStats
}

// LogMsg is one emitted log line.
type LogMsg struct {
	Level   string
	Message string
	Time    time.Time
}

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// StatsSource reports totals over every stored opportunity.
type StatsSource interface {
	HistoricalStats(ctx context.Context) (models.HistoricalStats, error)
}

// LogHook returns a logger hook that forwards log lines to s.
func LogHook(s Sender) func(level, msg string) {
	return func(level, msg string) {
		s.Send(LogMsg{Level: level, Message: msg, Time: time.Now()})
	}
}

// CycleHook returns a scheduler callback that forwards each cycle to s and,
// when stats is non-nil, follows it with refreshed historical totals.
func CycleHook(ctx context.Context, s Sender, stats StatsSource) func(*monitor.CycleResult, error) {
	return func(result *monitor.CycleResult, err error) {
		s.Send(CycleMsg{Result: result, Err: err})
		if stats == nil {
			return
		}
		st, serr := stats.HistoricalStats(ctx)
		if serr != nil {
			s.Send(LogMsg{Level: "warn", Message: "stats refresh failed: " + serr.Error(), Time: time.Now()})
			return
		}
		s.Send(StatsMsg{Stats: st})
	}
}
