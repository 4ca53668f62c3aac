// Package dashboard renders a live terminal view of the monitor: platform
// health, recent opportunities, cycle statistics and log output.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/rewired-gh/crossarb/internal/models"
)

const (
	maxLogLines    = 8
	descriptionMax = 40
)

// OpportunityRow is one line of the opportunities table.
type OpportunityRow struct {
	Time        time.Time
	Description string
	Direction   string
	NetPct      float64
	Capital     float64
	Grade       models.Grade
	Tier        models.CapitalTier
	Similarity  float64
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	keys KeyMap
	help help.Model

	width    int
	maxRows  int
	paused   bool
	quitting bool

	statuses      []models.PlatformStatus
	opportunities []OpportunityRow
	logs          []string

	cycles       int
	failures     int
	lastCycle    time.Time
	lastDuration time.Duration
	lastMatches  int
	lastErr      string
	snapshot     *models.CycleSnapshot

	stats    models.HistoricalStats
	hasStats bool
}

// New creates a dashboard that keeps the last maxRows opportunities.
func New(maxRows int) Model {
	if maxRows <= 0 {
		maxRows = 20
	}
	return Model{
		keys:    DefaultKeyMap(),
		help:    help.New(),
		maxRows: maxRows,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.opportunities = nil
			m.logs = nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case CycleMsg:
		m.applyCycle(msg)

	case StatsMsg:
		m.stats = msg.Stats
		m.hasStats = true

	case LogMsg:
		if !m.paused {
			m.logs = addLog(m.logs, msg)
		}
	}

	return m, nil
}

// applyCycle folds a cycle outcome into the model. Counters always update;
// the opportunity feed is frozen while paused.
func (m *Model) applyCycle(msg CycleMsg) {
	m.cycles++
	if msg.Err != nil {
		m.failures++
		m.lastErr = msg.Err.Error()
	} else {
		m.lastErr = ""
	}

	r := msg.Result
	if r == nil {
		return
	}
	m.lastCycle = r.Timestamp
	m.lastDuration = r.Duration
	m.lastMatches = len(r.Matches)
	if len(r.Statuses) > 0 {
		m.statuses = r.Statuses
	}
	if r.Snapshot.ID != "" {
		snap := r.Snapshot
		m.snapshot = &snap
	}
	if m.paused {
		return
	}
	for _, o := range r.Profitable() {
		m.addOpportunity(OpportunityRow{
			Time:        r.Timestamp,
			Description: o.Match.A.Description,
			Direction:   o.Opportunity.DirectionLabel(),
			NetPct:      o.Opportunity.NetProfitPct,
			Capital:     o.Opportunity.RequiredCapital,
			Grade:       o.Opportunity.QualityGrade,
			Tier:        o.Tier,
			Similarity:  o.Match.Similarity,
		})
	}
}

func (m *Model) addOpportunity(row OpportunityRow) {
	m.opportunities = append([]OpportunityRow{row}, m.opportunities...)
	if len(m.opportunities) > m.maxRows {
		m.opportunities = m.opportunities[:m.maxRows]
	}
}

// addLog appends a formatted log line and keeps the most recent few.
func addLog(logs []string, msg LogMsg) []string {
	line := levelStyle(msg.Level).Render(
		fmt.Sprintf("[%s] %s: %s", msg.Time.Format("15:04:05"), msg.Level, msg.Message))
	logs = append(logs, line)
	if len(logs) > maxLogLines {
		logs = logs[len(logs)-maxLogLines:]
	}
	return logs
}

// Paused reports whether the feed is frozen.
func (m Model) Paused() bool {
	return m.paused
}

// Opportunities returns the rows currently shown, newest first.
func (m Model) Opportunities() []OpportunityRow {
	return m.opportunities
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(" Cross-Platform Arbitrage Monitor "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	left := m.renderPlatforms() + "\n\n" + m.renderStats()
	right := m.renderOpportunities()
	if m.width > 120 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			BoxStyle.Width(m.width/3-2).Render(left),
			BoxStyle.Width(m.width*2/3-2).Render(right)))
	} else {
		b.WriteString(BoxStyle.Render(left))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Render(right))
	}
	b.WriteString("\n")
	b.WriteString(BoxStyle.Render(m.renderLogs()))
	b.WriteString("\n")

	if m.paused {
		b.WriteString(PausedStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{fmt.Sprintf("Cycles: %d", m.cycles)}
	if m.failures > 0 {
		parts = append(parts, NegativeValue.Render(fmt.Sprintf("Failures: %d", m.failures)))
	}
	if !m.lastCycle.IsZero() {
		parts = append(parts, fmt.Sprintf("Last: %s (%s)",
			m.lastCycle.Format("15:04:05"), m.lastDuration.Round(time.Millisecond)))
	}
	parts = append(parts, fmt.Sprintf("Matches: %d", m.lastMatches))
	if m.lastErr != "" {
		parts = append(parts, NegativeValue.Render("Error: "+truncate(m.lastErr, 60)))
	}
	return strings.Join(parts, "  │  ")
}

func (m Model) renderPlatforms() string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render("PLATFORMS"))
	sb.WriteString("\n")
	if len(m.statuses) == 0 {
		sb.WriteString(MutedValue.Render("Waiting for first cycle..."))
		return sb.String()
	}
	for _, s := range m.statuses {
		if s.Healthy {
			sb.WriteString(HealthyStyle.Render("● " + s.Platform.DisplayName()))
			sb.WriteString(fmt.Sprintf("  %s markets", humanize.Comma(int64(s.MarketCount))))
		} else {
			sb.WriteString(UnhealthyStyle.Render("○ " + s.Platform.DisplayName()))
			sb.WriteString(fmt.Sprintf("  %d failures", s.ConsecutiveFailures))
			if s.LastError != "" {
				sb.WriteString(MutedValue.Render("  " + truncate(s.LastError, 40)))
			}
		}
		if s.BreakerState != "" && s.BreakerState != "closed" {
			sb.WriteString(MutedValue.Render("  breaker " + s.BreakerState))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderStats() string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render("STATISTICS"))
	if s := m.snapshot; s != nil {
		sb.WriteString(fmt.Sprintf("\nMarkets: %s", humanize.Comma(int64(s.TotalMarkets()))))
		sb.WriteString(fmt.Sprintf("\nProfitable: %d  Near-miss: %d  Inverse: %d",
			s.ProfitableMatches, s.NearMissMatches, s.InverseOpportunities))
		if s.AvgSimilarity != nil {
			sb.WriteString(fmt.Sprintf("\nAvg similarity: %.3f", *s.AvgSimilarity))
		}
		if s.MedianSpread != nil {
			sb.WriteString(fmt.Sprintf("\nMedian spread: %.3f", *s.MedianSpread))
		}
	}
	if m.hasStats {
		sb.WriteString(fmt.Sprintf("\nStored opportunities: %s", humanize.Comma(int64(m.stats.TotalOpportunities))))
		sb.WriteString(fmt.Sprintf("\nPotential profit: $%s", humanize.FormatFloat("#,###.##", m.stats.TotalProfit)))
		sb.WriteString(fmt.Sprintf("\nAvg net profit: %.2f%%", m.stats.AvgNetProfitPct))
	}
	if m.snapshot == nil && !m.hasStats {
		sb.WriteString("\n")
		sb.WriteString(MutedValue.Render("No data yet"))
	}
	return sb.String()
}

func (m Model) renderOpportunities() string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render(fmt.Sprintf("OPPORTUNITIES (last %d)", m.maxRows)))
	sb.WriteString("\n")
	if len(m.opportunities) == 0 {
		sb.WriteString(MutedValue.Render("No opportunities detected yet..."))
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("%-8s  %-*s  %-34s  %7s  %11s  %s\n",
		"Time", descriptionMax, "Market", "Direction", "Net", "Capital", "Grade"))
	for _, row := range m.opportunities {
		net := PositiveValue.Render(fmt.Sprintf("%6.2f%%", row.NetPct))
		capital := tierStyle(row.Tier.Color).Render(fmt.Sprintf("%11s", "$"+humanize.FormatFloat("#,###.##", row.Capital)))
		sb.WriteString(fmt.Sprintf("%-8s  %-*s  %-34s  %s  %s  %s\n",
			row.Time.Format("15:04:05"),
			descriptionMax, truncate(row.Description, descriptionMax),
			truncate(row.Direction, 34),
			net,
			capital,
			row.Grade,
		))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderLogs() string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render("LOG"))
	if len(m.logs) == 0 {
		sb.WriteString("\n")
		sb.WriteString(MutedValue.Render("Quiet so far"))
		return sb.String()
	}
	for _, line := range m.logs {
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// NewProgram creates the full-screen program for m.
func NewProgram(m Model) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}
