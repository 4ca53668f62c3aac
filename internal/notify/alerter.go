package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/crossarb/internal/models"
)

// Embed colours.
const (
	ColorGreen        = 0x00ff00
	ColorYellow       = 0xffff00
	ColorRed          = 0xff0000
	ColorGray         = 0x808080
	ColorPlatformDown = 0xff9900
)

var tierColors = map[string]int{
	"green":  ColorGreen,
	"yellow": ColorYellow,
	"red":    ColorRed,
}

var tierIcons = map[string]string{
	"green":  "🟢",
	"yellow": "🟡",
	"red":    "🔴",
}

const maxDescriptionLen = 200

// Alerter renders domain events into messages and tracks which platforms
// have already been reported down.
type Alerter struct {
	notifier *Notifier

	mu   sync.Mutex
	down map[models.Platform]bool
}

// NewAlerter creates an Alerter delivering through n.
func NewAlerter(n *Notifier) *Alerter {
	return &Alerter{notifier: n, down: make(map[models.Platform]bool)}
}

// Enabled reports whether any channel is configured.
func (a *Alerter) Enabled() bool {
	return a.notifier.Len() > 0
}

// SendOpportunity delivers an opportunity alert.
func (a *Alerter) SendOpportunity(ctx context.Context, alert models.Alert) error {
	return a.notifier.Notify(ctx, FormatAlert(alert))
}

// CheckPlatform sends a platform-down message the first time status turns
// unhealthy and a recovery message once it is healthy again. It reports
// whether a message was sent.
func (a *Alerter) CheckPlatform(ctx context.Context, status models.PlatformStatus) (bool, error) {
	a.mu.Lock()
	wasDown := a.down[status.Platform]
	switch {
	case !status.Healthy && !wasDown:
		a.down[status.Platform] = true
	case status.Healthy && wasDown:
		delete(a.down, status.Platform)
	default:
		a.mu.Unlock()
		return false, nil
	}
	a.mu.Unlock()

	if status.Healthy {
		return true, a.notifier.Notify(ctx, FormatPlatformRecovered(status))
	}
	return true, a.notifier.Notify(ctx, FormatPlatformDown(status))
}

// SendCycleError reports repeated cycle failures.
func (a *Alerter) SendCycleError(ctx context.Context, err error, failures int) error {
	return a.notifier.Notify(ctx, Message{
		Title:       "⚠️ Monitoring cycle failing",
		Description: fmt.Sprintf("%d consecutive cycles failed.\nLast error: %v", failures, err),
		Color:       ColorRed,
	})
}

// SendRecovery reports that cycles succeed again after failures.
func (a *Alerter) SendRecovery(ctx context.Context, failures int) error {
	return a.notifier.Notify(ctx, Message{
		Title:       "✅ Monitoring recovered",
		Description: fmt.Sprintf("Cycles are succeeding again after %d failures.", failures),
		Color:       ColorGreen,
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func pct(p float64) string {
	return fmt.Sprintf("%d%%", int(p*100+0.5))
}

// DirectionText describes the trade in words.
func DirectionText(o models.ArbitrageOpportunity) string {
	a, b := o.PlatformA.DisplayName(), o.PlatformB.DisplayName()
	switch o.Direction {
	case models.DirectionBuyASellB:
		return fmt.Sprintf("Buy %s (%s) → Sell %s (%s)", a, pct(o.PriceA), b, pct(o.PriceB))
	case models.DirectionBuyBSellA:
		return fmt.Sprintf("Buy %s (%s) → Sell %s (%s)", b, pct(o.PriceB), a, pct(o.PriceA))
	default:
		return fmt.Sprintf("Buy YES on both: %s (%s) + %s (%s)", a, pct(o.PriceA), b, pct(o.PriceB))
	}
}

// FormatAlert renders an opportunity alert.
func FormatAlert(alert models.Alert) Message {
	o := alert.Opportunity
	color, ok := tierColors[alert.Tier.Color]
	if !ok {
		color = ColorGray
	}
	icon, ok := tierIcons[alert.Tier.Color]
	if !ok {
		icon = "⚪"
	}

	kind := "Opportunity"
	if o.IsInverse {
		kind = "Inverse Opportunity"
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "**Event:** %s\n\n", truncate(alert.A.Description, maxDescriptionLen))
	fmt.Fprintf(&desc, "**Direction:** %s\n", DirectionText(o))
	fmt.Fprintf(&desc, "**Net Profit:** %.2f%%\n", o.NetProfitPct)
	fmt.Fprintf(&desc, "**Required Capital:** $%s\n", formatMoney(o.RequiredCapital))
	fmt.Fprintf(&desc, "**Match:** %.0f%% similarity, grade %s", alert.Similarity*100, o.QualityGrade)

	return Message{
		Title:       fmt.Sprintf("%s %s %s Detected", icon, alert.Tier.Name, kind),
		Description: desc.String(),
		Color:       color,
		Fields: []Field{
			{Name: alert.A.Platform.DisplayName(), Value: "View Market", URL: alert.A.URL, Inline: true},
			{Name: alert.B.Platform.DisplayName(), Value: "View Market", URL: alert.B.URL, Inline: true},
			{
				Name: "Fees Breakdown",
				Value: fmt.Sprintf("%s: $%.2f\n%s: $%.2f\nTotal: $%.2f",
					o.PlatformA.DisplayName(), o.FeesA, o.PlatformB.DisplayName(), o.FeesB, o.TotalFees),
			},
		},
	}
}

// FormatPlatformDown renders a platform outage.
func FormatPlatformDown(status models.PlatformStatus) Message {
	name := status.Platform.DisplayName()
	desc := fmt.Sprintf("%s has failed %d consecutive polling attempts.\nMonitor will continue retrying.",
		name, status.ConsecutiveFailures)
	if status.LastError != "" {
		desc += "\nLast error: " + truncate(status.LastError, maxDescriptionLen)
	}
	return Message{
		Title:       fmt.Sprintf("⚠️ %s Platform Issue", name),
		Description: desc,
		Color:       ColorPlatformDown,
	}
}

// FormatPlatformRecovered renders the end of an outage.
func FormatPlatformRecovered(status models.PlatformStatus) Message {
	name := status.Platform.DisplayName()
	return Message{
		Title:       fmt.Sprintf("✅ %s Platform Recovered", name),
		Description: fmt.Sprintf("%s is responding again (%d markets).", name, status.MarketCount),
		Color:       ColorGreen,
	}
}

// formatMoney renders v with thousands separators and two decimals.
func formatMoney(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
