package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/crossarb/internal/models"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New()

	m.ObserveCycle(2*time.Second, nil)
	m.ObserveCycle(time.Second, errors.New("all platforms failed"))
	m.ObservePlatform(models.PlatformStatus{Platform: models.PlatformKalshi, Healthy: true, MarketCount: 42}, nil)
	m.ObservePlatform(models.PlatformStatus{Platform: models.PlatformPredictIt, Healthy: false}, errors.New("timeout"))
	m.ObserveOpportunity(models.ArbitrageOpportunity{QualityGrade: models.GradeA})
	m.ObserveOpportunity(models.ArbitrageOpportunity{QualityGrade: models.GradeB, IsInverse: true})
	m.ObserveAlert(nil)
	m.ObserveAlert(errors.New("webhook down"))
	m.SetMatches(7)

	out := scrape(t, m)
	for _, want := range []string{
		"crossarb_cycles_total 2",
		"crossarb_cycle_failures_total 1",
		"crossarb_cycle_duration_seconds_count 2",
		`crossarb_markets{platform="kalshi"} 42`,
		`crossarb_platform_healthy{platform="kalshi"} 1`,
		`crossarb_platform_healthy{platform="predictit"} 0`,
		`crossarb_poll_errors_total{platform="predictit"} 1`,
		`crossarb_opportunities_total{grade="A",kind="directional"} 1`,
		`crossarb_opportunities_total{grade="B",kind="inverse"} 1`,
		`crossarb_alerts_total{result="sent"} 1`,
		`crossarb_alerts_total{result="failed"} 1`,
		"crossarb_last_cycle_matches 7",
		"go_goroutines",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, `crossarb_markets{platform="predictit"}`, "failed poll leaves the market gauge unset")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCycle(time.Second, nil)
		m.ObservePlatform(models.PlatformStatus{Platform: models.PlatformKalshi}, nil)
		m.ObserveOpportunity(models.ArbitrageOpportunity{})
		m.ObserveAlert(nil)
		m.SetMatches(1)
	})
}
