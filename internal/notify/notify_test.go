package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/crossarb/internal/models"
)

type recordingSender struct {
	name string
	err  error
	msgs []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifierFanOut(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	last := &recordingSender{name: "last"}
	n := NewNotifier(ok, bad, last)

	err := n.Notify(context.Background(), Message{Title: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Len(t, ok.msgs, 1)
	assert.Len(t, last.msgs, 1, "a failing sender must not block later ones")
	assert.False(t, ok.msgs[0].Timestamp.IsZero())

	assert.NoError(t, NewNotifier().Notify(context.Background(), Message{}))
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscordSender(server.URL)
	err := d.Send(context.Background(), Message{
		Title:  "title",
		Color:  ColorYellow,
		Fields: []Field{{Name: "Kalshi", Value: "View Market", URL: "https://kalshi.com/markets/X", Inline: true}},
	})
	require.NoError(t, err)
	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "title", e.Title)
	assert.Equal(t, 0xffff00, e.Color)
	assert.Equal(t, "[View Market](https://kalshi.com/markets/X)", e.Fields[0].Value)
	assert.True(t, e.Fields[0].Inline)
	assert.Equal(t, discordFooter, e.Footer.Text)
}

func TestDiscordSenderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := NewDiscordSender(server.URL).Send(context.Background(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func sampleAlert() models.Alert {
	return models.Alert{
		A: models.Market{Platform: models.PlatformKalshi, MarketID: "K1", Description: "Fed cuts rates in March", Price: 0.40, URL: "https://kalshi.com/markets/K1"},
		B: models.Market{Platform: models.PlatformPolymarket, MarketID: "P1", Description: "Fed cuts in March?", Price: 0.60, URL: "https://polymarket.com/event/fed"},
		Opportunity: models.ArbitrageOpportunity{
			Direction:       models.DirectionBuyASellB,
			PlatformA:       models.PlatformKalshi,
			PlatformB:       models.PlatformPolymarket,
			PriceA:          0.40,
			PriceB:          0.60,
			NetProfitPct:    45.1,
			RequiredCapital: 1413.5,
			FeesA:           12,
			FeesB:           1.5,
			TotalFees:       13.5,
			IsProfitable:    true,
			QualityGrade:    models.GradeA,
		},
		Tier:       models.CapitalTier{Max: 5000, Name: "Medium", Color: "yellow"},
		TierIndex:  1,
		Similarity: 0.97,
	}
}

func TestFormatAlert(t *testing.T) {
	msg := FormatAlert(sampleAlert())

	assert.Equal(t, "🟡 Medium Opportunity Detected", msg.Title)
	assert.Equal(t, ColorYellow, msg.Color)
	assert.Contains(t, msg.Description, "Buy Kalshi (40%) → Sell Polymarket (60%)")
	assert.Contains(t, msg.Description, "45.10%")
	assert.Contains(t, msg.Description, "$1,413.50")
	assert.Contains(t, msg.Description, "grade A")
	require.Len(t, msg.Fields, 3)
	assert.Equal(t, "https://kalshi.com/markets/K1", msg.Fields[0].URL)
	assert.Contains(t, msg.Fields[2].Value, "Total: $13.50")
}

func TestDirectionText(t *testing.T) {
	o := sampleAlert().Opportunity
	o.Direction = models.DirectionBuyBSellA
	assert.Equal(t, "Buy Polymarket (60%) → Sell Kalshi (40%)", DirectionText(o))

	o.Direction = models.DirectionInverse
	assert.Equal(t, "Buy YES on both: Kalshi (40%) + Polymarket (60%)", DirectionText(o))
}

func TestFormatAlertUnknownTierColour(t *testing.T) {
	a := sampleAlert()
	a.Tier.Color = "purple"
	a.Opportunity.IsInverse = true
	msg := FormatAlert(a)
	assert.Equal(t, ColorGray, msg.Color)
	assert.Contains(t, msg.Title, "Inverse Opportunity")
}

func TestCheckPlatformOncePerOutage(t *testing.T) {
	rec := &recordingSender{name: "rec"}
	a := NewAlerter(NewNotifier(rec))
	ctx := context.Background()

	down := models.PlatformStatus{Platform: models.PlatformPredictIt, Healthy: false, ConsecutiveFailures: 3, LastError: "timeout"}
	up := models.PlatformStatus{Platform: models.PlatformPredictIt, Healthy: true, MarketCount: 120}

	sent, err := a.CheckPlatform(ctx, up)
	require.NoError(t, err)
	assert.False(t, sent, "healthy platform that was never down sends nothing")

	sent, _ = a.CheckPlatform(ctx, down)
	assert.True(t, sent)
	sent, _ = a.CheckPlatform(ctx, down)
	assert.False(t, sent, "outage is reported once")

	sent, _ = a.CheckPlatform(ctx, up)
	assert.True(t, sent, "recovery re-arms the alert")
	sent, _ = a.CheckPlatform(ctx, down)
	assert.True(t, sent)

	require.Len(t, rec.msgs, 3)
	assert.Equal(t, ColorPlatformDown, rec.msgs[0].Color)
	assert.Contains(t, rec.msgs[0].Title, "PredictIt Platform Issue")
	assert.Contains(t, rec.msgs[0].Description, "failed 3 consecutive")
	assert.Contains(t, rec.msgs[0].Description, "timeout")
	assert.Contains(t, rec.msgs[1].Title, "Recovered")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
