package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/platform"
)

func TestGetActiveMarkets_RealAPIFormat(t *testing.T) {
	// Create a mock server that returns data in real Gamma API format
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("Expected path /markets, got %s", r.URL.Path)
		}
		query := r.URL.Query()
		if query.Get("closed") != "false" {
			t.Errorf("Expected closed=false, got %s", query.Get("closed"))
		}
		if query.Get("limit") != "1000" {
			t.Errorf("Expected limit=1000, got %s", query.Get("limit"))
		}

		markets := []PolymarketMarket{
			{
				ID:            "501",
				ConditionID:   "0xabc",
				Question:      "Will the Republicans win the Georgia Senate race?",
				Slug:          "georgia-senate-2026",
				Outcomes:      "[\"Yes\", \"No\"]",
				OutcomePrices: "[\"0.48\", \"0.52\"]",
				Active:        true,
				EndDateIso:    "2026-11-03",
			},
			{
				ID:            "502",
				Question:      "Who wins the NBA Finals?",
				Outcomes:      "[\"Lakers\", \"Celtics\", \"Other\"]",
				OutcomePrices: "[\"0.3\", \"0.3\", \"0.4\"]",
				Active:        true,
			},
			{
				ID:            "503",
				Question:      "Closed market",
				Outcomes:      "[\"Yes\", \"No\"]",
				OutcomePrices: "[\"0.5\", \"0.5\"]",
				Active:        true,
				Closed:        true,
			},
			{
				ID:            "504",
				Question:      "Malformed prices",
				Outcomes:      "[\"Yes\", \"No\"]",
				OutcomePrices: "not json",
				Active:        true,
			},
			{
				ID:            "505",
				Title:         "Fed cuts rates by March?",
				Outcomes:      "[\"Yes\", \"No\"]",
				OutcomePrices: "[\"0.999\", \"0.001\"]",
				Active:        true,
				EndDate:       "2026-03-31T12:00:00Z",
			},
		}
		json.NewEncoder(w).Encode(markets)
	}))
	defer mockServer.Close()

	client := NewClient(platform.Config{BaseURL: mockServer.URL, Timeout: 5 * time.Second, MaxRetries: 1})
	markets, err := client.GetActiveMarkets(context.Background())
	if err != nil {
		t.Fatalf("GetActiveMarkets failed: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("Expected 2 binary markets, got %d: %+v", len(markets), markets)
	}

	ga := markets[0]
	if ga.MarketID != "0xabc" {
		t.Errorf("Expected conditionId as market ID, got %s", ga.MarketID)
	}
	if ga.Price != 0.48 {
		t.Errorf("Expected first outcome price 0.48, got %v", ga.Price)
	}
	if ga.URL != "https://polymarket.com/event/georgia-senate-2026" {
		t.Errorf("Unexpected URL %s", ga.URL)
	}
	if ga.CloseTime != "2026-11-03" {
		t.Errorf("Expected endDateIso, got %s", ga.CloseTime)
	}
	if ga.Platform != models.PlatformPolymarket {
		t.Errorf("Expected platform polymarket, got %s", ga.Platform)
	}

	fed := markets[1]
	if fed.MarketID != "505" || fed.Description != "Fed cuts rates by March?" {
		t.Errorf("Expected id and title fallbacks, got %+v", fed)
	}
	if fed.Price != models.MaxPrice {
		t.Errorf("Expected clamped price, got %v", fed.Price)
	}
	if fed.URL != "https://polymarket.com/event/505" {
		t.Errorf("Expected ID slug fallback, got %s", fed.URL)
	}
	if fed.CloseTime != "2026-03-31T12:00:00Z" {
		t.Errorf("Expected endDate fallback, got %s", fed.CloseTime)
	}
}

func TestGetActiveMarkets_ServerError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "not an array"}`))
	}))
	defer mockServer.Close()

	client := NewClient(platform.Config{BaseURL: mockServer.URL, MaxRetries: 1})
	if _, err := client.GetActiveMarkets(context.Background()); err == nil {
		t.Fatal("Expected decode error")
	}
	if client.Status().ConsecutiveFailures != 1 {
		t.Errorf("Expected failure to be recorded")
	}
}
