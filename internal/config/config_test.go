package config

import (
	"testing"

	"bbofeed/internal/ferr"
	"bbofeed/internal/model"
)

func TestValidateAcceptsKnownVenues(t *testing.T) {
	cfg := Config{
		Spot: map[string][]string{"binance": {"BTCUSDT"}, "kraken": {"ETHUSD"}},
		Perp: map[string][]string{"lighter": {"BTC-USDT"}},
	}
	if err := cfg.Validate(model.Spot); err != nil {
		t.Fatalf("Validate(Spot): %v", err)
	}
	if err := cfg.Validate(model.Perp); err != nil {
		t.Fatalf("Validate(Perp): %v", err)
	}
}

func TestValidateRejectsUnknownVenue(t *testing.T) {
	cfg := Config{Spot: map[string][]string{"kucoin": {"BTCUSDT"}}}
	err := cfg.Validate(model.Spot)
	if err == nil {
		t.Fatalf("expected ConfigError for unknown venue")
	}
	if _, ok := err.(*ferr.ConfigError); !ok {
		t.Fatalf("error = %T, want *ferr.ConfigError", err)
	}
}

func TestCoinbaseIsSpotOnlyVenue(t *testing.T) {
	if !KnownVenue("coinbase", model.Spot) {
		t.Fatalf("coinbase should be a known spot venue")
	}
	if KnownVenue("coinbase", model.Perp) {
		t.Fatalf("coinbase should not be a known perp venue")
	}
}

func TestKrakenIsSpotOnlyVenue(t *testing.T) {
	if KnownVenue("kraken", model.Perp) {
		t.Fatalf("kraken should not be a known perp venue")
	}
}
