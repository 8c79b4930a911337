package ratelimit

import (
	"net/http"
	"testing"
)

func TestBinanceUsedWeightParsesHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-MBX-USED-WEIGHT-1m", "37")
	if got := BinanceUsedWeight(h); got != 37 {
		t.Fatalf("BinanceUsedWeight = %d, want 37", got)
	}
}

func TestBinanceUsedWeightMissingHeaderIsZero(t *testing.T) {
	if got := BinanceUsedWeight(http.Header{}); got != 0 {
		t.Fatalf("BinanceUsedWeight = %d, want 0 for a missing header", got)
	}
}

func TestBybitUsedWeightPrefersLegacyHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Bapi-Limit", "100")
	h.Set("X-Bapi-Limit-Status", "80")
	h.Set("X-RateLimit-Limit", "999")
	h.Set("X-RateLimit-Remaining", "999")

	w := BybitUsedWeight(h)
	if w != (Weight{Exchange: "bybit", Used: 20, Limit: 100}) {
		t.Fatalf("BybitUsedWeight = %+v, want {bybit 20 100}", w)
	}
}

func TestBybitUsedWeightFallsBackToRateLimitHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", "50")
	h.Set("X-RateLimit-Remaining", "10")

	w := BybitUsedWeight(h)
	if w.Used != 40 || w.Limit != 50 {
		t.Fatalf("BybitUsedWeight = %+v, want Used=40 Limit=50", w)
	}
}

func TestBybitUsedWeightNeverNegative(t *testing.T) {
	h := http.Header{}
	h.Set("X-Bapi-Limit", "10")
	h.Set("X-Bapi-Limit-Status", "15")

	if w := BybitUsedWeight(h); w.Used != 0 {
		t.Fatalf("BybitUsedWeight.Used = %d, want floored at 0", w.Used)
	}
}

func TestBybitUsedWeightMissingHeadersAreZero(t *testing.T) {
	w := BybitUsedWeight(http.Header{})
	if w.Used != 0 || w.Limit != 0 || w.Exchange != "bybit" {
		t.Fatalf("BybitUsedWeight = %+v, want zero Used/Limit with Exchange=bybit", w)
	}
}
