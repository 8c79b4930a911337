// internal/ratelimit/startup.go
// Wires the Limiter and weight-parsing helpers in this package to the
// one-off REST lookups made at startup, before any feed opens its
// websocket: Binance's documented REQUEST_WEIGHT ceiling and the
// used-weight headers both Binance and Bybit attach to every REST
// response. Called once per venue at engine startup (cmd/engine/main.go),
// not per feed reconnect — the values only change at the pace a venue
// revises its own published limits.
package ratelimit

import (
	"context"
	"net/http"

	futures "github.com/adshao/go-binance/v2/futures"

	"bbofeed/internal/logger"
	"bbofeed/internal/metrics"
)

const (
	// BinanceExchangeInfoURL is Binance's public futures exchange-info
	// endpoint, used only to read the used-weight response headers —
	// the documented limit itself comes from the SDK's typed decode of
	// the same payload in FetchBinanceRequestWeightLimit.
	BinanceExchangeInfoURL = "https://fapi.binance.com/fapi/v1/exchangeInfo"

	// BybitInstrumentsInfoURL is Bybit's public linear-perp
	// instruments-info endpoint, used the same way for its used-weight
	// headers.
	BybitInstrumentsInfoURL = "https://api.bybit.com/v5/market/instruments-info?category=linear"
)

// ProbeBinanceWeight paces itself through limiter, fetches Binance's
// published REQUEST_WEIGHT-per-minute ceiling via the SDK client, and
// separately reads the used-weight header off a plain GET of the same
// endpoint, reporting both through metrics.ReportWeight and the
// component log. Failures are logged and swallowed — a venue's weight
// telemetry is diagnostic, never a reason to fail engine startup.
func ProbeBinanceWeight(ctx context.Context, limiter *Limiter, client *futures.Client, httpClient *http.Client, infoURL string, log *logger.Log) {
	l := log.WithComponent("binance_ratelimit")

	if err := limiter.Wait(ctx, "binance", PurposeExchangeInfo); err != nil {
		l.WithError(err).Warn("rate limiter wait aborted")
		return
	}

	w := Weight{Exchange: "binance"}
	limit, err := FetchBinanceRequestWeightLimit(ctx, client)
	if err != nil {
		l.WithError(err).Warn("failed to fetch request-weight limit")
	} else {
		w.Limit = limit
	}

	if resp, err := rawGet(ctx, httpClient, infoURL); err != nil {
		l.WithError(err).Warn("failed to read used-weight headers")
	} else {
		defer resp.Body.Close()
		w.Used = BinanceUsedWeight(resp.Header)
	}

	metrics.ReportWeight(w.Exchange, string(PurposeExchangeInfo), w.Used)
	LogWeight(log, w)
}

// ProbeBybitWeight is Bybit's equivalent of ProbeBinanceWeight: pace,
// GET the public instruments-info endpoint, parse its used-weight
// headers, report and log.
func ProbeBybitWeight(ctx context.Context, limiter *Limiter, httpClient *http.Client, endpoint string, log *logger.Log) {
	l := log.WithComponent("bybit_ratelimit")

	if err := limiter.Wait(ctx, "bybit", PurposeSymbolInfo); err != nil {
		l.WithError(err).Warn("rate limiter wait aborted")
		return
	}

	resp, err := rawGet(ctx, httpClient, endpoint)
	if err != nil {
		l.WithError(err).Warn("failed to fetch instruments-info")
		return
	}
	defer resp.Body.Close()

	w := BybitUsedWeight(resp.Header)
	metrics.ReportWeight(w.Exchange, string(PurposeSymbolInfo), w.Used)
	LogWeight(log, w)
}

func rawGet(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}
