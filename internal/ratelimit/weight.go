package ratelimit

import (
	"context"
	"net/http"
	"strconv"

	futures "github.com/adshao/go-binance/v2/futures"

	"bbofeed/internal/logger"
)

// Weight is a venue's reported REST rate-limit usage, surfaced
// alongside the §4.4 feed counters per SPEC_FULL §12.
type Weight struct {
	Exchange string
	Used     int64
	Limit    int64
}

// FetchBinanceRequestWeightLimit queries Binance's exchangeInfo endpoint
// for the REQUEST_WEIGHT-per-minute ceiling, grounded on
// internal/metrics/rate/binance.go's FetchRequestWeightLimit. Returns 0
// if the limit cannot be determined; callers treat that as "unknown",
// not "unlimited".
func FetchBinanceRequestWeightLimit(ctx context.Context, client *futures.Client) (int64, error) {
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, rl := range info.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			return rl.Limit, nil
		}
	}
	return 0, nil
}

// BinanceUsedWeight reads the used-weight header Binance attaches to
// every REST response, grounded on ReportSnapshotWeight.
func BinanceUsedWeight(header http.Header) int64 {
	used, _ := strconv.ParseInt(header.Get("X-MBX-USED-WEIGHT-1m"), 10, 64)
	return used
}

// BybitUsedWeight parses Bybit's rate-limit headers, trying the legacy
// X-Bapi-* names before falling back to X-RateLimit-*, grounded on
// internal/metrics/rate/bybit.go's ReportBybitSnapshotWeight.
func BybitUsedWeight(header http.Header) Weight {
	limitStr := header.Get("X-Bapi-Limit")
	if limitStr == "" {
		limitStr = header.Get("X-RateLimit-Limit")
	}
	remainingStr := header.Get("X-Bapi-Limit-Status")
	if remainingStr == "" {
		remainingStr = header.Get("X-RateLimit-Remaining")
	}

	limit, _ := strconv.ParseInt(limitStr, 10, 64)
	remaining, _ := strconv.ParseInt(remainingStr, 10, 64)
	used := limit - remaining
	if used < 0 {
		used = 0
	}
	return Weight{Exchange: "bybit", Used: used, Limit: limit}
}

// LogWeight records a venue's weight reading on the component logger,
// replacing the teacher's direct-to-CloudWatch LogMetric call. The
// caller also reports the reading on the Prometheus used-weight gauge
// via metrics.ReportWeight; weight readings are not sent to CloudWatch.
func LogWeight(log *logger.Log, w Weight) {
	log.WithComponent(w.Exchange + "_ratelimit").WithFields(logger.Fields{
		"used_weight": w.Used,
		"limit":       w.Limit,
	}).Info("rest weight reading")
}
