// internal/metrics/metrics.go
// Per-feed observability (spec §4.4): frames_in, frames_decoded,
// frames_invariant_rejected, frames_decode_err, reconnects, and
// last_frame_ts_ns, each labeled by (exchange, instrument_type).
// Grounded on this package's CounterVec-plus-promhttp shape,
// generalized from a single snapshot-success/error pair to the full
// §4.4 counter set and exposed at :2112/metrics the same way.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

var (
	once sync.Once

	framesIn                *prometheus.CounterVec
	framesDecoded           *prometheus.CounterVec
	framesInvariantRejected *prometheus.CounterVec
	framesDecodeErr         *prometheus.CounterVec
	reconnects              *prometheus.CounterVec
	lastFrameTsNs           *prometheus.GaugeVec
	usedWeight              *prometheus.GaugeVec
)

var feedLabels = []string{"exchange", "instrument_type"}

// Init registers the counter vectors and starts the /metrics HTTP
// server exactly once; subsequent calls are no-ops.
func Init(addr string) {
	once.Do(func() {
		framesIn = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbofeed_frames_in_total",
			Help: "Frames read off the transport before decoding",
		}, feedLabels)
		framesDecoded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbofeed_frames_decoded_total",
			Help: "Frames that decoded to a valid Quote",
		}, feedLabels)
		framesInvariantRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbofeed_frames_invariant_rejected_total",
			Help: "Decoded quotes rejected by the store's invariant check",
		}, feedLabels)
		framesDecodeErr = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbofeed_frames_decode_err_total",
			Help: "Frames that failed to decode",
		}, feedLabels)
		reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbofeed_reconnects_total",
			Help: "Times a feed entered Backoff after a connection cycle failed or ended",
		}, feedLabels)
		lastFrameTsNs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bbofeed_last_frame_ts_ns",
			Help: "received_ts_ns of the most recent frame processed by a feed",
		}, feedLabels)
		usedWeight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bbofeed_rest_used_weight",
			Help: "Most recent used-weight reading from a venue's REST headers",
		}, []string{"exchange", "purpose"})

		for _, c := range []*prometheus.CounterVec{framesIn, framesDecoded, framesInvariantRejected, framesDecodeErr, reconnects} {
			_ = prometheus.Register(c)
		}
		for _, g := range []*prometheus.GaugeVec{lastFrameTsNs, usedWeight} {
			_ = prometheus.Register(g)
		}
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		if addr == "" {
			addr = "0.0.0.0:2112"
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go http.ListenAndServe(addr, mux)
	})
}

// Counters is the live per-feed counter handle a feed task reads and
// increments throughout its life (spec §4.4).
type Counters struct {
	exchange, instrumentType string
}

// ForFeed returns the Counters handle for one (exchange, instrument
// type) feed, initializing the package defaults if Init was never
// called explicitly (unit tests rely on this).
func ForFeed(exchange, instrumentType string) Counters {
	Init("")
	return Counters{exchange: exchange, instrumentType: instrumentType}
}

func (c Counters) IncFramesIn()      { framesIn.WithLabelValues(c.exchange, c.instrumentType).Inc() }
func (c Counters) IncFramesDecoded() { framesDecoded.WithLabelValues(c.exchange, c.instrumentType).Inc() }
func (c Counters) IncInvariantRejected() {
	framesInvariantRejected.WithLabelValues(c.exchange, c.instrumentType).Inc()
}
func (c Counters) IncDecodeErr()  { framesDecodeErr.WithLabelValues(c.exchange, c.instrumentType).Inc() }
func (c Counters) IncReconnects() { reconnects.WithLabelValues(c.exchange, c.instrumentType).Inc() }
func (c Counters) SetLastFrameTsNs(ts uint64) {
	lastFrameTsNs.WithLabelValues(c.exchange, c.instrumentType).Set(float64(ts))
}

// ReportWeight records a venue's REST used-weight reading (SPEC_FULL
// §12 per-exchange weight telemetry) on the shared gauge.
func ReportWeight(exchange, purpose string, used int64) {
	Init("")
	usedWeight.WithLabelValues(exchange, purpose).Set(float64(used))
}

func counterValue(cv *prometheus.CounterVec, exchange, instrumentType string) int64 {
	c, err := cv.GetMetricWithLabelValues(exchange, instrumentType)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}

// Snapshot reads back this feed's current cumulative §4.4 counter
// values, for mirroring to an external sink (EmitFeedSnapshot) that
// needs point-in-time totals rather than increment events.
func (c Counters) Snapshot() (in, decoded, invariantRejected, decodeErr, reconn int64) {
	return counterValue(framesIn, c.exchange, c.instrumentType),
		counterValue(framesDecoded, c.exchange, c.instrumentType),
		counterValue(framesInvariantRejected, c.exchange, c.instrumentType),
		counterValue(framesDecodeErr, c.exchange, c.instrumentType),
		counterValue(reconnects, c.exchange, c.instrumentType)
}
