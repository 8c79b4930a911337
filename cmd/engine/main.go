// cmd/engine/main.go
// Example host process wiring the engine façade to a YAML config file,
// Prometheus metrics endpoint, and signal-based graceful shutdown.
// Grounded on the teacher's main.go: godotenv, a flag-selected config
// path, log.Configure from the file's logging section, then block on
// SIGINT/SIGTERM before a single cooperative shutdown call.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/joho/godotenv"

	"bbofeed/engine"
	"bbofeed/internal/logger"
	"bbofeed/internal/metrics"
	"bbofeed/internal/ratelimit"
)

func main() {
	log := logger.Init()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("error loading .env file")
	}

	configPath := flag.String("config", "config/engine.yml", "path to engine configuration file")
	flag.Parse()

	fc, err := loadFileConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(fc.Logging.Level, fc.Logging.Format, fc.Logging.Output, fc.Logging.MaxAge); err != nil {
		log.WithError(err).Error("failed to configure logger")
		os.Exit(1)
	}

	metrics.Init(fc.Metrics.Addr)

	if fc.CloudWatch.Enabled {
		metrics.InitCloudWatch(fc.CloudWatch.Region, fc.CloudWatch.Namespace)
	}

	probeStartupWeights(log)

	e := engine.New(log)

	cfg := fc.engineConfig()
	if err := e.StartSpotFeeds(cfg); err != nil {
		log.WithError(err).Error("failed to start spot feeds")
		os.Exit(1)
	}
	if err := e.StartPerpFeeds(cfg); err != nil {
		log.WithError(err).Error("failed to start perp feeds")
		os.Exit(1)
	}

	log.WithComponent("main").Info("engine started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	e.Shutdown(engine.ShutdownGrace)
	log.WithComponent("main").Info("engine stopped")
}

// probeStartupWeights fetches each REST-capable venue's published
// rate-limit ceiling and current used-weight once at startup, paced
// through a shared limiter, before any feed opens a websocket. Run
// concurrently and best-effort: a probe failure only warns, since
// weight telemetry is diagnostic, not a precondition for streaming.
func probeStartupWeights(log *logger.Log) {
	limiter := ratelimit.New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan struct{}, 2)
	go func() {
		ratelimit.ProbeBinanceWeight(ctx, limiter, futures.NewClient("", ""), http.DefaultClient, ratelimit.BinanceExchangeInfoURL, log)
		done <- struct{}{}
	}()
	go func() {
		ratelimit.ProbeBybitWeight(ctx, limiter, http.DefaultClient, ratelimit.BybitInstrumentsInfoURL, log)
		done <- struct{}{}
	}()
	<-done
	<-done
}
