// midea-bridge polls a configured dehumidifier fleet and republishes
// appliance state over MQTT for a home-automation stack, with Prometheus
// metrics and a health endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/joshp123/mideactl/internal/backend"
	"github.com/joshp123/mideactl/internal/bridge"
	"github.com/joshp123/mideactl/internal/config"
	"github.com/joshp123/mideactl/internal/credfile"
	"github.com/joshp123/mideactl/internal/rate"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	logLevel := flag.String("log", "info", "log level (trace|debug|info|warn|error)")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		fatal("parse log level", err)
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "midea-bridge").Logger()

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		fatal("load config", err)
	}
	if len(cfg.Bridge.Appliances) == 0 {
		fatal("load config", fmt.Errorf("bridge.appliances is empty, nothing to poll"))
	}
	if cfg.Bridge.CredsFile != "" {
		entries, err := credfile.Load(cfg.Bridge.CredsFile)
		if err != nil {
			fatal("load credentials file", err)
		}
		cfg.Bridge.Appliances = bridge.ApplyCredentials(cfg.Bridge.Appliances, entries)
	}

	set, err := backend.Open(cfg, logger)
	if err != nil {
		fatal("open backend", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(rate.MetricsCollectors()...)
	metrics := bridge.NewMetrics(registry)

	pub, err := bridge.NewMQTTPublisher(cfg.Bridge.MQTT)
	if err != nil {
		fatal("mqtt", err)
	}
	defer pub.Close()

	guard := rate.NewGuard(rate.Provider("midea-cloud").
		MaxRequestsPer(rate.Minute, cfg.Bridge.CloudSigninsPerMinute).
		CooldownAfterFailure(5 * time.Minute))

	httpAddr := config.EnvOrDefault("MIDEA_BRIDGE_HTTP_ADDR", cfg.Bridge.HTTPAddr)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(httpAddr, mux); err != nil {
			logger.Fatal().Err(err).Str("addr", httpAddr).Msg("http serve")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("http_addr", httpAddr).
		Int("appliances", len(cfg.Bridge.Appliances)).
		Int("poll_interval_seconds", cfg.Bridge.PollIntervalSeconds).
		Msg("bridge starting")

	b := bridge.New(cfg, set, pub, guard, metrics, logger)
	if err := b.Run(ctx); err != nil {
		fatal("bridge", err)
	}
	logger.Info().Msg("bridge stopped")
}

func fatal(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", action, err)
	os.Exit(1)
}
