// Command mqtt-broker is the composition root: it loads configuration,
// wires the router to the server, registers Prometheus metrics, and
// runs every listener under one errgroup — the same shape as the
// teacher's cmd/mqtt-server/main.go, generalized past a single MQTT
// listener to the full TCP/TLS/WebSocket/metrics set.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/golang-io/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/flowmesh/mqttbroker/config"
	"github.com/flowmesh/mqttbroker/metrics"
	"github.com/flowmesh/mqttbroker/router"
	"github.com/flowmesh/mqttbroker/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	configPath := flag.String("config", "", "path to a JSON config file; defaults are used if omitted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("mqtt-broker: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	routerMetrics := metrics.NewRouter()
	serverMetrics := metrics.NewServer()
	reg := prometheus.NewRegistry()
	routerMetrics.Register(reg)
	serverMetrics.Register(reg)

	rt := router.New(router.Config{
		SegmentSize:          cfg.Router.SegmentSize,
		SegmentsPerPartition: cfg.Router.SegmentsPerPartition,
		TickInterval:         cfg.Router.TickInterval,
		BatchSize:            cfg.Router.BatchSize,
		OutboundBufferSize:   cfg.Router.OutboundBufferSize,
	}, routerMetrics)

	srv := server.New(cfg, rt, serverMetrics)
	serverMetrics.RefreshUptime(ctx.Done())

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		rt.Run(gctx.Done())
		return nil
	})

	group.Go(func() error {
		return srv.ListenAndServeAll()
	})

	if cfg.HTTP.URL != "" {
		group.Go(func() error {
			return serveMetrics(gctx, cfg.HTTP.URL, reg)
		})
	}

	go func() {
		<-gctx.Done()
		_ = srv.Shutdown(make(chan struct{}))
	}()

	if err := group.Wait(); err != nil {
		log.Fatalf("mqtt-broker: %v", err)
	}
}

func serveMetrics(ctx context.Context, rawURL string, reg *prometheus.Registry) error {
	mux := requests.NewServeMux(requests.URL(rawURL), requests.Logf(metricsAccessLog))
	mux.Route("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Pprof()
	httpSrv := requests.NewServer(ctx, mux, requests.OnStart(func(s *http.Server) {
		log.Printf("metrics: serving on %s", s.Addr)
	}))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func metricsAccessLog(ctx context.Context, stat *requests.Stat) {
	log.Printf("metrics: %s", stat.Print())
}
