// Package metrics exposes the broker's Prometheus instrumentation,
// grouped by subsystem the way the teacher kept a single flat Stat
// struct, split here so router and server can each own theirs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Router holds the counters and gauges the single-writer event loop
// updates on every inbound message and fan-out tick.
type Router struct {
	connectionsOpened prometheus.Counter
	connectionsClosed prometheus.Counter
	activeConnections prometheus.Gauge
	publishesAccepted prometheus.Counter
	messagesFannedOut prometheus.Counter
	slowConsumers     prometheus.Counter
	tickDuration      prometheus.Histogram
}

func NewRouter() *Router {
	return &Router{
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttbroker_connections_opened_total", Help: "Total connections admitted by the router.",
		}),
		connectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttbroker_connections_closed_total", Help: "Total connections removed from the active set.",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqttbroker_active_connections", Help: "Connections currently in the router's active set.",
		}),
		publishesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttbroker_publishes_accepted_total", Help: "Publishes appended to the commit log.",
		}),
		messagesFannedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttbroker_messages_fanned_out_total", Help: "Messages delivered to subscribers by the fan-out tick.",
		}),
		slowConsumers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqttbroker_slow_consumers_evicted_total", Help: "Connections evicted for a full outbound channel.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "mqttbroker_fanout_tick_duration_seconds", Help: "Wall time spent in one fan-out tick.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Register adds every collector to reg. Called once from the
// composition root, mirroring the teacher's Stat.Register.
func (r *Router) Register(reg prometheus.Registerer) {
	reg.MustRegister(r.connectionsOpened, r.connectionsClosed, r.activeConnections,
		r.publishesAccepted, r.messagesFannedOut, r.slowConsumers, r.tickDuration)
}

func (r *Router) ConnectionOpened() {
	r.connectionsOpened.Inc()
	r.activeConnections.Inc()
}

func (r *Router) ConnectionClosed() {
	r.connectionsClosed.Inc()
	r.activeConnections.Dec()
}

func (r *Router) PublishAccepted() { r.publishesAccepted.Inc() }

func (r *Router) MessagesFannedOut(n int) { r.messagesFannedOut.Add(float64(n)) }

func (r *Router) SlowConsumerEvicted() { r.slowConsumers.Inc() }

func (r *Router) ObserveTick(d time.Duration) { r.tickDuration.Observe(d.Seconds()) }

// Server holds the per-connection I/O counters the listener/conn loops
// update, grounded on the teacher's PacketReceived/ByteReceived/
// PacketSent/ByteSent fields in Stat.
type Server struct {
	PacketsReceived prometheus.Counter
	BytesReceived   prometheus.Counter
	PacketsSent     prometheus.Counter
	BytesSent       prometheus.Counter
	Uptime          prometheus.Counter
}

func NewServer() *Server {
	return &Server{
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{Name: "mqttbroker_packets_received_total", Help: "Total MQTT packets received."}),
		BytesReceived:   prometheus.NewCounter(prometheus.CounterOpts{Name: "mqttbroker_bytes_received_total", Help: "Total bytes read off connections."}),
		PacketsSent:     prometheus.NewCounter(prometheus.CounterOpts{Name: "mqttbroker_packets_sent_total", Help: "Total MQTT packets written."}),
		BytesSent:       prometheus.NewCounter(prometheus.CounterOpts{Name: "mqttbroker_bytes_sent_total", Help: "Total bytes written to connections."}),
		Uptime:          prometheus.NewCounter(prometheus.CounterOpts{Name: "mqttbroker_uptime_seconds_total", Help: "Seconds the server has been running."}),
	}
}

func (s *Server) Register(reg prometheus.Registerer) {
	reg.MustRegister(s.PacketsReceived, s.BytesReceived, s.PacketsSent, s.BytesSent, s.Uptime)
}

// RefreshUptime increments Uptime once a second until stop is closed,
// mirroring the teacher's Stat.RefreshUptime goroutine.
func (s *Server) RefreshUptime(stop <-chan struct{}) {
	go func() {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				s.Uptime.Inc()
			}
		}
	}()
}
