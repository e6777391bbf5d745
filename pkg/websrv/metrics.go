package websrv

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crystal-mush/gofugue/pkg/events"
	"github.com/crystal-mush/gofugue/pkg/world"
)

// Metrics holds Prometheus metric descriptors for one client session.
// Counters are fed from bus events; gauges are refreshed on scrape.
type Metrics struct {
	registry  *prometheus.Registry
	worlds    *world.Registry
	startTime time.Time

	eventsTotal     *prometheus.CounterVec
	linesRecvTotal  *prometheus.CounterVec
	linesSentTotal  *prometheus.CounterVec
	worldsConnected prometheus.Gauge
	mirrorClients   prometheus.Gauge
	uptimeSeconds   prometheus.Gauge
	memoryHeapBytes prometheus.Gauge
	goroutines      prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics on a private
// registry, so several sessions in one process never collide.
func NewMetrics(worlds *world.Registry, startTime time.Time) *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		worlds:    worlds,
		startTime: startTime,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gofugue_events_total",
			Help: "Total session events by type.",
		}, []string{"type"}),
		linesRecvTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gofugue_lines_received_total",
			Help: "Lines received from servers, by world.",
		}, []string{"world"}),
		linesSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gofugue_lines_sent_total",
			Help: "Lines sent to servers, by world.",
		}, []string{"world"}),
		worldsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gofugue_worlds_connected",
			Help: "Number of currently connected worlds.",
		}),
		mirrorClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gofugue_mirror_clients",
			Help: "Number of attached WebSocket mirror clients.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gofugue_uptime_seconds",
			Help: "Session uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gofugue_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gofugue_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.eventsTotal,
		m.linesRecvTotal,
		m.linesSentTotal,
		m.worldsConnected,
		m.mirrorClients,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// Observe counts one bus event.
func (m *Metrics) Observe(ev events.Event) {
	m.eventsTotal.WithLabelValues(ev.Type.String()).Inc()
	switch ev.Type {
	case events.EvOutput:
		m.linesRecvTotal.WithLabelValues(ev.World).Inc()
	case events.EvSent:
		m.linesSentTotal.WithLabelValues(ev.World).Inc()
	}
}

// Update refreshes all gauge metrics from current session state.
func (m *Metrics) Update() {
	connected := 0
	for _, name := range m.worlds.Names() {
		if w, ok := m.worlds.Get(name); ok && w.Connected {
			connected++
		}
	}
	m.worldsConnected.Set(float64(connected))

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// SetMirrorClients records the number of attached mirror clients.
func (m *Metrics) SetMirrorClients(n int) {
	m.mirrorClients.Set(float64(n))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
