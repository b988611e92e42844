// monitor/monitor.go
package monitor

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/quantumquest/tower"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	MessagesReceived prometheus.Counter
	MessageLatency   prometheus.Histogram
	Steps            *prometheus.CounterVec
	Collapses        *prometheus.CounterVec
	FloorsSolved     prometheus.Counter
	TowerScores      prometheus.Histogram
	Measurements     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of online players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tower_steps_total",
			Help:      "Steps taken on tower pads by outcome",
		}, []string{"outcome"}),
		Collapses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tower_collapses_total",
			Help:      "Board collapses by cause",
		}, []string{"cause"}),
		FloorsSolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tower_floors_solved_total",
			Help:      "Tower floors solved",
		}),
		TowerScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tower_score",
			Help:      "Final scores of finished tower runs",
			Buckets:   prometheus.LinearBuckets(200, 200, 7),
		}),
		Measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quantum_measurements_total",
			Help:      "Measurement events by room and type",
		}, []string{"room", "event"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.MessagesReceived,
		m.MessageLatency,
		m.Steps,
		m.Collapses,
		m.FloorsSolved,
		m.TowerScores,
		m.Measurements,
		m.HTTPRequests,
	)

	return m
}

// Monitor owns a private registry so several instances can coexist.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
	uptime    prometheus.GaugeFunc
	server    *http.Server
	mutex     sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	registry := prometheus.NewRegistry()
	m := &Monitor{
		metrics:   NewMetrics(namespace, registry),
		registry:  registry,
		startTime: time.Now(),
	}
	m.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the process started",
	}, func() float64 { return time.Since(m.startTime).Seconds() })
	registry.MustRegister(m.uptime, collectors.NewGoCollector())
	return m
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

// Handler serves the registry in the Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on its own listener.
func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	m.mutex.Lock()
	m.server = &http.Server{Addr: addr, Handler: mux}
	srv := m.server
	m.mutex.Unlock()

	go srv.ListenAndServe()
}

func (m *Monitor) Stop() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.server != nil {
		m.server.Close()
		m.server = nil
	}
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) ObserveHTTPRequest(route string, status int) {
	m.metrics.HTTPRequests.WithLabelValues(route, http.StatusText(status)).Inc()
}

func (m *Monitor) ObserveTowerScore(score int) {
	m.metrics.TowerScores.Observe(float64(score))
}

// TowerSink counts tower measurement events, then forwards them to next.
func (m *Monitor) TowerSink(next tower.MeasurementSink) tower.MeasurementSink {
	return &towerSink{metrics: m.metrics, next: next}
}

type towerSink struct {
	metrics *Metrics
	next    tower.MeasurementSink
}

func (s *towerSink) Record(ev tower.Measurement) {
	s.metrics.Measurements.WithLabelValues(ev.RoomID, ev.EventType).Inc()
	switch ev.EventType {
	case "pad_interaction":
		if outcome, ok := ev.Payload["outcome"].(string); ok {
			s.metrics.Steps.WithLabelValues(outcome).Inc()
		}
	case "decoherence":
		if cause, ok := ev.Payload["cause"].(string); ok {
			s.metrics.Collapses.WithLabelValues(cause).Inc()
		}
	case "floor_completed":
		s.metrics.FloorsSolved.Inc()
	}
	if s.next != nil {
		s.next.Record(ev)
	}
}
