package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the session server. A nil *Metrics is
// valid and records nothing, which keeps tests free of registries.
type Metrics struct {
	playersOnline  prometheus.Gauge
	roomsOpen      prometheus.Gauge
	sessionsActive prometheus.Gauge
	sessionsEnded  *prometheus.CounterVec
	ticks          prometheus.Counter
	tickPanics     prometheus.Counter
	tickDuration   prometheus.Histogram
	actions        *prometheus.CounterVec
	persistErrors  prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		playersOnline: f.NewGauge(prometheus.GaugeOpts{
			Name: "orderup_players_online",
			Help: "Players currently bound to a connection",
		}),
		roomsOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "orderup_rooms_open",
			Help: "Rooms currently registered",
		}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "orderup_sessions_active",
			Help: "Sessions currently running",
		}),
		sessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orderup_sessions_ended_total",
			Help: "Sessions ended, by reason kind",
		}, []string{"kind"}),
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "orderup_ticks_total",
			Help: "Simulation ticks executed",
		}),
		tickPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "orderup_tick_panics_total",
			Help: "Ticks aborted by a recovered panic",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderup_tick_duration_seconds",
			Help:    "Time spent inside one simulation tick",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orderup_actions_total",
			Help: "Serve actions, by outcome",
		}, []string{"outcome"}),
		persistErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "orderup_persist_errors_total",
			Help: "Failed writes to the result store",
		}),
	}
}

// Handler serves the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) SetPlayersOnline(n int) {
	if m == nil {
		return
	}
	m.playersOnline.Set(float64(n))
}

func (m *Metrics) SetRoomsOpen(n int) {
	if m == nil {
		return
	}
	m.roomsOpen.Set(float64(n))
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionEnded(kind string) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionsEnded.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) TickPanic() {
	if m == nil {
		return
	}
	m.tickPanics.Inc()
}

func (m *Metrics) Action(outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PersistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}
