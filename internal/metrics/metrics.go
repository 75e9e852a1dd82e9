// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics собирает счётчики циклов флайвила
type Metrics struct {
	ticksCounter      *prometheus.CounterVec
	lamportsCounter   prometheus.Counter
	disposedCounter   prometheus.Counter
	durationHistogram prometheus.Histogram
	runningGauge      prometheus.Gauge
}

// NewMetrics регистрирует коллекторы в переданном реестре
func NewMetrics(reg prometheus.Registerer) *Metrics {
	ticksCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flywheel_ticks_total",
		Help: "Total number of flywheel ticks by outcome",
	}, []string{"outcome"})
	lamportsCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flywheel_lamports_spent_total",
		Help: "Total lamports spent on swaps",
	})
	disposedCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flywheel_tokens_disposed_total",
		Help: "Total raw token units burned or sent to the incinerator",
	})
	durationHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flywheel_tick_duration_seconds",
		Help:    "Tick duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
	})
	runningGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flywheel_running",
		Help: "1 when the flywheel is enabled",
	})

	reg.MustRegister(ticksCounter, lamportsCounter, disposedCounter, durationHistogram, runningGauge)

	return &Metrics{
		ticksCounter:      ticksCounter,
		lamportsCounter:   lamportsCounter,
		disposedCounter:   disposedCounter,
		durationHistogram: durationHistogram,
		runningGauge:      runningGauge,
	}
}

// TrackTick фиксирует длительность и исход тика; outcome - метка из types.Stage
func (m *Metrics) TrackTick(start time.Time, outcome string) {
	m.durationHistogram.Observe(time.Since(start).Seconds())
	m.ticksCounter.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddSpent(lamports uint64) {
	m.lamportsCounter.Add(float64(lamports))
}

// AddDisposed принимает сырое количество; float64 теряет точность на огромных
// значениях, что для метрик допустимо
func (m *Metrics) AddDisposed(raw float64) {
	if raw > 0 {
		m.disposedCounter.Add(raw)
	}
}

func (m *Metrics) SetRunning(running bool) {
	if running {
		m.runningGauge.Set(1)
		return
	}
	m.runningGauge.Set(0)
}
