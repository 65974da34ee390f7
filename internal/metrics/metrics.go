package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Crawl metrics. Registered on the default registry at init so they are
// available as soon as the optional /metrics listener starts.
var (
	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bsddscan_fetches_total",
		Help: "Total number of class fetches by result",
	}, []string{"result"})

	fetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bsddscan_fetch_duration_seconds",
		Help:    "Duration of individual class fetches",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	waveDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bsddscan_wave_duration_seconds",
		Help:    "Duration of whole crawl waves",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
	})

	waveSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bsddscan_wave_size",
		Help:    "Number of identifiers dispatched per wave",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	classesCollected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bsddscan_classes_collected",
		Help: "Number of class records collected by the current crawl",
	})
)

// ObserveFetch records the outcome and duration of one class fetch.
func ObserveFetch(d time.Duration, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	fetchesTotal.WithLabelValues(result).Inc()
	fetchDurationSeconds.Observe(d.Seconds())
}

// ObserveWave records the duration and size of a completed wave.
func ObserveWave(d time.Duration, size int) {
	waveDurationSeconds.Observe(d.Seconds())
	waveSize.Observe(float64(size))
}

// SetClassesCollected updates the collected-classes gauge.
func SetClassesCollected(n int) {
	classesCollected.Set(float64(n))
}
