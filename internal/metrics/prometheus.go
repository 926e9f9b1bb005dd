package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketscout_signals_ingested_total",
			Help: "Total signals created by the ingestion pipeline",
		},
	)

	VerifierConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketscout_verifier_confidence",
			Help:    "Distribution of verifier confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	ScansTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscout_scans_triggered_total",
			Help: "Total scans triggered",
		},
		[]string{"kind"},
	)

	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketscout_scan_duration_seconds",
			Help:    "Scan execution duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	DossiersSynthesized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketscout_dossiers_synthesized_total",
			Help: "Total dossiers synthesized",
		},
	)

	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscout_notifications_created_total",
			Help: "Total notifications created",
		},
		[]string{"type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscout_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketscout_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	TaskTransitionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketscout_task_transition_conflicts_total",
			Help: "Trigger attempts rejected because the task was already running",
		},
	)
)

func Init() {
	prometheus.MustRegister(SignalsIngested)
	prometheus.MustRegister(VerifierConfidence)
	prometheus.MustRegister(ScansTriggered)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(DossiersSynthesized)
	prometheus.MustRegister(NotificationsCreated)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(TaskTransitionConflicts)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
