package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Store metrics
	ChallengesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streakline_challenges_total",
			Help: "Total number of challenges",
		},
	)

	ParticipantsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streakline_participants_total",
			Help: "Total number of participants by challenge",
		},
		[]string{"challenge"},
	)

	// Enrollment metrics
	EnrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streakline_enrollments_total",
			Help: "Total number of finished enrollments by result (committed, partial, failed)",
		},
		[]string{"result"},
	)

	EnrollmentFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streakline_enrollment_failures_total",
			Help: "Total number of failed enrollments by failure kind",
		},
		[]string{"kind"},
	)

	EnrollmentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streakline_enrollment_transitions_total",
			Help: "Total number of enrollment state transitions by target state",
		},
		[]string{"state"},
	)

	EnrollmentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streakline_enrollment_duration_seconds",
			Help:    "Time taken to run an enrollment to a terminal state",
			Buckets: prometheus.DefBuckets,
		},
	)

	VisibilityPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streakline_visibility_polls_total",
			Help: "Total number of read-back attempts while waiting for writes to become visible",
		},
		[]string{"target"},
	)

	CalendarActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streakline_calendar_actions_total",
			Help: "Total number of calendar action materializations by result",
		},
		[]string{"result"},
	)

	// Completion metrics
	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streakline_completions_total",
			Help: "Total number of completion recordings by outcome",
		},
		[]string{"outcome"},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streakline_reconciliation_duration_seconds",
			Help:    "Time taken to recompute participant standings",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streakline_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streakline_api_requests_total",
			Help: "Total number of API requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streakline_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ChallengesTotal)
	prometheus.MustRegister(ParticipantsTotal)
	prometheus.MustRegister(EnrollmentsTotal)
	prometheus.MustRegister(EnrollmentFailuresTotal)
	prometheus.MustRegister(EnrollmentTransitionsTotal)
	prometheus.MustRegister(EnrollmentDuration)
	prometheus.MustRegister(VisibilityPollsTotal)
	prometheus.MustRegister(CalendarActionsTotal)
	prometheus.MustRegister(CompletionsTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
