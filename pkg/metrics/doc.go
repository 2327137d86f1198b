/*
Package metrics exposes Prometheus metrics and process health for streakline.

All metrics are package-level collectors registered in init, so any package can
update them without wiring:

	metrics.CompletionsTotal.WithLabelValues("duplicate").Inc()

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.EnrollmentDuration)

# Metrics Catalog

Store:
  - streakline_challenges_total                 gauge
  - streakline_participants_total{challenge}    gauge

Enrollment:
  - streakline_enrollments_total{result}            committed | partial | failed
  - streakline_enrollment_failures_total{kind}      not_visible | write_rejected | verification_mismatch | invalid_plan
  - streakline_enrollment_transitions_total{state}
  - streakline_enrollment_duration_seconds
  - streakline_visibility_polls_total{target}       participant | links | schedule | commit
  - streakline_calendar_actions_total{result}       created | failed | skipped

Completions:
  - streakline_completions_total{outcome}       recorded | duplicate | rejected

Reconciler:
  - streakline_reconciliation_duration_seconds
  - streakline_reconciliation_cycles_total

API:
  - streakline_api_requests_total{route, method, status}
  - streakline_api_request_duration_seconds{route}

Rejected writes and verification mismatches carry different "kind" labels so the
two failure modes stay separable on dashboards even though both halt an enrollment.

# Health

RegisterComponent/UpdateComponent record component state. GetReadiness requires
the "storage" and "api" components to be registered and healthy. The Collector
samples the store periodically, updates the store gauges, and marks "storage"
unhealthy when the store cannot be read.
*/
package metrics
