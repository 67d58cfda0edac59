package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		usageDecisions,
		guardrailViolations,
		deliveriesTotal,
		detachedFailures,
		cacheRequestsTotal,
		contextProviderErrors,
	)
}

var (
	usageDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_decisions_total",
			Help: "Usage gate verdicts.",
		},
		[]string{"result"}, // allowed | overage | denied | fail_open
	)

	guardrailViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardrail_violations_total",
			Help: "Matched guardrail rules by type and trigger mode.",
		},
		[]string{"type", "mode"},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Delivery attempts by mode and result.",
		},
		[]string{"mode", "result"}, // result: delivered | failed | skipped
	)

	detachedFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detached_task_failures_total",
			Help: "Fire-and-forget tasks that returned an error or panicked.",
		},
		[]string{"task"},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Tracks cache hits and misses for various caches.",
		},
		[]string{"cache", "result"},
	)

	contextProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_provider_errors_total",
			Help: "Prompt context providers that failed or timed out.",
		},
		[]string{"provider"},
	)
)

func IncUsageDecision(result string) { usageDecisions.WithLabelValues(norm(result)).Inc() }

func IncGuardrailViolation(kind, mode string) {
	guardrailViolations.WithLabelValues(norm(kind), norm(mode)).Inc()
}

func IncDelivery(mode, result string) { deliveriesTotal.WithLabelValues(norm(mode), norm(result)).Inc() }

func IncDetachedFailure(task string) { detachedFailures.WithLabelValues(norm(task)).Inc() }

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func IncContextProviderError(provider string) {
	contextProviderErrors.WithLabelValues(norm(provider)).Inc()
}
