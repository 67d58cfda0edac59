package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCostMicro,
		aiCallsLatencyMs,
		aiRegenerations,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCostMicro = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_cost_micro",
			Help: "Priced spend in micro units per model.",
		},
		[]string{"model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "Provider call latency in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 20000},
		},
		[]string{"provider", "model", "success"},
	)

	aiRegenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_regenerations_total",
			Help: "Regeneration rounds after a guardrail violation, by outcome.",
		},
		[]string{"outcome"}, // clean | blocked | empty
	)
)

// ObserveCompletion records one provider call.
func ObserveCompletion(provider, model string, tokensIn, tokensOut int, latency time.Duration, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latency.Milliseconds()))
}

func AddCost(model string, micros int64) {
	aiCostMicro.WithLabelValues(norm(model)).Add(float64(micros))
}

func IncRegeneration(outcome string) {
	aiRegenerations.WithLabelValues(norm(outcome)).Inc()
}
