package runner

import "github.com/prometheus/client_golang/prometheus"

var (
	modelsTested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crisisbench",
			Subsystem: "runner",
			Name:      "models_total",
			Help:      "Models processed, by final status",
		},
		[]string{"status"},
	)

	questionsAsked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crisisbench",
			Subsystem: "runner",
			Name:      "questions_total",
			Help:      "Questions sent to models under test",
		},
	)

	sentinelAnswers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "crisisbench",
			Subsystem: "runner",
			Name:      "sentinel_answers_total",
			Help:      "Answers recorded as error sentinels",
		},
	)
)

func init() {
	prometheus.MustRegister(modelsTested, questionsAsked, sentinelAnswers)
}
