package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ChatTurnsTotal      metric.Int64Counter
	ChatTurnDuration    metric.Float64Histogram
	SearchAttemptsTotal metric.Int64Counter
	SearchEmptyTotal    metric.Int64Counter
	GeocodeCallsTotal   metric.Int64Counter
	LLMFallbackTotal    metric.Int64Counter
	DbQueryErrorsTotal  metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments exactly once,
// using the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("placepal")
		var err error
		m := &AppMetrics{}

		m.ChatTurnsTotal, err = meter.Int64Counter(
			"chat_turns_total",
			metric.WithDescription("Total number of conversational turns handled"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turns_total: %v", err)
		}

		m.ChatTurnDuration, err = meter.Float64Histogram(
			"chat_turn_duration_seconds",
			metric.WithDescription("Duration of conversational turns in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create chat_turn_duration_seconds: %v", err)
		}

		m.SearchAttemptsTotal, err = meter.Int64Counter(
			"search_attempts_total",
			metric.WithDescription("Total search ladder attempts issued"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_attempts_total: %v", err)
		}

		m.SearchEmptyTotal, err = meter.Int64Counter(
			"search_empty_total",
			metric.WithDescription("Turns that exhausted the ladder with no results"),
			metric.WithUnit("{turn}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_empty_total: %v", err)
		}

		m.GeocodeCallsTotal, err = meter.Int64Counter(
			"geocode_calls_total",
			metric.WithDescription("Geocode capability calls issued (cache misses)"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create geocode_calls_total: %v", err)
		}

		m.LLMFallbackTotal, err = meter.Int64Counter(
			"llm_fallback_total",
			metric.WithDescription("Intent classifications that consulted the language model"),
			metric.WithUnit("{call}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create llm_fallback_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global AppMetrics instance, initializing it against
// the globally configured MeterProvider on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
