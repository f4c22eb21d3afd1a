package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "hotelagent"

// Metrics holds all hotel agent metric instruments.
type Metrics struct {
	TurnsProcessed     metric.Int64Counter
	Escalations        metric.Int64Counter
	EventsDeduplicated metric.Int64Counter
	Handoffs           metric.Int64Counter
	LLMLatency         metric.Float64Histogram
	ConfidenceScore    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsProcessed, err = meter.Int64Counter("hotelagent.turns.processed",
		metric.WithDescription("Number of guest turns processed"))
	if err != nil {
		return nil, err
	}

	m.Escalations, err = meter.Int64Counter("hotelagent.escalations.triggered",
		metric.WithDescription("Number of turns escalated to human agents"))
	if err != nil {
		return nil, err
	}

	m.EventsDeduplicated, err = meter.Int64Counter("hotelagent.events.deduplicated",
		metric.WithDescription("Number of duplicate webhook events dropped"))
	if err != nil {
		return nil, err
	}

	m.Handoffs, err = meter.Int64Counter("hotelagent.responders.handoffs",
		metric.WithDescription("Number of responder-to-responder handoffs"))
	if err != nil {
		return nil, err
	}

	m.LLMLatency, err = meter.Float64Histogram("hotelagent.llm.duration_seconds",
		metric.WithDescription("LLM completion latency in seconds"))
	if err != nil {
		return nil, err
	}

	m.ConfidenceScore, err = meter.Float64Histogram("hotelagent.confidence.score",
		metric.WithDescription("Combined confidence score per turn"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
