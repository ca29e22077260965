package queue

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/checkstack/queue"

// RegisterMetrics registers queue metrics with OpenTelemetry. All four
// instruments are observable, sampled from each Proxy's GetStats on
// callback — completed/failed are cumulative per-queue counters already
// maintained by the driver, so they map directly onto observable
// counters without the Manager tracking its own deltas.
func (m *Manager) RegisterMetrics() error {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	var err error

	m.metricQueueDepth, err = meter.Int64ObservableGauge(
		"queue.depth",
		metric.WithDescription("Current number of pending jobs in the queue"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	m.metricJobsInFlight, err = meter.Int64ObservableGauge(
		"queue.jobs.inflight",
		metric.WithDescription("Number of handler invocations currently running"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	m.metricCompleted, err = meter.Int64ObservableCounter(
		"queue.jobs.completed",
		metric.WithDescription("Total number of successful handler invocations"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	m.metricFailed, err = meter.Int64ObservableCounter(
		"queue.jobs.failed",
		metric.WithDescription("Total number of terminally failed jobs"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		m.mu.Lock()
		proxies := make(map[string]*Proxy, len(m.proxies))
		for name, p := range m.proxies {
			proxies[name] = p
		}
		m.mu.Unlock()

		for name, p := range proxies {
			attrs := metric.WithAttributes(attribute.String("queue.name", name))
			stats := p.GetStats()
			o.ObserveInt64(m.metricQueueDepth, int64(stats.Pending), attrs)
			o.ObserveInt64(m.metricJobsInFlight, int64(stats.Processing), attrs)
			o.ObserveInt64(m.metricCompleted, stats.Completed, attrs)
			o.ObserveInt64(m.metricFailed, stats.Failed, attrs)
		}
		return nil
	}, m.metricQueueDepth, m.metricJobsInFlight, m.metricCompleted, m.metricFailed)

	return err
}
