package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ListenerMetrics struct {
	EventsReceived   metric.Int64Counter
	EventsIgnored    metric.Int64Counter
	MessagesThrown   metric.Int64Counter
	ScopeFallbacks   metric.Int64Counter
	ListenerFailures metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*ListenerMetrics, error) {
	var errJoin error

	eventsReceived, err := meter.Int64Counter("listener_events_received", metric.WithDescription("Number of events delivered to listeners"))
	errJoin = errors.Join(errJoin, err)

	eventsIgnored, err := meter.Int64Counter("listener_events_ignored", metric.WithDescription("Number of events listeners found irrelevant"))
	errJoin = errors.Join(errJoin, err)

	messagesThrown, err := meter.Int64Counter("listener_messages_thrown", metric.WithDescription("Number of message subscriptions triggered by listeners"))
	errJoin = errors.Join(errJoin, err)

	scopeFallbacks, err := meter.Int64Counter("listener_scope_fallbacks", metric.WithDescription("Number of lookups widened from execution to process instance scope"))
	errJoin = errors.Join(errJoin, err)

	listenerFailures, err := meter.Int64Counter("listener_failures", metric.WithDescription("Number of events whose handling failed"))
	errJoin = errors.Join(errJoin, err)

	metrics := ListenerMetrics{
		EventsReceived:   eventsReceived,
		EventsIgnored:    eventsIgnored,
		MessagesThrown:   messagesThrown,
		ScopeFallbacks:   scopeFallbacks,
		ListenerFailures: listenerFailures,
	}
	return &metrics, errJoin
}

// the recording methods below are no-ops on nil metrics

func (m *ListenerMetrics) Received(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.EventsReceived.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *ListenerMetrics) Ignored(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.EventsIgnored.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *ListenerMetrics) Thrown(ctx context.Context, n int, attrs ...attribute.KeyValue) {
	if m == nil || n == 0 {
		return
	}
	m.MessagesThrown.Add(ctx, int64(n), metric.WithAttributes(attrs...))
}

func (m *ListenerMetrics) Fallback(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.ScopeFallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *ListenerMetrics) Failed(ctx context.Context, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	m.ListenerFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}
