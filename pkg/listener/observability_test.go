package listener

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenlistener/pkg/event"
	otelPkg "github.com/pbinitiative/zenlistener/pkg/otel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func Test_nil_engine_event_is_ignored(t *testing.T) {
	uow := &fakeUnitOfWork{}
	l := NewMessageThrowingListener("orderShipped")

	assert.NotPanics(t, func() {
		err := l.OnEvent(t.Context(), uow, (*event.EngineEvent)(nil))
		assert.NoError(t, err)
	})
	assert.NotPanics(t, func() {
		assert.NoError(t, l.OnEvent(t.Context(), uow, nil))
	})
	assert.Empty(t, uow.queries)
}

func attributesOf(kvs []attribute.KeyValue) map[string]attribute.Value {
	res := map[string]attribute.Value{}
	for _, kv := range kvs {
		res[string(kv.Key)] = kv.Value
	}
	return res
}

func Test_thrown_messages_are_traced_with_scope(t *testing.T) {
	// given
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	uow := &fakeUnitOfWork{subscriptions: []runtime.EventSubscription{
		messageSubscription(1, "orderShipped", "e2", "p1"),
		messageSubscription(2, "orderShipped", "p1", "p1"),
	}}
	l := NewMessageThrowingListener("orderShipped", WithTracer(provider.Tracer("test")))

	// when the execution has no subscription, the root subscription is messaged
	err := l.OnEvent(t.Context(), uow, event.NewEngineEvent(event.ActivityCompleted, "e1", "p1"))

	// then
	require.NoError(t, err)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := attributesOf(spans[0].Attributes())
	assert.Equal(t, "p1", attrs[otelPkg.AttributeProcessInstanceId].AsString())
	assert.Equal(t, "e1", attrs[otelPkg.AttributeExecutionId].AsString())
	assert.Equal(t, listenerKind, attrs[otelPkg.AttributeListener].AsString())
	require.Len(t, spans[0].Events(), 1)
	eventAttrs := attributesOf(spans[0].Events()[0].Attributes)
	assert.EqualValues(t, 2, eventAttrs[otelPkg.AttributeSubscriptionKey].AsInt64())
	assert.Equal(t, otelPkg.SubscriptionScopeProcessRoot, eventAttrs[otelPkg.AttributeSubscriptionScope].AsString())
}

func Test_failing_condition_is_logged_as_warning(t *testing.T) {
	// given
	var out bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &out, Level: hclog.Info})
	l := NewMessageThrowingListener("orderShipped",
		WithListenerLogger(logger),
		WithFilter(Filter{Condition: `priority`}),
	)
	ev := event.NewEngineEvent(event.ActivityCompleted, "e1", "p1")
	ev.Variables = map[string]any{"priority": "high"}

	// when
	relevant := l.IsRelevant(ev)

	// then
	assert.False(t, relevant)
	assert.Contains(t, out.String(), "[WARN]")
	assert.Contains(t, out.String(), "expected boolean")
}

func Test_filtered_out_event_is_not_logged_as_warning(t *testing.T) {
	var out bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &out, Level: hclog.Info})
	l := NewMessageThrowingListener("orderShipped",
		WithListenerLogger(logger),
		WithFilter(Filter{Types: []event.Type{event.TimerFired}}),
	)

	assert.False(t, l.IsRelevant(event.NewEngineEvent(event.ActivityCompleted, "e1", "p1")))
	assert.Empty(t, out.String())
}
