package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/callify-backend/internal/callify"
)

func TestMessageAttributesForCallEvent(t *testing.T) {
	t.Parallel()

	attrs := messageAttributes(callify.CallEvent{Event: callify.EventCallDispatched, CallID: "c-9"})
	require.Equal(t, map[string]string{"event": "call.dispatched", "call_id": "c-9"}, attrs)
	require.Empty(t, messageAttributes("plain"))
}

func TestCarrierRoundTripsTraceContext(t *testing.T) {
	t.Parallel()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	carrier := &pubsubCarrier{attrs: map[string]string{}}
	propagation.TraceContext{}.Inject(ctx, carrier)
	require.Contains(t, carrier.Keys(), "traceparent")

	extracted := trace.SpanContextFromContext(propagation.TraceContext{}.Extract(context.Background(), carrier))
	require.Equal(t, traceID, extracted.TraceID())
}

func TestPublishWithoutPublisher(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "calls", "x")
	require.Error(t, err)
	require.NoError(t, (&Publisher{}).Close())
}
