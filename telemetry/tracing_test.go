package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing("queuebot", "test", "")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	shutdown()
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); ok {
		t.Error("sdk tracer provider installed without endpoint")
	}
}

func TestStartSpanCarriesCorrelation(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx := WithCorrelation(context.Background(), "corr-1")
	_, span := StartSpan(ctx, "command !join", attribute.String("channel", "42"))
	RecordError(span, errors.New("boom"))
	span.End()

	_, ok := StartSpan(context.Background(), "command !leave")
	SetSpanSuccess(ok)
	ok.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.AsString()
	}
	if attrs["correlation_id"] != "corr-1" || attrs["channel"] != "42" {
		t.Errorf("attributes = %v", attrs)
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status().Code)
	}
	if spans[1].Status().Code != codes.Ok {
		t.Errorf("status = %v, want ok", spans[1].Status().Code)
	}
}
