package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestStart_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	shutdown := InitWithExporter(exp, "test")
	defer shutdown(context.Background())

	ctx, span := Start(context.Background(), "chapter", attribute.String("chapter.id", "1"))
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty inside a sampled span")
	}
	_, child := Start(ctx, "section")
	child.End()
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	if spans[0].Name != "section" || spans[1].Name != "chapter" {
		t.Errorf("span names = %q, %q", spans[0].Name, spans[1].Name)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("section span is not a child of chapter span")
	}
}

func TestInit_Disabled(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
	ctx, span := Start(context.Background(), "noop")
	defer span.End()
	if TraceID(ctx) != "" {
		t.Error("TraceID() should be empty with tracing disabled")
	}
}
