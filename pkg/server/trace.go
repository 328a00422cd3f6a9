package server

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/treeline-dev/treeline/pkg/diff"
)

// renderTracer wraps the otel tracer for the render cycle. With no SDK
// installed the no-op tracer applies and spans cost nothing.
type renderTracer struct {
	tracer trace.Tracer
}

func newRenderTracer() *renderTracer {
	return &renderTracer{tracer: otel.Tracer("treeline/server")}
}

func (t *renderTracer) start(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "treeline.render")
}

func (t *renderTracer) annotate(span trace.Span, seq uint64, d *diff.Diff, bytes int) {
	span.SetAttributes(
		attribute.Int64("treeline.seq", int64(seq)),
		attribute.Int("treeline.diff_bytes", bytes),
		attribute.Int("treeline.changes", len(d.Changes)),
		attribute.Int("treeline.components", len(d.Components)),
		attribute.Bool("treeline.replace", d.Replace != nil),
	)
}

func (t *renderTracer) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
