package logging

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// NewGoogleCloudTracingLogHandler links log records to their trace in Google Cloud.
//
// NOTE: Only records logged with the *Context slog methods carry a span context
func NewGoogleCloudTracingLogHandler(baseHandler slog.Handler, project string) slog.Handler {
	return &cloudTraceHandler{base: baseHandler, project: project}
}

type cloudTraceHandler struct {
	base    slog.Handler
	project string
}

// https://docs.cloud.google.com/logging/docs/agent/logging/configuration#special-fields
func cloudTraceAttrs(project string, sc trace.SpanContext) []slog.Attr {
	if !sc.IsValid() {
		return nil
	}
	return []slog.Attr{
		slog.String("logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", project, sc.TraceID())),
		slog.String("logging.googleapis.com/spanId", sc.SpanID().String()),
		slog.Bool("logging.googleapis.com/trace_sampled", sc.IsSampled()),
	}
}

func (h *cloudTraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *cloudTraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := cloudTraceAttrs(h.project, trace.SpanContextFromContext(ctx)); attrs != nil {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

func (h *cloudTraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &cloudTraceHandler{base: h.base.WithAttrs(attrs), project: h.project}
}

func (h *cloudTraceHandler) WithGroup(name string) slog.Handler {
	return &cloudTraceHandler{base: h.base.WithGroup(name), project: h.project}
}

var _ slog.Handler = (*cloudTraceHandler)(nil)
