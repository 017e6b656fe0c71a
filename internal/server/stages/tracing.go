package stages

import (
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vipkeeper/internal/server/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/vipkeeper/internal/server"

// Tracing opens a server span per request and hands its context down the
// chain. Exporting is left to whatever TracerProvider is installed.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing uses tp, or the global provider when tp is nil.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{tracer: tp.Tracer(tracerName)}
}

func (t *Tracing) Serve(f *pipeline.Flow) {
	r := f.Request
	ctx, span := t.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		),
	)
	defer span.End()

	f.Request = r.WithContext(ctx)
	f.Next()

	status := statusOf(f.Status())
	span.SetName(r.Method + " " + routeLabel(f.Request))
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if user := f.GetString(auth.SubjectKey); user != "" {
		span.SetAttributes(attribute.String("enduser.id", user))
	}
	if status >= 500 {
		span.SetStatus(codes.Error, "server error")
	}
	if f.Skipped() {
		span.AddEvent("chain skipped")
	}
}
