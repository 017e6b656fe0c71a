package stages

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vipkeeper/internal/server/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type entry struct {
	level string
	msg   string
	args  map[string]any
}

type captureLogger struct {
	mu      *sync.Mutex
	entries *[]entry
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{mu: &sync.Mutex{}, entries: &[]entry{}}
}

func (c *captureLogger) log(level, msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := map[string]any{}
	for i := 0; i+1 < len(args); i += 2 {
		m[fmt.Sprint(args[i])] = args[i+1]
	}
	*c.entries = append(*c.entries, entry{level: level, msg: msg, args: m})
}

func (c *captureLogger) Debug(_ context.Context, msg string, args ...any) { c.log("debug", msg, args) }
func (c *captureLogger) Info(_ context.Context, msg string, args ...any)  { c.log("info", msg, args) }
func (c *captureLogger) Warn(_ context.Context, msg string, args ...any)  { c.log("warn", msg, args) }
func (c *captureLogger) Error(_ context.Context, msg string, args ...any) { c.log("error", msg, args) }
func (c *captureLogger) With(...any) logging.Logger                       { return c }

func (c *captureLogger) all() []entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entry(nil), *c.entries...)
}

func routed(pattern string, h http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, pattern, h)
	return r
}

func TestAccessLog(t *testing.T) {
	log := newCaptureLogger()
	h := pipeline.New(nil).
		Use("log", NewAccessLog(log)).
		Use("auth", pipeline.StageFunc(func(f *pipeline.Flow) { f.Set(auth.SubjectKey, "u-1"); f.Next() })).
		ThenFunc(func(f *pipeline.Flow) {
			f.Writer.WriteHeader(http.StatusTeapot)
			_, _ = f.Writer.Write([]byte("tea"))
		})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pot", nil))

	entries := log.all()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "info", e.level)
	assert.Equal(t, "request", e.msg)
	assert.Equal(t, http.StatusTeapot, e.args["status"])
	assert.Equal(t, "/pot", e.args["path"])
	assert.Equal(t, 3, e.args["bytes"])
	assert.Equal(t, "u-1", e.args["user_id"])
}

func TestAccessLog_ServerErrorAndImplicit200(t *testing.T) {
	log := newCaptureLogger()
	failing := pipeline.New(nil).Use("log", NewAccessLog(log)).ThenFunc(func(f *pipeline.Flow) {
		f.Writer.WriteHeader(http.StatusInternalServerError)
	})
	silent := pipeline.New(nil).Use("log", NewAccessLog(log)).ThenFunc(func(f *pipeline.Flow) {})

	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	silent.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entries := log.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "error", entries[0].level)
	assert.Equal(t, "info", entries[1].level)
	assert.Equal(t, http.StatusOK, entries[1].args["status"])
}

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	h := routed("/users/{id}", pipeline.New(nil).Use("metrics", m).ThenFunc(func(f *pipeline.Flow) {
		f.Writer.WriteHeader(http.StatusNoContent)
	}))

	for _, id := range []string{"a", "b", "c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/users/{id}", "204")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestMetrics_LoginCounterAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveLogin(LoginSuccess)
	m.ObserveLogin(LoginFailure)
	m.ObserveLogin(LoginFailure)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveLogin(LoginThrottled) })

	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(LoginFailure)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `vipkeeper_logins_total{outcome="success"} 1`))
}

func TestTracing_PropagatesSpanContext(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})

	var seen trace.SpanContext
	h := pipeline.New(nil).
		Use("tracing", NewTracing(noop.NewTracerProvider())).
		ThenFunc(func(f *pipeline.Flow) {
			seen = trace.SpanContextFromContext(f.Context())
			f.Writer.WriteHeader(http.StatusOK)
		})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), parent))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, parent.TraceID(), seen.TraceID())
}

func TestTracing_GlobalProviderDefault(t *testing.T) {
	tr := NewTracing(nil)
	require.NotNil(t, tr.tracer)
}

func TestRouteLabel_Unmatched(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(httptest.NewRequest(http.MethodGet, "/x", nil)))
}
