package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordStage(log *[]string, name string) Stage {
	return StageFunc(func(f *Flow) {
		*log = append(*log, "pre-"+name)
		f.Next()
		*log = append(*log, "post-"+name)
	})
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestPipeline_OnionOrder(t *testing.T) {
	var log []string
	h := New(nil).
		Use("A", recordStage(&log, "A")).
		Use("B", recordStage(&log, "B")).
		Use("C", recordStage(&log, "C")).
		ThenFunc(func(f *Flow) {
			log = append(log, "handler")
			f.Writer.WriteHeader(http.StatusNoContent)
		})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"pre-A", "pre-B", "pre-C", "handler", "post-C", "post-B", "post-A"}, log)
}

func TestPipeline_SkipRestUnwindsEnteredStages(t *testing.T) {
	var log []string
	h := New(nil).
		Use("A", recordStage(&log, "A")).
		Use("B", StageFunc(func(f *Flow) {
			log = append(log, "pre-B")
			http.Redirect(f.Writer, f.Request, "/login", http.StatusFound)
			f.SkipRest()
			f.Next() // no-op once skipped
			log = append(log, "post-B")
		})).
		Use("C", recordStage(&log, "C")).
		ThenFunc(func(f *Flow) {
			log = append(log, "handler")
		})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/users", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, []string{"pre-A", "pre-B", "post-B", "post-A"}, log)
}

func TestPipeline_StageWithoutNextAdvancesImplicitly(t *testing.T) {
	var log []string
	h := New(nil).
		Use("pre-only", StageFunc(func(f *Flow) { log = append(log, "pre-only") })).
		Use("B", recordStage(&log, "B")).
		ThenFunc(func(f *Flow) { log = append(log, "handler") })

	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"pre-only", "pre-B", "handler", "post-B"}, log)
}

func TestPipeline_StateBagIsPerRequest(t *testing.T) {
	h := New(nil).
		Use("set", StageFunc(func(f *Flow) {
			_, seen := f.Get("k")
			assert.False(t, seen, "state must not leak between requests")
			f.Set("k", f.Request.URL.Path)
			f.Next()
		})).
		ThenFunc(func(f *Flow) {
			_, _ = f.Writer.Write([]byte(f.GetString("k")))
		})

	assert.Equal(t, "/one", serve(h, httptest.NewRequest(http.MethodGet, "/one", nil)).Body.String())
	assert.Equal(t, "/two", serve(h, httptest.NewRequest(http.MethodGet, "/two", nil)).Body.String())
}

func TestPipeline_GetStringWrongType(t *testing.T) {
	f := &Flow{}
	f.Set("n", 42)
	assert.Equal(t, "", f.GetString("n"))
	assert.Equal(t, "", f.GetString("missing"))
}

func TestPipeline_MustGet(t *testing.T) {
	f := &Flow{}
	f.Set("k", "v")
	assert.Equal(t, "v", f.MustGet("k"))
	assert.Panics(t, func() { f.MustGet("missing") })
}

func TestPipeline_SkipWithoutResponseWrites500(t *testing.T) {
	called := false
	h := New(nil).
		Use("broken", StageFunc(func(f *Flow) { f.SkipRest() })).
		ThenFunc(func(f *Flow) { called = true })

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":500,"msg":"Internal server error","data":null}`, rec.Body.String())
}

func TestPipeline_CancelledContextStopsDispatch(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())

	h := New(nil).
		Use("A", StageFunc(func(f *Flow) {
			log = append(log, "pre-A")
			cancel()
			f.Next()
			log = append(log, "post-A")
		})).
		Use("B", recordStage(&log, "B")).
		ThenFunc(func(f *Flow) { log = append(log, "handler") })

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := serve(h, req)

	assert.Equal(t, []string{"pre-A", "post-A"}, log)
	assert.Empty(t, rec.Body.String(), "nothing is written for a gone client")
}

func TestPipeline_UseDoesNotMutateBase(t *testing.T) {
	base := New(nil).Use("a", StageFunc(func(f *Flow) {}))
	left := base.Use("left", StageFunc(func(f *Flow) {}))
	right := base.Use("right", StageFunc(func(f *Flow) {}))

	assert.Equal(t, []string{"a"}, base.Names())
	assert.Equal(t, []string{"a", "left"}, left.Names())
	assert.Equal(t, []string{"a", "right"}, right.Names())
}

func TestPipeline_StatusIsObservableInPostLogic(t *testing.T) {
	var status, bytes int
	h := New(nil).
		Use("observe", StageFunc(func(f *Flow) {
			require.False(t, f.Written())
			f.Next()
			status, bytes = f.Status(), f.BytesWritten()
		})).
		ThenFunc(func(f *Flow) {
			f.Writer.WriteHeader(http.StatusCreated)
			_, _ = f.Writer.Write([]byte("hello"))
		})

	serve(h, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 5, bytes)
}

func TestFromMiddleware(t *testing.T) {
	passThrough := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Seen", "yes")
			next.ServeHTTP(w, r)
		})
	}
	blocking := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		})
	}

	t.Run("calls next", func(t *testing.T) {
		h := New(nil).Use("mw", FromMiddleware(passThrough)).
			ThenFunc(func(f *Flow) { f.Writer.WriteHeader(http.StatusOK) })
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "yes", rec.Header().Get("X-Seen"))
	})

	t.Run("blocks", func(t *testing.T) {
		called := false
		h := New(nil).Use("mw", FromMiddleware(blocking)).
			ThenFunc(func(f *Flow) { called = true })
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(t, called)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
