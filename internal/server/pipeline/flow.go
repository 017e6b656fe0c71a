// Package pipeline runs an ordered chain of request stages in front of a
// terminal handler.
//
// Each stage gets the per-request Flow. Code a stage runs before calling
// Flow.Next is its pre-logic and runs in registration order; code after
// Next is its post-logic and runs in reverse order while the chain unwinds.
// A stage that calls Flow.SkipRest stops every stage after it, including
// the handler, but the post-logic of stages already entered still runs.
package pipeline

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Stage is one unit of request interception.
type Stage interface {
	Serve(f *Flow)
}

// StageFunc adapts a plain function to Stage.
type StageFunc func(f *Flow)

func (fn StageFunc) Serve(f *Flow) { fn(f) }

type namedStage struct {
	name  string
	stage Stage
}

// Flow is the state of one request travelling through a pipeline. It is
// owned by the goroutine serving the request and must not be shared.
type Flow struct {
	Writer  http.ResponseWriter
	Request *http.Request

	recorder  middleware.WrapResponseWriter
	stages    []namedStage
	cursor    int
	current   string
	skipped   bool
	skippedBy string
	state     map[string]any
}

func newFlow(w http.ResponseWriter, r *http.Request, stages []namedStage) *Flow {
	rec := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	return &Flow{
		Writer:   rec,
		Request:  r,
		recorder: rec,
		stages:   stages,
	}
}

// Context returns the context of the current request.
func (f *Flow) Context() context.Context {
	return f.Request.Context()
}

// Next runs the rest of the chain. It is a no-op once the flow is skipped
// or every stage has run. A stage that returns without calling Next lets
// the dispatcher continue with the following stage. A cancelled request
// context skips everything that has not started yet.
func (f *Flow) Next() {
	for !f.skipped && f.cursor < len(f.stages) {
		if f.Request.Context().Err() != nil {
			f.skipped = true
			f.skippedBy = "context"
			return
		}
		s := f.stages[f.cursor]
		f.cursor++
		prev := f.current
		f.current = s.name
		s.stage.Serve(f)
		f.current = prev
	}
}

// SkipRest stops the chain after the current stage. The caller is
// responsible for writing the response.
func (f *Flow) SkipRest() {
	if f.skipped {
		return
	}
	f.skipped = true
	f.skippedBy = f.current
}

// Skipped reports whether SkipRest was called (or the request was cancelled).
func (f *Flow) Skipped() bool { return f.skipped }

// Set stores a value in the per-request state bag.
func (f *Flow) Set(key string, value any) {
	if f.state == nil {
		f.state = make(map[string]any)
	}
	f.state[key] = value
}

// Get returns a value from the per-request state bag.
func (f *Flow) Get(key string) (any, bool) {
	v, ok := f.state[key]
	return v, ok
}

// MustGet returns the value stored under key and panics when it is missing.
// Use it only for keys an earlier stage is known to set.
func (f *Flow) MustGet(key string) any {
	v, ok := f.state[key]
	if !ok {
		panic("pipeline: key \"" + key + "\" does not exist")
	}
	return v
}

// GetString returns the string stored under key, or "" when the key is
// missing or holds something else.
func (f *Flow) GetString(key string) string {
	v, _ := f.state[key].(string)
	return v
}

// Status returns the HTTP status written so far, 0 when nothing was written.
func (f *Flow) Status() int { return f.recorder.Status() }

// BytesWritten returns the number of body bytes written so far.
func (f *Flow) BytesWritten() int { return f.recorder.BytesWritten() }

// Written reports whether a status line or body has been sent.
func (f *Flow) Written() bool {
	return f.recorder.Status() != 0 || f.recorder.BytesWritten() > 0
}
