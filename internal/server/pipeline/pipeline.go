package pipeline

import (
	"net/http"

	"github.com/dmitrijs2005/vipkeeper/internal/logging"
)

// TerminalName is the stage name given to the final handler.
const TerminalName = "handler"

// Pipeline is an immutable, ordered list of named stages. Use returns a new
// Pipeline so a shared base can be extended per route group.
type Pipeline struct {
	logger logging.Logger
	stages []namedStage
}

func New(logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{logger: logger}
}

// Use appends a stage and returns the extended pipeline.
func (p *Pipeline) Use(name string, s Stage) *Pipeline {
	stages := make([]namedStage, len(p.stages), len(p.stages)+1)
	copy(stages, p.stages)
	return &Pipeline{logger: p.logger, stages: append(stages, namedStage{name: name, stage: s})}
}

// Names lists the stage names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.name)
	}
	return names
}

// Then closes the pipeline with a terminal handler.
func (p *Pipeline) Then(terminal Stage) http.Handler {
	stages := make([]namedStage, len(p.stages), len(p.stages)+1)
	copy(stages, p.stages)
	return &handler{
		logger: p.logger,
		stages: append(stages, namedStage{name: TerminalName, stage: terminal}),
	}
}

// ThenFunc is Then for plain functions.
func (p *Pipeline) ThenFunc(fn func(f *Flow)) http.Handler {
	return p.Then(StageFunc(fn))
}

type handler struct {
	logger logging.Logger
	stages []namedStage
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f := newFlow(w, r, h.stages)
	f.Next()

	if !f.skipped || f.Written() {
		return
	}
	if r.Context().Err() != nil {
		h.logger.Debug(r.Context(), "request cancelled before response", "path", r.URL.Path)
		return
	}

	// a stage skipped the chain without answering
	h.logger.Error(r.Context(), "pipeline skipped without a response", "stage", f.skippedBy, "path", r.URL.Path)
	w = f.recorder
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"code":500,"msg":"Internal server error","data":null}`))
}

// FromMiddleware adapts standard net/http middleware into a stage. When the
// middleware does not call its next handler the rest of the chain is
// skipped.
func FromMiddleware(mw func(http.Handler) http.Handler) Stage {
	return StageFunc(func(f *Flow) {
		called := false
		prevW, prevR := f.Writer, f.Request

		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			f.Writer, f.Request = w, r
			f.Next()
		})
		mw(next).ServeHTTP(f.Writer, f.Request)

		f.Writer, f.Request = prevW, prevR
		if !called {
			f.SkipRest()
		}
	})
}
