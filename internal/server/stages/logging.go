package stages

import (
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vipkeeper/internal/server/pipeline"
)

// AccessLog logs one line per request after the rest of the chain ran.
// Server errors are logged at error level.
type AccessLog struct {
	logger logging.Logger
	now    func() time.Time
}

func NewAccessLog(logger logging.Logger) *AccessLog {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AccessLog{logger: logger.With("module", "http"), now: time.Now}
}

func (a *AccessLog) Serve(f *pipeline.Flow) {
	start := a.now()
	f.Next()

	status := statusOf(f.Status())
	args := []any{
		"method", f.Request.Method,
		"path", f.Request.URL.Path,
		"status", status,
		"bytes", f.BytesWritten(),
		"duration", a.now().Sub(start),
	}
	if f.Skipped() {
		args = append(args, "skipped", true)
	}
	if user := f.GetString(auth.SubjectKey); user != "" {
		args = append(args, "user_id", user)
	}

	if status >= 500 {
		a.logger.Error(f.Context(), "request", args...)
		return
	}
	a.logger.Info(f.Context(), "request", args...)
}
