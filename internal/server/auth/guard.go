package auth

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/dmitrijs2005/vipkeeper/internal/server/pipeline"
)

// SubjectKey is the state bag key under which the guard stores the
// authenticated user id.
const SubjectKey = "current_user_id"

type ctxKey string

const subjectCtxKey ctxKey = "subject"

// WithSubject returns a copy of ctx carrying the user id.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectCtxKey, subject)
}

// SubjectFromContext returns the user id stored by the guard.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectCtxKey).(string)
	return s, ok && s != ""
}

// Mode selects what the guard answers when authentication fails.
type Mode int

const (
	// ModeReject answers with a JSON 401 body. Used for API routes.
	ModeReject Mode = iota
	// ModeRedirect sends the browser to the login page. Used for HTML pages.
	ModeRedirect
)

// Guard is a pipeline stage that lets a request through only with a valid
// session cookie.
type Guard struct {
	codec     *Codec
	mode      Mode
	loginPath string
	logger    logging.Logger
}

func NewGuard(codec *Codec, mode Mode, loginPath string, logger logging.Logger) *Guard {
	if loginPath == "" {
		loginPath = "/login"
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Guard{codec: codec, mode: mode, loginPath: loginPath, logger: logger.With("module", "auth_guard")}
}

// Authenticate returns the user id of the session carried by r.
func (g *Guard) Authenticate(r *http.Request) (string, error) {
	token, ok := TokenFromRequest(r)
	if !ok {
		return "", common.ErrorUnauthorized
	}
	return g.codec.Decode(token)
}

func (g *Guard) Serve(f *pipeline.Flow) {
	subject, err := g.Authenticate(f.Request)
	if err != nil {
		g.logger.Debug(f.Context(), "request not authenticated", "path", f.Request.URL.Path, "reason", err.Error())
		g.deny(f)
		f.SkipRest()
		return
	}

	f.Set(SubjectKey, subject)
	f.Request = f.Request.WithContext(WithSubject(f.Context(), subject))
	f.Next()
}

func (g *Guard) deny(f *pipeline.Flow) {
	if g.mode == ModeRedirect {
		http.Redirect(f.Writer, f.Request, g.loginPath, http.StatusFound)
		return
	}
	f.Writer.Header().Set("Content-Type", "application/json")
	f.Writer.WriteHeader(http.StatusUnauthorized)
	_, _ = f.Writer.Write([]byte(`{"code":401,"msg":"Unauthorized","data":null}`))
}
