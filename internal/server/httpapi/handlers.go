package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/common"
	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vipkeeper/internal/server/models"
	"github.com/dmitrijs2005/vipkeeper/internal/server/pipeline"
	"github.com/dmitrijs2005/vipkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vipkeeper/internal/server/services"
	"github.com/dmitrijs2005/vipkeeper/internal/server/stages"
	"github.com/dmitrijs2005/vipkeeper/internal/server/throttle"
	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const maxBodyBytes = 1 << 20

// Handlers are the terminal stages of the routes.
type Handlers struct {
	users   *services.UserService
	store   repomanager.RepositoryManager
	guard   *auth.Guard
	limiter *throttle.Limiter
	metrics *stages.Metrics
	cookie  auth.CookieOptions
	proxies []netip.Prefix
	logger  logging.Logger
	now     func() time.Time
}

func NewHandlers(d Deps) *Handlers {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		users:   d.Users,
		store:   d.Store,
		guard:   auth.NewGuard(d.Codec, auth.ModeRedirect, "/login", logger),
		limiter: d.Limiter,
		metrics: d.Metrics,
		cookie:  d.Cookie,
		proxies: d.TrustedProxies,
		logger:  logger.With("module", "httpapi"),
		now:     now,
	}
}

// --- pages ---

func (h *Handlers) LoginPage(f *pipeline.Flow) {
	if _, err := h.guard.Authenticate(f.Request); err == nil {
		http.Redirect(f.Writer, f.Request, "/users", http.StatusFound)
		return
	}
	h.render(f, "login", nil)
}

type userListData struct {
	Email string
	Page  pageView
}

// UsersPage renders the user table. Requests carrying the fragment header
// get the table alone so the page can refresh it in place.
func (h *Handlers) UsersPage(f *pipeline.Flow) {
	filter, err := parseListFilter(f.Request)
	if err != nil {
		writeError(f.Writer, f.Request, h.logger, err)
		return
	}

	page, err := h.users.List(f.Context(), filter)
	if err != nil {
		writeError(f.Writer, f.Request, h.logger, err)
		return
	}

	data := userListData{Email: filter.Email, Page: toPageView(page)}
	if f.Request.Header.Get(common.FragmentHeaderName) != "" {
		h.render(f, "user_list_frag", data)
		return
	}
	h.render(f, "user_list_page", data)
}

func (h *Handlers) render(f *pipeline.Flow, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		writeError(f.Writer, f.Request, h.logger, fmt.Errorf("render %s: %w", name, err))
		return
	}
	f.Writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	f.Writer.WriteHeader(http.StatusOK)
	_, _ = f.Writer.Write(buf.Bytes())
}

// --- session ---

// Login checks the credentials, sets the session cookie and returns the
// user with its token. Failures count against the client address.
func (h *Handlers) Login(f *pipeline.Flow) {
	w, r := f.Writer, f.Request
	ip := clientIP(r, h.proxies)

	if wait := h.limiter.Check(ip); wait > 0 {
		h.metrics.ObserveLogin(stages.LoginThrottled)
		writeError(w, r, h.logger, &lockedError{retryAfter: wait})
		return
	}

	in, err := decodeLogin(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.users.Login(f.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			h.metrics.ObserveLogin(stages.LoginFailure)
			if left := h.limiter.Failure(ip); left == 0 {
				h.logger.Warn(f.Context(), "login locked", "ip", ip)
			}
		}
		writeError(w, r, h.logger, err)
		return
	}

	h.limiter.Success(ip)
	h.metrics.ObserveLogin(stages.LoginSuccess)

	http.SetCookie(w, auth.SessionCookie(res.Token, res.ExpiresAt, h.now(), h.cookie))
	writeOK(w, loginView{
		userView: toUserView(res.User),
		Token:    res.Token,
		Exp:      res.ExpiresAt.Unix(),
	})
}

func (h *Handlers) Logout(f *pipeline.Flow) {
	auth.ClearSessionCookie(f.Writer, h.cookie)
	writeOK(f.Writer, struct{}{})
}

// --- users API ---

func (h *Handlers) Me(f *pipeline.Flow) {
	id, ok := auth.SubjectFromContext(f.Context())
	if !ok {
		writeStatus(f.Writer, http.StatusUnauthorized, MsgUnauthorized)
		return
	}
	h.respondUser(f, func() (*models.User, error) { return h.users.Get(f.Context(), id) })
}

func (h *Handlers) ListUsers(f *pipeline.Flow) {
	filter, err := parseListFilter(f.Request)
	if err != nil {
		writeError(f.Writer, f.Request, h.logger, err)
		return
	}
	page, err := h.users.List(f.Context(), filter)
	if err != nil {
		writeError(f.Writer, f.Request, h.logger, err)
		return
	}
	writeOK(f.Writer, toPageView(page))
}

func (h *Handlers) CreateUser(f *pipeline.Flow) {
	var in services.CreateUserInput
	if err := decodeJSON(f.Request, &in); err != nil {
		writeError(f.Writer, f.Request, h.logger, err)
		return
	}
	h.respondUser(f, func() (*models.User, error) { return h.users.Create(f.Context(), in) })
}

func (h *Handlers) GetUser(f *pipeline.Flow) {
	id := chi.URLParam(f.Request, "id")
	h.respondUser(f, func() (*models.User, error) { return h.users.Get(f.Context(), id) })
}

func (h *Handlers) UpdateUser(f *pipeline.Flow) {
	var in services.UpdateUserInput
	if err := decodeJSON(f.Request, &in); err != nil {
		writeError(f.Writer, f.Request, h.logger, err)
		return
	}
	id := chi.URLParam(f.Request, "id")
	h.respondUser(f, func() (*models.User, error) { return h.users.Update(f.Context(), id, in) })
}

func (h *Handlers) DeleteUser(f *pipeline.Flow) {
	if err := h.users.Delete(f.Context(), chi.URLParam(f.Request, "id")); err != nil {
		writeError(f.Writer, f.Request, h.logger, err)
		return
	}
	writeOK(f.Writer, struct{}{})
}

func (h *Handlers) respondUser(f *pipeline.Flow, op func() (*models.User, error)) {
	u, err := op()
	if err != nil {
		writeError(f.Writer, f.Request, h.logger, err)
		return
	}
	writeOK(f.Writer, toUserView(u))
}

// Health reports whether the user store answers.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error(r.Context(), "health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// --- request decoding ---

func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadBody)
		}
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}

// decodeLogin accepts a JSON body or a classic form post.
func decodeLogin(r *http.Request) (services.LoginInput, error) {
	var in services.LoginInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return in, fmt.Errorf("%w: %w", errBadBody, err)
		}
		in.Email = r.PostFormValue("email")
		in.Password = r.PostFormValue("password")
		return in, nil
	}

	err := decodeJSON(r, &in)
	return in, err
}

func parseListFilter(r *http.Request) (models.ListFilter, error) {
	q := r.URL.Query()
	filter := models.ListFilter{Email: q.Get("email")}

	ve := &common.ValidationError{}
	for name, dst := range map[string]*int{"current_page": &filter.Page, "page_size": &filter.PageSize} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ve.Add(name, "must be a positive integer")
			continue
		}
		*dst = n
	}
	if len(ve.Fields) > 0 {
		return filter, ve
	}
	return filter, nil
}
