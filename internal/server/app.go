// Package server initializes and runs the vipkeeper server.
// It picks the user store, wires the HTTP router and handles graceful
// shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/vipkeeper/internal/logging"
	"github.com/dmitrijs2005/vipkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vipkeeper/internal/server/config"
	"github.com/dmitrijs2005/vipkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/vipkeeper/internal/server/httpserver"
	"github.com/dmitrijs2005/vipkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vipkeeper/internal/server/services"
	"github.com/dmitrijs2005/vipkeeper/internal/server/stages"
	"github.com/dmitrijs2005/vipkeeper/internal/server/throttle"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   repomanager.RepositoryManager
	handler http.Handler
}

// requestFields adds the router's request id to every log record.
func requestFields(ctx context.Context) []any {
	if id := middleware.GetReqID(ctx); id != "" {
		return []any{"request_id", id}
	}
	return nil
}

// NewLogger builds the process logger from the config.
func NewLogger(w io.Writer, c *config.Config) logging.Logger {
	return logging.New(w, c.LogFormat, c.LogLevel, requestFields)
}

// OpenStore returns the user store selected by the DSN, migrated and ready.
func OpenStore(ctx context.Context, dsn string) (repomanager.RepositoryManager, error) {
	if dsn == config.MemoryDSN {
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	m := repomanager.NewPostgresRepositoryManager(db)
	if err := m.RunMigrations(ctx); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("db migrations error: %w", err)
	}
	return m, nil
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(os.Stdout, c)
	}
	if c.GeneratedSecret {
		logger.Warn(ctx, "no secret key configured, using a random one; sessions will not survive a restart")
	}

	store, err := OpenStore(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	codec, err := auth.NewCodec([]byte(c.SecretKey))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	us, err := services.NewUserService(store, codec, c, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	proxies, err := c.TrustedProxyPrefixes()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := httpapi.NewRouter(httpapi.Deps{
		Users:          us,
		Store:          store,
		Codec:          codec,
		Limiter:        throttle.NewLimiter(c.LoginMaxAttempts, c.LoginWindow, c.LoginLockout, throttle.DefaultSize),
		Metrics:        stages.NewMetrics(reg),
		Tracing:        stages.NewTracing(nil),
		Cookie:         auth.CookieOptions{Secure: c.TLSEnabled(), SameSite: http.SameSiteLaxMode},
		AllowedOrigins: c.AllowedOrigins,
		TrustedProxies: proxies,
		Logger:         logger,
	})

	return &App{config: c, logger: logger, store: store, handler: handler}, nil
}

// Handler exposes the router, mostly for tests.
func (app *App) Handler() http.Handler { return app.handler }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var opts []httpserver.Option
	opts = append(opts, httpserver.WithShutdownTimeout(app.config.ShutdownTimeout))
	if app.config.TLSEnabled() {
		opts = append(opts, httpserver.WithTLS(app.config.TLSCertFile, app.config.TLSKeyFile))
	}

	s := httpserver.NewHTTPServer(app.config.HTTPAddr, app.handler, app.logger, opts...)
	err := s.Run(ctx)

	if cerr := app.store.Close(); cerr != nil {
		app.logger.Error(ctx, "closing store", "error", cerr)
	}
	app.logger.Info(ctx, "App stopped")
	return err
}
