package echoapi

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/masomo-bff/core"
	"github.com/trezcool/masomo-bff/core/auth"
	"github.com/trezcool/masomo-bff/core/dashboard"
	"github.com/trezcool/masomo-bff/core/ratelimit"
)

type (
	ServerDeps struct {
		Conf         *core.Config
		Logger       core.Logger
		Validate     *validator.Validate
		Translator   ut.Translator
		DashboardSvc dashboard.Service
		RateStore    ratelimit.Store
		Verifier     *auth.Verifier
		LegacyClient *http.Client // nil: a client with the upstream timeout
		AccessLog    io.Writer    // nil: os.Stdout
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	if deps.LegacyClient == nil {
		deps.LegacyClient = &http.Client{Timeout: deps.Conf.Upstream.Timeout}
	}
	if deps.AccessLog == nil {
		deps.AccessLog = os.Stdout
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)

	s.app.Pre(traceMiddleware(), middleware.RemoveTrailingSlash())
	s.app.Use(s.pipeline()...)

	s.app.GET(conf.Server.BFFPrefix+"/health", health)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	registerDashboardAPI(s.app, conf.Server.BFFPrefix, s.deps.DashboardSvc, s.deps.Validate, s.deps.Translator)
}

// pipeline lists the global middleware, outermost first. The error handler wraps all of them.
func (s *Server) pipeline() []echo.MiddlewareFunc {
	conf := s.deps.Conf
	unlogged := []string{conf.Server.BFFPrefix + "/health", "/metrics"}

	return []echo.MiddlewareFunc{
		// panics become 500s in every mode; the stack is only printed while developing
		middleware.RecoverWithConfig(middleware.RecoverConfig{
			LogLevel:          log.ERROR,
			DisablePrintStack: !conf.Debug,
		}),
		metricsMiddleware(),
		middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(ctx echo.Context) bool {
				return core.HasAnyPrefix(ctx.Request().URL.Path, unlogged)
			},
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human} traceId=${header:X-Trace-Id}\n",
			Output: s.deps.AccessLog,
		}),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: conf.Server.CORSOrigins,
			AllowMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions,
			},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, HeaderTraceID},
			ExposeHeaders:    []string{HeaderTraceID, headerRateLimitLimit, headerRateLimitRemaining, headerRateLimitReset, headerRetryAfter},
			AllowCredentials: true,
			MaxAge:           86400,
		}),
		middleware.BodyLimit(conf.Server.BodyLimit),
		s.authMiddleware(),
		s.rateLimitMiddleware(),
		s.legacyProxyMiddleware(),
	}
}

// Start blocks serving on the configured address; a listener failure is reported on Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
