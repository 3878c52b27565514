package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/analytics"
	"github.com/eventuais/eventuais/core/crm"
	"github.com/eventuais/eventuais/core/marketing"
	"github.com/eventuais/eventuais/core/project"
	"github.com/eventuais/eventuais/core/support"
	"github.com/eventuais/eventuais/core/user"
)

type (
	// Deps holds everything the HTTP layer needs.
	Deps struct {
		Conf   *core.Config
		Logger core.Logger
		DB     core.DB
		Cache  core.Cache

		UserSvc      *user.Service
		CRMSvc       *crm.Service
		MarketingSvc *marketing.Service
		SupportSvc   *support.Service
		AnalyticsSvc *analytics.Service
		ProjectSvc   *project.Service

		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     *Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps Deps) Server {
	s := &server{
		deps:     &deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestID())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	api := s.app.Group("/api")
	api.GET("/health", s.health)

	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(api, jwt, s.deps)

	ag := api.Group("", jwt)
	registerCRMAPI(ag.Group("/crm"), s.deps)
	registerAccountAPI(ag.Group("/crm"), s.deps)
	registerMarketingAPI(ag.Group("/crm"), s.deps)
	registerSupportAPI(ag.Group("/crm"), s.deps)
	registerAnalyticsAPI(ag.Group("/crm"), s.deps)
	registerProjectAPI(ag.Group("/projects"), s.deps)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

type HealthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Cache  string `json:"cache"`
}

func (s *server) health(ctx echo.Context) error {
	resp := HealthResponse{Status: "ok", DB: "ok", Cache: "ok"}
	code := http.StatusOK

	reqCtx := ctx.Request().Context()
	if err := s.deps.DB.PingContext(reqCtx); err != nil {
		s.deps.Logger.Warn("health: database unreachable", err)
		resp.Status, resp.DB, code = "unavailable", "unreachable", http.StatusServiceUnavailable
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(reqCtx); err != nil {
			s.deps.Logger.Warn("health: cache unreachable", err)
			resp.Status, resp.Cache, code = "unavailable", "unreachable", http.StatusServiceUnavailable
		}
	} else {
		resp.Cache = "disabled"
	}
	return ctx.JSON(code, resp)
}
