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

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/annotation"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/donation"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/group"
	"github.com/trezcool/selah/core/lesson"
	"github.com/trezcool/selah/core/notification"
	"github.com/trezcool/selah/core/plan"
	"github.com/trezcool/selah/core/podcast"
	"github.com/trezcool/selah/core/prayer"
	"github.com/trezcool/selah/core/user"
)

type (
	// HealthChecker reports whether a backing store answers.
	HealthChecker func(ctx context.Context) error

	Deps struct {
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		HealthCheck HealthChecker

		UserSvc         user.Service
		BibleSvc        bible.Service
		AnnotationSvc   annotation.Service
		PlanSvc         plan.Service
		PrayerSvc       prayer.Service
		GroupSvc        group.Service
		PodcastSvc      podcast.Service
		LessonSvc       lesson.Service
		GamificationSvc gamification.Service
		DonationSvc     donation.Service
		NotificationSvc notification.Service
	}

	Server struct {
		deps     *Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

// NewServer builds the API. Requests logs are disabled in test mode.
func NewServer(deps *Deps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins(conf),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/healthz", s.healthz)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerUserAPI(g, jwt, s.deps)
	registerBibleAPI(g, s.deps)
	registerAnnotationAPI(g, jwt, s.deps)
	registerPlanAPI(g, jwt, s.deps)
	registerPrayerAPI(g, jwt, s.deps)
	registerGroupAPI(g, jwt, s.deps)
	registerPodcastAPI(g, jwt, s.deps)
	registerLessonAPI(g, jwt, s.deps)
	registerGamificationAPI(g, jwt, s.deps)
	registerDonationAPI(g, jwt, s.deps)
	registerNotificationAPI(g, jwt, s.deps)
}

func allowOrigins(conf *core.Config) []string {
	if len(conf.Server.AllowOrigins) > 0 {
		return conf.Server.AllowOrigins
	}
	return []string{conf.FrontendBaseURL}
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that stopped the listener, if any.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT, SIGTERM and the signal raised by a shutdown error.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Selah API!")
}

func (s *Server) healthz(ctx echo.Context) error {
	status := echo.Map{"status": "ok", "build": s.deps.Conf.Build}
	if s.deps.HealthCheck != nil {
		if err := s.deps.HealthCheck(ctx.Request().Context()); err != nil {
			s.deps.Logger.Warn("health check failed", err)
			status["status"] = "db not ready"
			return ctx.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return ctx.JSON(http.StatusOK, status)
}
