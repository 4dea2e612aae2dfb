package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/texresolve/accounts-api/docs"
	"github.com/texresolve/accounts-api/internal/api/handler"
	"github.com/texresolve/accounts-api/internal/api/middleware"
	"github.com/texresolve/accounts-api/internal/core/domain"
	"github.com/texresolve/accounts-api/internal/core/ports"
)

// Dependencies is everything the HTTP layer needs from the composition root.
type Dependencies struct {
	Accounts ports.AccountService
	Tokens   ports.TokenVerifier
	// Ledger enables token revocation on credential change when non-nil.
	Ledger ports.CredentialLedger
	Health map[string]handler.Pinger
	Logger zerolog.Logger

	BodyLimit   string
	CORSOrigins []string
	// Registry receives the HTTP metrics; nil means the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}
	bodyLimit := deps.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "5M"
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.ContextLogger(deps.Logger))
	e.Use(middleware.RequestLog())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{AllowOrigins: origins}))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "accounts",
		Subsystem:  "http",
		Registerer: registerer,
	}))

	// --- Dependencies ---
	accountHandler := handler.NewAccountHandler(deps.Accounts)
	healthHandler := handler.NewHealthHandler(deps.Health)
	auth := middleware.Auth(deps.Tokens, deps.Ledger)
	adminOnly := middleware.Require(auth, domain.RoleAdmin)

	// --- Auth routes ---
	g := e.Group("/auth")
	g.POST("/register", accountHandler.Register)
	g.POST("/login", accountHandler.Login)
	g.PUT("/update", accountHandler.Update, auth)
	g.DELETE("/delete", accountHandler.Delete, adminOnly)
	g.GET("/analytics", accountHandler.Analytics, adminOnly)
	g.GET("/all", accountHandler.List, adminOnly)

	// --- Probes, metrics and docs (no auth required) ---
	e.GET("/test", healthHandler.Test)
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
