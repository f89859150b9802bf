package router

import (
	"net/http"

	_ "github.com/fichesante/backend/docs"
	"github.com/fichesante/backend/internal/infrastructure/config"
	"github.com/fichesante/backend/internal/infrastructure/logger"
	"github.com/fichesante/backend/internal/interfaces/http/dto"
	"github.com/fichesante/backend/internal/interfaces/http/handler"
	"github.com/fichesante/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Mount points of the API
const (
	APIBasePath     = "/api/v1"
	DocumentsPrefix = "/documents"
)

// swaggerCSP lets the Swagger UI run its inline bootstrap script
const swaggerCSP = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"

// EngineConfig holds what the HTTP engine needs besides the handlers
type EngineConfig struct {
	ServiceName string
	HTTP        config.HTTPConfig
	// Telemetry enables the tracing and metrics middleware
	Telemetry      bool
	Meters         middleware.MeterSource
	TracerProvider trace.TracerProvider
	Logger         *zap.Logger
}

// Handlers groups the HTTP handlers of the service.
// Archives is nil unless archives are published to the local file system.
type Handlers struct {
	Documents *handler.DocumentHandler
	Archives  *handler.ArchiveHandler
	System    *handler.SystemHandler
}

// NewEngine builds the gin engine: middleware chain, then every route under /api/v1
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName:    cfg.ServiceName,
		Enabled:        cfg.Telemetry,
		TracerProvider: cfg.TracerProvider,
	}))
	engine.Use(middleware.DocumentSpan())
	engine.Use(logger.GinMiddleware(log, APIBasePath+"/health"))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		Meters:  cfg.Meters,
		Enabled: cfg.Telemetry,
		Logger:  log,
	}))

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(cors))
	engine.Use(middleware.Secure())

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "route not found", c.GetString(middleware.RequestIDKey)))
	})

	if cfg.HTTP.Swagger {
		engine.GET("/swagger/*any", func(c *gin.Context) {
			c.Header("Content-Security-Policy", swaggerCSP)
			c.Next()
		}, ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r := NewRouter(engine)
	for _, group := range Groups(cfg, h) {
		r.Register(group)
	}
	r.Setup()
	return engine
}

// Groups returns the route groups of the API
func Groups(cfg EngineConfig, h Handlers) []*DomainGroup {
	groups := make([]*DomainGroup, 0, 4)

	// write endpoints share one body cap and one per-client budget
	writes := []gin.HandlerFunc{}
	if cfg.HTTP.MaxBodyBytes > 0 {
		writes = append(writes, middleware.BodyLimit(cfg.HTTP.MaxBodyBytes))
	}
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst, cfg.HTTP.RateClients)
		writes = append(writes, middleware.RateLimit(limiter))
	}

	if h.System != nil {
		system := NewDomainGroup("system", "")
		system.GET("/health", h.System.Health)
		system.GET("/system/info", h.System.GetSystemInfo)
		groups = append(groups, system)
	}

	if h.Documents != nil {
		docs := NewDomainGroup("documents", DocumentsPrefix)
		docs.GET("", h.Documents.ListDocuments)
		docs.GET("/:id", h.Documents.GetDocument)
		// :variant carries the file name, e.g. 4pages.pdf
		docs.GET("/:id/:variant", h.Documents.Download)
		docs.GET("/:id/:variant/preview", h.Documents.Preview)
		docs.GET("/:id/:variant/status", h.Documents.State)
		docs.GET("/:id/:variant/error", h.Documents.LastError)
		docs.DELETE("/:id/:variant/error", h.Documents.DismissError)
		groups = append(groups, docs)

		batches := NewDomainGroup("batches", "").Use(writes...)
		batches.POST("/batches", h.Documents.PackageBatch)
		batches.POST("/preload", h.Documents.Preload)
		groups = append(groups, batches)
	}

	if h.Archives != nil {
		archives := NewDomainGroup("archives", "/archives")
		archives.GET("/*path", h.Archives.Download)
		groups = append(groups, archives)

		removals := NewDomainGroup("archive-removals", "/archives").Use(writes...)
		removals.DELETE("/*path", h.Archives.Delete)
		groups = append(groups, removals)
	}
	return groups
}
