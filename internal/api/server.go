package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sellerdesk/seller-backoffice/internal/config"
	"github.com/sellerdesk/seller-backoffice/internal/metrics"
	"github.com/sellerdesk/seller-backoffice/internal/migrate"
	"github.com/sellerdesk/seller-backoffice/internal/models"
	"github.com/sellerdesk/seller-backoffice/internal/utils"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// HealthChecker is the part of the database wrapper the API depends on
type HealthChecker interface {
	Health(ctx context.Context) error
}

// MigrationSource answers migration status queries
type MigrationSource interface {
	Status(ctx context.Context) (*migrate.Status, error)
	Record(ctx context.Context, version int64) (*models.AppliedRecord, error)
	LastRun() migrate.RunStatus
}

type Server struct {
	router     *gin.Engine
	config     *config.Config
	db         HealthChecker
	migrations MigrationSource
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	httpServer *http.Server

	mu         sync.RWMutex
	startupErr error
}

func NewServer(cfg *config.Config, db HealthChecker, migrations MigrationSource, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server requires configuration")
	}
	if db == nil || migrations == nil {
		return nil, fmt.Errorf("server requires a database and a migration runner")
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	if m != nil {
		router.Use(m.GinMiddleware())
	}

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	if len(cfg.HTTP.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(cors.New(corsConfig))

	server := &Server{
		router:     router,
		config:     cfg,
		db:         db,
		migrations: migrations,
		metrics:    m,
		logger:     logger,
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthHandler)

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// Swagger documentation
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1
	v1 := s.router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(s.authMiddleware())
	{
		migrations := protected.Group("/migrations")
		{
			migrations.GET("", s.listMigrationsHandler)
			migrations.GET("/:version", s.getMigrationHandler)
		}
	}
}

// Router exposes the handler for tests and embedding
func (s *Server) Router() http.Handler {
	return s.router
}

// SetStartupError records a failed startup migration run. The server keeps
// serving but reports unhealthy until restarted.
func (s *Server) SetStartupError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startupErr = err
}

func (s *Server) startupError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startupErr
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

const requestIDHeader = "X-Request-ID"

// LoggerMiddleware logs each request and puts a request-scoped logger on the
// request context
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)

		reqLogger := logger.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(utils.WithContext(c.Request.Context(), reqLogger))

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if raw != "" {
			path = path + "?" + raw
		}

		reqLogger.Info().
			Str("client_ip", clientIP).
			Str("method", method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("error", errorMessage).
			Msg("HTTP request")
	}
}

// @title Seller Back-Office API
// @version 1.0
// @description Operational API for the seller back-office: health and schema migration status
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8082
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// healthHandler godoc
// @Summary Health check
// @Description Check database connectivity and the startup migration run
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *Server) healthHandler(c *gin.Context) {
	ctx := c.Request.Context()

	// Check database health
	dbHealthy := true
	var dbError string
	if err := s.db.Health(ctx); err != nil {
		dbHealthy = false
		dbError = err.Error()
	}

	migrationsHealthy := true
	var migrationError string
	if err := s.startupError(); err != nil {
		migrationsHealthy = false
		migrationError = err.Error()
	}

	status := "healthy"
	if !dbHealthy || !migrationsHealthy {
		status = "unhealthy"
	}

	response := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"database": gin.H{
			"healthy": dbHealthy,
			"error":   dbError,
		},
		"migrations": gin.H{
			"healthy":  migrationsHealthy,
			"error":    migrationError,
			"last_run": s.migrations.LastRun(),
		},
	}

	if status != "healthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
