package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/indraargamuria/opexio/config"
	"github.com/indraargamuria/opexio/internal/api/handlers"
	"github.com/indraargamuria/opexio/internal/api/middleware"
	"github.com/indraargamuria/opexio/internal/auth"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/services"
)

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	shipments  *services.ShipmentService
	invoices   *services.InvoiceService
	customers  *repositories.CustomerRepository
	resolver   *auth.SessionResolver
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, shipments *services.ShipmentService, invoices *services.InvoiceService, customers *repositories.CustomerRepository, resolver *auth.SessionResolver) *Server {
	server := &Server{
		config:    cfg,
		shipments: shipments,
		invoices:  invoices,
		customers: customers,
		resolver:  resolver,
	}

	router := server.setupRouter()
	server.router = router

	httpServer := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}
	server.httpServer = httpServer

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.MaxMultipartMemory = s.config.Uploads.MaxSizeBytes

	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Register handlers
	handlers.NewShipmentHandler(s.shipments, s.resolver).RegisterRoutes(router)
	handlers.NewPublicHandler(s.shipments).RegisterRoutes(router)
	handlers.NewInvoiceHandler(s.invoices, s.resolver).RegisterRoutes(router)
	handlers.NewCustomerHandler(s.customers).RegisterRoutes(router)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Router exposes the configured router, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	// Create a timeout context for shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
