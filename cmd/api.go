package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/indraargamuria/opexio/config"
	"github.com/indraargamuria/opexio/internal/api"
	"github.com/indraargamuria/opexio/internal/auth"
	"github.com/indraargamuria/opexio/internal/cache"
	"github.com/indraargamuria/opexio/internal/models"
	"github.com/indraargamuria/opexio/internal/pdf"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/services"
	"github.com/indraargamuria/opexio/internal/storage"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for shipments, invoices and the public confirmation portal`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connection
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	// Initialize object storage
	store, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	// Initialize repositories and services
	clock := services.SystemClock()
	shipmentRepo := repositories.NewShipmentRepository(db)
	customerRepo := repositories.NewCustomerRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	shipmentService := services.NewShipmentService(shipmentRepo, store, pdf.NewStamper(), redisCache, clock, cfg.Public.BaseURL)
	invoiceService := services.NewInvoiceService(invoiceRepo, customerRepo, shipmentRepo, store, clock, cfg.Uploads.MaxSizeBytes)
	resolver := auth.NewSessionResolver(sessionRepo, redisCache, clock)

	// Initialize and start the server
	server := api.NewServer(cfg, shipmentService, invoiceService, customerRepo, resolver)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func initDatabase(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the database
	if err := models.SetupModels(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return db, nil
}
