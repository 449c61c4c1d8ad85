package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/indraargamuria/opexio/config"
	"github.com/indraargamuria/opexio/internal/repositories"
	"github.com/indraargamuria/opexio/internal/services"
	"github.com/indraargamuria/opexio/internal/storage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that sweeps sent invoices past their due date and marks them overdue`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connection
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	// Initialize object storage
	store, err := storage.NewMinioStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	clock := services.SystemClock()
	invoiceRepo := repositories.NewInvoiceRepository(db)
	customerRepo := repositories.NewCustomerRepository(db)
	shipmentRepo := repositories.NewShipmentRepository(db)
	invoiceService := services.NewInvoiceService(invoiceRepo, customerRepo, shipmentRepo, store, clock, cfg.Uploads.MaxSizeBytes)

	// Start the overdue invoice sweep cron job
	g.Go(func() error {
		log.Info().Dur("interval", cfg.Worker.OverdueSweepInterval).Msg("Starting overdue invoice sweep")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.OverdueSweepInterval),
			gocron.NewTask(func() {
				if _, err := invoiceService.MarkOverdue(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to sweep overdue invoices")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
