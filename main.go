package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tripsit/erowid-doses/config"
	"github.com/tripsit/erowid-doses/data"
	"github.com/tripsit/erowid-doses/doseparser"
	"github.com/tripsit/erowid-doses/logging"
	"github.com/tripsit/erowid-doses/registry"
	"github.com/tripsit/erowid-doses/scheduler"
	"github.com/tripsit/erowid-doses/server"
	"github.com/tripsit/erowid-doses/validation"
)

const userAgent = "erowid-doses/1.0 (dose dataset builder)"

func main() {
	// A missing .env is fine, the environment may carry everything.
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.InitLogger("logs", cfg.LogRetentionWeeks, logging.ParseLevel(cfg.LogLevel))

	// Input files are validated before any network work so a bad deploy
	// fails immediately.
	reg, err := registry.Load(cfg.RegistryFile)
	if err != nil {
		logging.Error("Failed to load substance registry", "error", err)
		os.Exit(1)
	}
	links, err := registry.LoadLinks(cfg.LinksFile, reg)
	if err != nil {
		logging.Error("Failed to load category links", "error", err)
		os.Exit(1)
	}
	logging.Info("Inputs loaded", "substances", reg.Len(), "category_links", len(links))

	fetcher := doseparser.NewFetcher(
		time.Duration(cfg.FetchTimeoutSeconds)*time.Second,
		cfg.FetchRetries,
		cfg.RequestsPerSecond,
		userAgent,
	)
	coordinator := doseparser.NewCoordinator(reg, links, fetcher, cfg.CrawlWorkers, cfg.MaxReportsPerCat)

	if cfg.OneShot {
		os.Exit(runOnce(cfg, coordinator))
	}

	runServer(cfg, coordinator)
}

// runOnce crawls once, writes the document and returns the exit code:
// 0 for a complete run, 3 when the result is partial. The document is
// written even when the crawl came back empty; the run section carries
// the failure counts, and only a write error is fatal.
func runOnce(cfg *config.Config, coordinator *doseparser.Coordinator) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := coordinator.Run(ctx)

	if err := validation.NewResultValidator().ValidateResult(result); err != nil {
		logging.Warn("Crawl result has quality problems", "error", err)
	}

	if err := doseparser.WriteDocument(cfg.OutputFile, result); err != nil {
		logging.Error("Failed to write output document", "error", err)
		return 1
	}

	logging.Info("Document written",
		"path", cfg.OutputFile,
		"substances", len(result.Substances),
		"partial", result.Run.Partial,
	)

	if result.Run.Partial {
		return 3
	}
	return 0
}

// runServer starts the scheduler and the status API, then blocks until a
// shutdown signal arrives.
func runServer(cfg *config.Config, coordinator *doseparser.Coordinator) {
	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	sched := scheduler.NewScheduler(dataContainer, coordinator)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg, dataContainer)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
	}
}
