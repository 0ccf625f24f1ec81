package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"permutest/adapters/excel"
	"permutest/adapters/rng"
	"permutest/adapters/stats/statistics"
	"permutest/app"
	"permutest/internal"
	"permutest/internal/config"
	"permutest/internal/engine"
	"permutest/internal/store"
	"permutest/ports"
	"permutest/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := internal.NewDefaultLogger()

	var rngPort ports.RNGPort = rng.NewHashedRNG()
	stream, err := rngPort.SeededStream(context.Background(), "simulation", cfg.Simulation.Seed)
	if err != nil {
		log.Fatalf("failed to seed RNG stream: %v", err)
	}

	service := app.NewSimulationService(
		store.New(),
		statistics.NewRegistry(),
		engine.New(stream, logger),
		logger,
	)
	applyDefaults(service, cfg, logger)

	if cfg.Data.ImportFile != "" {
		var reader ports.TableReaderPort = excel.NewTableReader(cfg.Data.ImportFile)
		table, err := reader.ReadTable("")
		if err != nil {
			log.Fatalf("failed to import table from %s: %v", cfg.Data.ImportFile, err)
		}
		if _, err := service.SetTable(table); err != nil {
			log.Fatalf("failed to install imported table: %v", err)
		}
		logger.Info("imported %d rows from %s", len(table.Rows), cfg.Data.ImportFile)
	}

	server := ui.NewServer(service, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening on :%s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Unwind the simulation loop before taking the server down.
		if err := service.PauseSimulation(); err == nil {
			logger.Info("paused running simulation for shutdown")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// applyDefaults pushes the configured simulation defaults through the
// controller's validated setters.
func applyDefaults(service *app.SimulationService, cfg *config.Config, logger *internal.Logger) {
	if err := service.SetSimulationSpeed(cfg.Simulation.DefaultSpeed); err != nil {
		logger.Warn("ignoring SIM_DEFAULT_SPEED: %v", err)
	}
	if err := service.SetTotalIterations(cfg.Simulation.DefaultTotal); err != nil {
		logger.Warn("ignoring SIM_DEFAULT_ITERATIONS: %v", err)
	}
	if err := service.SetTailType(cfg.Simulation.DefaultTail); err != nil {
		logger.Warn("ignoring SIM_DEFAULT_TAIL: %v", err)
	}
	if err := service.SetBlockingEnabled(cfg.Simulation.BlockingEnabled); err != nil {
		logger.Warn("ignoring SIM_BLOCKING: %v", err)
	}
}
