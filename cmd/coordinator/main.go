// ChaosBench coordinator - manages agent registration, scenario dispatch,
// and the operator control channel over HTTP/WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/chaosbench/chaosbench/pkg/api"
	"github.com/chaosbench/chaosbench/pkg/archive"
	"github.com/chaosbench/chaosbench/pkg/cleanup"
	"github.com/chaosbench/chaosbench/pkg/config"
	"github.com/chaosbench/chaosbench/pkg/dispatch"
	"github.com/chaosbench/chaosbench/pkg/metrics"
	"github.com/chaosbench/chaosbench/pkg/proxy"
	"github.com/chaosbench/chaosbench/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Println("Starting ChaosBench coordinator")
	log.Printf("Config Directory: %s", *configDir)

	cfg, err := config.LoadBootstrap(filepath.Join(*configDir, "coordinator.toml"))
	if err != nil {
		log.Fatalf("Failed to load coordinator.toml: %v", err)
	}

	logger := slog.Default()
	st := store.New(logger)
	st.Load(cfg.StatePath)

	loadScenarios := func() {
		scenarios, err := config.LoadScenarioDir(cfg.ScenarioDir)
		if err != nil {
			log.Printf("Failed to load scenario directory %s: %v", cfg.ScenarioDir, err)
			return
		}
		for name, sc := range scenarios {
			st.SaveTestScenario(name, sc)
		}
		log.Printf("Loaded %d file-scenario(s) from %s", len(scenarios), cfg.ScenarioDir)
	}
	loadScenarios()

	stopWatch := config.WatchScenarioDir(cfg.ScenarioDir, loadScenarios)
	defer stopWatch()

	ctx := context.Background()
	metricsShutdown, err := metrics.Init(ctx)
	if err != nil {
		log.Printf("Warning: metrics unavailable: %v", err)
	} else {
		defer metricsShutdown(context.Background())
	}

	var archiveClient *archive.Client
	var cleanupService *cleanup.Service
	if cfg.Database.Host != "" {
		archiveClient, err = archive.Open(ctx, cfg.Database)
		if err != nil {
			log.Printf("Warning: run history archive unavailable: %v", err)
		} else {
			defer archiveClient.Close()
			log.Println("Connected to run history archive")

			cleanupService = cleanup.NewService(cfg.Retention, archiveClient)
			cleanupService.Start(ctx)
			defer cleanupService.Stop()
		}
	}

	eng := dispatch.New(st, dispatch.NewCommandActuator(), logger)
	px := proxy.NewHandler(st, logger)
	server := api.NewServer(cfg, st, eng, px, archiveClient)

	sigCtx, stopSig := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSig()

	g, gCtx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		log.Printf("HTTP/WebSocket server listening on %s", cfg.Listen)
		if err := server.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down, saving state snapshot")
		if err := st.Save(cfg.StatePath); err != nil {
			log.Printf("Error saving state snapshot: %v", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("coordinator stopped: %v", err)
	}
}
