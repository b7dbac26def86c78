package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"production-dashboard-backend/config"
	"production-dashboard-backend/internal/alert"
	"production-dashboard-backend/internal/api"
	"production-dashboard-backend/internal/db"
	"production-dashboard-backend/internal/erp"
	"production-dashboard-backend/internal/jobs"
	"production-dashboard-backend/internal/model"
	"production-dashboard-backend/internal/notification"
	"production-dashboard-backend/internal/production"
	"production-dashboard-backend/internal/store"
	syncsvc "production-dashboard-backend/internal/sync"
	"production-dashboard-backend/internal/ws"
)

// hubNotifier pushes alert events onto the live update channel.
type hubNotifier struct {
	hub *ws.Hub
}

func (n *hubNotifier) Notify(event alert.Event) {
	n.hub.Broadcast(event)
}

func main() {
	logger := log.New(os.Stdout, "dashboardd ", log.LstdFlags)

	// ERP credentials live in the environment; a .env file is optional.
	if err := godotenv.Load(); err != nil {
		logger.Println("no .env file found, using process environment")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	if len(cfg.Machines) > 0 {
		if err := appStore.SeedMachines(ctx, seedModels(cfg.Machines)); err != nil {
			logger.Fatalf("failed to seed machines: %v", err)
		}
	}

	erpClient := erp.NewClient(&cfg.ERP)
	if !erpClient.Configured() {
		logger.Println("ERP credentials not configured; sync will run in local-only mode")
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	var webpushOptions *webpush.Options
	notifiers := []alert.Notifier{&hubNotifier{hub: hub}}
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		workerPool.Start(ctx)
		notifiers = append(notifiers, workerPool)
	} else {
		logger.Println("VAPID keys not configured; alert web push disabled")
	}

	manager := jobs.NewManager(ctx)
	manager.Register(syncsvc.NewService(appStore, erpClient, store.DefaultAssignPolicy(), cfg.ERP.SyncInterval))
	manager.Register(production.NewTicker(appStore, erpClient, cfg.Production.TickInterval))
	manager.Register(alert.NewEngine(appStore, cfg.Alerts.Interval, notifiers...))
	manager.Register(syncsvc.NewBroadcaster(appStore, erpClient, hub, cfg.Broadcast.Interval))
	manager.Start()
	logger.Println("background jobs started")

	handler := api.NewHandler(appStore, erpClient, hub, webpushOptions, cfg.ERP.PushStopStatus)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	// Let in-flight passes finish their commit before terminating.
	manager.Stop()
	manager.Wait()
	cancel()

	logger.Println("Server gracefully stopped")
}

func seedModels(seeds []config.MachineSeed) []model.Machine {
	machines := make([]model.Machine, 0, len(seeds))
	for _, seed := range seeds {
		m := model.Machine{
			ID:       seed.ID,
			Name:     seed.Name,
			Location: seed.Location,
			Status:   model.StatusFree,
		}
		if seed.PipeSize != "" {
			pipeSize := seed.PipeSize
			m.PipeSize = &pipeSize
		}
		if seed.SecondsPerMeter > 0 {
			spm := seed.SecondsPerMeter
			m.SecondsPerMeter = &spm
		}
		machines = append(machines, m)
	}
	return machines
}
