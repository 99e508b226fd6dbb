package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"asset-store/internal/app"
	"asset-store/internal/logging"
	"asset-store/internal/memory"
	"asset-store/internal/metrics"
	"asset-store/internal/startup"
)

// pinger is satisfied by the record store.
type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	startTime := time.Now()

	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, config)
	if err != nil {
		startup.LogFatal("Initialization failed: %v", err)
	}

	a.Memory.Start()

	collector := metrics.NewCollector(a.DB, time.Minute)
	collector.Start()

	go func() {
		if _, err := a.Housekeeper.Run(ctx); err != nil {
			logging.Warn("Initial housekeeping: %v", err)
		}
	}()
	if err := a.Housekeeper.Start(); err != nil {
		startup.LogFatal("Housekeeping schedule error: %v", err)
	}

	var srv *http.Server
	if config.MetricsEnabled {
		router := setupRouter(a.DB)
		startup.LogHTTPRoutes(router)
		srv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				startup.LogFatal("Metrics server error: %v", err)
			}
		}()
	}

	startup.LogServerStarted(startup.ServerConfig{
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	<-ctx.Done()
	shutdown(srv, collector, a)
}

func setupRouter(db pinger) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler(db)).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", versionHandler).Methods(http.MethodGet)
	return r
}

func healthHandler(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "healthy", http.StatusOK
		if err := db.Ping(r.Context()); err != nil {
			logging.Warn("Health check failed: %v", err)
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		if err := json.NewEncoder(w).Encode(map[string]string{"status": status}); err != nil {
			logging.Debug("Failed to write health response: %v", err)
		}
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(startup.GetBuildInfo()); err != nil {
		logging.Debug("Failed to write version response: %v", err)
	}
}

func shutdown(srv *http.Server, collector *metrics.Collector, a *app.App) {
	startup.LogShutdownInitiated("signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if srv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping housekeeping and closing database")
	if err := a.Close(); err != nil {
		logging.Warn("Shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Housekeeping stopped and database closed")
	}

	startup.LogShutdownComplete()
	os.Exit(0)
}
