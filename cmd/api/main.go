package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/srivatsav09/JobScheduler/pkg/api"
	"github.com/srivatsav09/JobScheduler/pkg/config"
	"github.com/srivatsav09/JobScheduler/pkg/jobs"
	"github.com/srivatsav09/JobScheduler/pkg/logging"
	"github.com/srivatsav09/JobScheduler/pkg/metrics"
	"github.com/srivatsav09/JobScheduler/pkg/queue"
	"github.com/srivatsav09/JobScheduler/pkg/retry"
	"github.com/srivatsav09/JobScheduler/pkg/shutdown"
	"github.com/srivatsav09/JobScheduler/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger(logging.ERROR, false).Error("Invalid configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON).WithField("component", "api")

	st, tr, err := connect(cfg, logger)
	if err != nil {
		logger.Error("Startup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	registry := jobs.NewRegistry()
	handler := api.NewHandler(st, tr, registry, logger, collector)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	apiServer := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", collector.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	mgr := shutdown.New(30 * time.Second)
	mgr.Register(shutdown.CloseResource(st, "store"))
	mgr.Register(shutdown.CloseResource(tr, "transport"))
	mgr.Register(shutdown.StopHTTPServer(metricsServer, "metrics"))
	mgr.Register(shutdown.StopHTTPServer(apiServer, "api"))

	go func() {
		logger.Info("Metrics server listening", map[string]interface{}{"addr": cfg.MetricsAddr})
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	go func() {
		logger.Info("API server listening", map[string]interface{}{"addr": cfg.APIAddr})
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	mgr.Wait()
	mgr.Shutdown()
}

// connect opens the store and transport, retrying through the startup
// grace period so the process survives a slow database or Redis
func connect(cfg *config.Config, logger *logging.Logger) (store.Store, queue.Transport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartupGrace())
	defer cancel()

	var st store.Store
	err := retry.Do(ctx, retry.StartupConfig(cfg.StartupGrace()), func() error {
		var err error
		st, err = store.New(cfg.StoreConfig())
		if err != nil {
			logger.Warn("Store not ready, retrying", map[string]interface{}{"error": err.Error()})
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var tr queue.Transport
	if cfg.TransportURL == "memory" {
		tr = queue.NewMemoryTransport()
	} else {
		err = retry.Do(ctx, retry.StartupConfig(cfg.StartupGrace()), func() error {
			rt, err := queue.NewRedisTransport(cfg.TransportURL)
			if err != nil {
				return err
			}
			if err := rt.Ping(ctx); err != nil {
				rt.Close()
				logger.Warn("Transport not ready, retrying", map[string]interface{}{"error": err.Error()})
				return err
			}
			tr = rt
			return nil
		})
		if err != nil {
			st.Close()
			return nil, nil, err
		}
	}

	return st, tr, nil
}
