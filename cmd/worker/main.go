package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/srivatsav09/JobScheduler/pkg/config"
	"github.com/srivatsav09/JobScheduler/pkg/jobs"
	"github.com/srivatsav09/JobScheduler/pkg/logging"
	"github.com/srivatsav09/JobScheduler/pkg/metrics"
	"github.com/srivatsav09/JobScheduler/pkg/queue"
	"github.com/srivatsav09/JobScheduler/pkg/retry"
	"github.com/srivatsav09/JobScheduler/pkg/scheduler"
	"github.com/srivatsav09/JobScheduler/pkg/shutdown"
	"github.com/srivatsav09/JobScheduler/pkg/store"
	"github.com/srivatsav09/JobScheduler/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewLogger(logging.ERROR, false).Error("Invalid configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON).WithField("component", "worker")

	st, tr, err := connect(cfg, logger)
	if err != nil {
		logger.Error("Startup failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	registry := jobs.NewRegistry()

	engine, err := scheduler.NewEngine(st, tr, scheduler.EngineConfig{
		TickInterval:  cfg.TickInterval(),
		BatchSize:     cfg.EngineBatchSize,
		DispatchLimit: cfg.DispatchLimit,
		DefaultPolicy: cfg.DefaultPolicy,
	}, logger, collector)
	if err != nil {
		logger.Error("Failed to build engine", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	pool := worker.NewPool(worker.PoolConfig{
		Size:       cfg.WorkerPoolSize,
		PopTimeout: cfg.PopTimeout(),
	}, st, tr, registry, logger, collector)

	if err := engine.Start(); err != nil {
		logger.Error("Failed to start engine", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	pool.Start()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", collector.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	mgr := shutdown.New(60 * time.Second)
	mgr.Register(shutdown.CloseResource(st, "store"))
	mgr.Register(shutdown.CloseResource(tr, "transport"))
	mgr.Register(shutdown.StopHTTPServer(metricsServer, "metrics"))
	mgr.Register(func(ctx context.Context) error {
		engine.Stop()
		return nil
	})
	mgr.Register(func(ctx context.Context) error {
		pool.Stop()
		return nil
	})

	go func() {
		logger.Info("Metrics server listening", map[string]interface{}{"addr": cfg.MetricsAddr})
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	mgr.Wait()
	mgr.Shutdown()
}

// connect opens the store and transport, retrying through the startup
// grace period
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
