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

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/common/database"
	"github.com/synaptica-ai/rwe-planner/pkg/common/kafka"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/gateway/middleware"
	"github.com/synaptica-ai/rwe-planner/pkg/gateway/routes"
	"github.com/synaptica-ai/rwe-planner/pkg/health"
	"github.com/synaptica-ai/rwe-planner/pkg/observability/metrics"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
	"golang.org/x/sync/errgroup"
)

const slotTTL = 24 * time.Hour

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var serviceOpts []planning.ServiceOption
	var healthPublisher health.EventPublisher
	if cfg.KafkaEnabled {
		planEvents := kafka.NewProducer(cfg, cfg.KafkaPlanTopic)
		defer planEvents.Close()
		healthEvents := kafka.NewProducer(cfg, cfg.KafkaHealthTopic)
		defer healthEvents.Close()
		serviceOpts = append(serviceOpts, planning.WithPublisher(planEvents))
		healthPublisher = healthEvents
	}

	var history routes.PlanHistory
	if cfg.PlanHistoryEnabled {
		db, err := database.OpenPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres(db)
		repo := planning.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate plan history")
		}
		history = repo
		// Without Kafka the archiver never sees the plans, so store directly.
		if !cfg.KafkaEnabled {
			serviceOpts = append(serviceOpts, planning.WithStore(repo))
		}
	}

	var seq planning.Sequencer = planning.NewMemorySequencer()
	if cfg.RedisEnabled {
		redisClient, err := database.OpenRedis(ctx, cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("Redis unavailable, health snapshots are tracked per replica")
		} else {
			defer redisClient.Close()
			seq = planning.NewRedisSequencer(redisClient, slotTTL)
		}
	}

	agg, err := health.AggregatorFromConfig(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load dependency catalog")
	}
	// Each replica keeps its own snapshot, so its health ticket slot is scoped
	// to the host even when the counter lives in Redis.
	replica, err := os.Hostname()
	if err != nil {
		replica = fmt.Sprintf("pid-%d", os.Getpid())
	}
	monitor := health.NewMonitor(agg, seq, healthPublisher, health.WithReplica(replica))

	service := planning.NewService(planning.ClientFromConfig(ctx, cfg), serviceOpts...)

	// Setup router
	router := mux.NewRouter()

	// Middleware
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	routes.NewPlanningHandler(service, history, cfg.MaxRequestBody).Register(apiRouter)
	routes.NewStatusHandler(monitor).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.WithFields(map[string]interface{}{
			"host":         cfg.ServerHost,
			"port":         cfg.ServerPort,
			"planner":      cfg.PlannerBaseURL,
			"dependencies": len(agg.Catalog().Dependencies),
		}).Info("Planner gateway started")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down planner gateway...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.HealthCheckSchedule != "" {
		if err := monitor.Schedule(gctx, cfg.HealthCheckSchedule); err != nil {
			logger.Log.WithError(err).Fatal("invalid health check schedule")
		}
		g.Go(func() error {
			monitor.Start()
			<-gctx.Done()
			monitor.Stop()
			return nil
		})
	}

	if cfg.DependencyCatalog != "" {
		g.Go(func() error {
			return config.WatchCatalog(gctx, cfg.DependencyCatalog, agg.SetCatalog)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Log.WithError(err).Error("Planner gateway exited with error")
	}
	logger.Log.Info("Planner gateway stopped")
}
