package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/rwe-planner/pkg/common/config"
	"github.com/synaptica-ai/rwe-planner/pkg/common/database"
	"github.com/synaptica-ai/rwe-planner/pkg/common/kafka"
	"github.com/synaptica-ai/rwe-planner/pkg/common/logger"
	"github.com/synaptica-ai/rwe-planner/pkg/common/models"
	"github.com/synaptica-ai/rwe-planner/pkg/planning"
	"golang.org/x/sync/errgroup"
)

const archiverPort = "8251"

type Archiver struct {
	repo *planning.Repository
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.OpenPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	repo := planning.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate plan history")
	}
	app := &Archiver{repo: repo}

	consumer := kafka.NewConsumer(cfg, cfg.KafkaPlanTopic, "plan-archiver")
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, archiverPort),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Consume(gctx, app.handleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Log.WithFields(map[string]interface{}{
			"host":  cfg.ServerHost,
			"port":  archiverPort,
			"topic": cfg.KafkaPlanTopic,
		}).Info("Plan archiver started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.WithError(err).Error("Plan archiver exited with error")
	}
	logger.Log.Info("Plan archiver stopped")
}

func (a *Archiver) handleEvent(ctx context.Context, event models.Event) error {
	switch event.Type {
	case models.EventPlanCompleted:
	case models.EventPlanFailed:
		logger.WithFields(map[string]interface{}{
			"event_id":     event.ID,
			"disease_area": event.Data["disease_area"],
			"error":        event.Data["error"],
		}).Warn("Plan failed upstream")
		return nil
	default:
		return nil
	}

	rec, err := planning.RecordFromEvent(event)
	if err != nil {
		// Malformed payloads will never succeed; commit and move on.
		logger.Get().WithError(err).WithField("event_id", event.ID).Error("Discarding plan event")
		return nil
	}
	if err := a.repo.Save(ctx, rec); err != nil {
		return fmt.Errorf("archive plan %s: %w", rec.StudyID, err)
	}

	logger.WithFields(map[string]interface{}{
		"study_id":  rec.StudyID,
		"record_id": rec.ID,
	}).Info("Plan archived")
	return nil
}
