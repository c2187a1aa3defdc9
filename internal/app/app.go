package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"homewatch/internal/config"
	"homewatch/internal/handler"
	"homewatch/internal/logger"
	"homewatch/internal/repository/sqlite"
	"homewatch/internal/route"
	"homewatch/internal/service"
	"homewatch/internal/service/ai"
	"homewatch/internal/service/storage"
	"homewatch/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config        *config.Config
	logger        *logger.Logger
	db            *sqlite.DB
	observations  *sqlite.ObservationRepository
	detections    *sqlite.DetectionRepository
	presence      *ai.PresenceDetector
	activity      *ai.ActivityClassifier
	bufferService *storage.BufferService
	hubService    *websocket.HubService
	manager       *service.Manager
}

// NewApp opens the database, loads the perception models and builds the pipeline.
// Missing models are not fatal; the detectors then report nothing.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	observations := sqlite.NewObservationRepository(db)
	detections := sqlite.NewDetectionRepository(db)

	presence := ai.NewPresenceDetector(cfg, logger)
	activity := ai.NewActivityClassifier(cfg, logger)

	buffer := storage.NewBufferService(logger, observations)
	hub := websocket.NewHubService(logger)
	mng := service.NewManager(presence, activity, buffer, hub, cfg, logger)

	return &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		observations:  observations,
		detections:    detections,
		presence:      presence,
		activity:      activity,
		bufferService: buffer,
		hubService:    hub,
		manager:       mng,
	}, nil
}

// Run serves HTTP and camera traffic until ctx is done, then shuts down in order:
// HTTP server, camera ingest, workers, buffer flush, models, database.
func (a *App) Run(ctx context.Context) error {
	bgCtx, stopBackground := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	bg.Add(2)
	go func() { defer bg.Done(); a.hubService.Run(bgCtx) }()
	go func() { defer bg.Done(); a.bufferService.Run(bgCtx) }()

	ingestCtx, stopIngest := context.WithCancel(ctx)
	var ingest sync.WaitGroup
	ingest.Add(1)
	go func() { defer ingest.Done(); handler.UDPCameraHandler(ingestCtx, a.manager, a.logger, a.config) }()

	router := route.SetupRoutes(route.Deps{
		Manager:         a.manager,
		ObservationRepo: a.observations,
		DetectionRepo:   a.detections,
		Presence:        a.presence,
		Activity:        a.activity,
	}, a.config, a.logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Homewatch server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Presence model: %q (loaded=%t), activity model: %q (loaded=%t)",
		a.config.HumanDetectionModel, a.presence.Loaded(), a.config.ActivityRecognitionModel, a.activity.Loaded())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown error: %v", err)
	}

	stopIngest()
	ingest.Wait()
	a.manager.Stop()

	stopBackground()
	bg.Wait()

	a.Close()
	return runErr
}

// Close releases models and the database.
func (a *App) Close() {
	if err := a.presence.Close(); err != nil {
		a.logger.Error("Error closing human detection model: %v", err)
	}
	if err := a.activity.Close(); err != nil {
		a.logger.Error("Error closing activity model: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
}
