package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signbridge/backend/internal/audio"
	"github.com/signbridge/backend/internal/eventlog"
	"github.com/signbridge/backend/internal/httpapi"
	"github.com/signbridge/backend/internal/jobs"
	"github.com/signbridge/backend/internal/landmark"
	"github.com/signbridge/backend/internal/metrics"
	"github.com/signbridge/backend/internal/speech"
	"github.com/signbridge/backend/internal/store"
	"github.com/signbridge/backend/internal/worker"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool
	store    *store.Store
	eventLog *eventlog.Logger

	detector     landmark.Detector
	speechEngine speech.Engine
	normalizer   *audio.Normalizer
	pool         *worker.Pool
	metrics      *metrics.Metrics
	retention    *jobs.RetentionJob
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	// Persistence is optional; without DATABASE_URL the server runs
	// stateless and every store write is a no-op.
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		a.db = db

		// Migrations are applied externally by the CI deploy job (docker exec psql).
		// No automatic migration runner at startup.
	} else {
		logger.Println("DATABASE_URL not set, persistence disabled")
	}
	a.store = store.New(a.db)
	a.eventLog = eventlog.New(a.db)

	if cfg.DetectorCmd != "" {
		det, err := landmark.NewExecDetector(cfg.DetectorCmd)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init landmark detector: %w", err)
		}
		a.detector = det
	} else {
		logger.Println("DETECTOR_CMD not set, using mock landmark detector")
		a.detector = landmark.NewMockDetector(nil, nil)
	}

	if cfg.VoskModelPath != "" {
		engine, err := speech.NewVoskEngine(cfg.VoskModelPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load speech model: %w", err)
		}
		a.speechEngine = engine
	} else {
		logger.Println("VOSK_MODEL_PATH not set, using mock speech engine")
		a.speechEngine = speech.NewMockEngine()
	}

	a.normalizer = audio.NewNormalizer(cfg.FFmpegPath,
		time.Duration(cfg.AudioDecodeTimeoutMs)*time.Millisecond, logger)
	a.pool = worker.New(cfg.WorkerPoolSize, cfg.WorkerQueueDepth)
	a.metrics = metrics.New()

	if a.db != nil && cfg.RetentionDays > 0 {
		a.retention = jobs.NewRetentionJob(a.store, logger,
			time.Duration(cfg.RetentionDays)*24*time.Hour,
			time.Duration(cfg.RetentionIntervalMin)*time.Minute)
		a.retention.Start()
	}

	return a, nil
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:     a.cfg.PublicBaseURL,
		JWTSecret:         a.cfg.JWTSecret,
		JWTExpiry:         a.cfg.JWTExpiry,
		EnrollKey:         a.cfg.EnrollKey,
		AlertKeywords:     a.cfg.AlertKeywords,
		InferenceTimeout:  time.Duration(a.cfg.InferenceTimeoutMs) * time.Millisecond,
		DiscordWebhookURL: a.cfg.DiscordWebhookURL,
		APNsKeyPath:       a.cfg.APNsKeyPath,
		APNsKeyID:         a.cfg.APNsKeyID,
		APNsTeamID:        a.cfg.APNsTeamID,
		APNsBundleID:      a.cfg.APNsBundleID,
		APNsProduction:    a.cfg.APNsProduction,
	}
	deps := httpapi.Deps{
		Detector:     a.detector,
		SpeechEngine: a.speechEngine,
		Normalizer:   a.normalizer,
		Pool:         a.pool,
		Metrics:      a.metrics,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog, deps)
}

func (a *App) Close() error {
	if a.retention != nil {
		a.retention.Stop()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.speechEngine != nil {
		a.speechEngine.Close()
	}
	if a.detector != nil {
		_ = a.detector.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
