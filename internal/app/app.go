package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"firewatch/internal/config"
	"firewatch/internal/logger"
	"firewatch/internal/metrics"
	"firewatch/internal/model"
	"firewatch/internal/repository"
	"firewatch/internal/repository/clickhouse"
	"firewatch/internal/repository/memory"
	"firewatch/internal/repository/mongo"
	"firewatch/internal/repository/sqlite"
	"firewatch/internal/routes"
	"firewatch/internal/service/ai"
	"firewatch/internal/service/capture"
	"firewatch/internal/service/detect"
	"firewatch/internal/service/monitor"
	"firewatch/internal/service/notify"
	"firewatch/internal/service/relay"
	"firewatch/internal/service/status"
	"firewatch/internal/service/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	metrics    *metrics.Metrics
	store      repository.Store
	sink       *status.Sink
	dispatcher *notify.Dispatcher
	manager    *monitor.Manager
	snapshots  *storage.BufferService
	closers    []func() error
}

// NewApp connects the configured backends and builds the monitoring
// pipeline. Only an unreachable camera store is fatal; optional backends
// are skipped with a warning.
func NewApp(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*App, error) {
	a := &App{config: cfg, logger: logger, metrics: metrics.New()}

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	sinkOpts := []status.Option{
		status.WithMetrics(a.metrics),
		status.WithSendTimeout(cfg.SubscriberTimeout),
	}
	if cfg.ClickhouseAddr != "" {
		events, err := clickhouse.New(ctx, logger.Logger, clickhouse.Options{
			Addr:     cfg.ClickhouseAddr,
			Database: cfg.ClickhouseDatabase,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
		})
		if err != nil {
			logger.Warning("Detection history disabled", "error", err)
		} else {
			sinkOpts = append(sinkOpts, status.WithEvents(events))
			a.closers = append(a.closers, events.Close)
		}
	}
	a.sink = status.NewSink(logger, store.Statuses, sinkOpts...)
	a.attachRelays(ctx)

	a.dispatcher = notify.NewDispatcher(logger, newProvider(cfg, logger), cfg.NotificationCooldown,
		cfg.EmergencyPhoneNumber, notify.WithMetrics(a.metrics), notify.WithQueueSize(cfg.NotifyQueueSize))

	dialer := capture.KindDialer{
		model.KindUserCamera:  capture.OpenStream,
		model.KindParkService: capture.NewParkDialer(cfg.ParkPollInterval),
	}
	managerOpts := []monitor.Option{monitor.WithMetrics(a.metrics), monitor.WithDispatcher(a.dispatcher)}
	if cfg.SnapshotDirectory != "" {
		a.snapshots = storage.NewBufferService(cfg.SnapshotDirectory, cfg.SnapshotLimit, logger)
		managerOpts = append(managerOpts, monitor.WithArchiver(a.snapshots))
	}
	a.manager = monitor.NewManager(cfg, logger, store.Cameras, a.sink, a.newClassifier(), dialer, managerOpts...)

	return a, nil
}

// OpenStore opens the camera and status store selected by STORE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config, logger *logger.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0755); err != nil {
			return repository.Store{}, fmt.Errorf("failed to create database directory: %w", err)
		}
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return repository.Store{}, err
		}
		logger.Info("Using SQLite store", "path", cfg.SQLitePath)
		return store, nil
	case "mongo":
		return mongo.NewStore(ctx, logger.Logger, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return repository.Store{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (a *App) newClassifier() detect.Classifier {
	classifier, err := ai.NewFireClassifier(a.config, a.logger)
	if err != nil {
		a.logger.Error("Fire model not loaded, detections will report errors", "error", err)
		return ai.Unavailable{Reason: err}
	}
	a.closers = append(a.closers, classifier.Close)
	return classifier
}

func newProvider(cfg *config.Config, logger *logger.Logger) notify.Provider {
	if !cfg.TwilioEnabled() {
		logger.Warning("Twilio credentials missing, emergency calls will only be logged")
		return notify.NewLogProvider(logger)
	}
	var resources notify.ResourceFinder
	if cfg.GoogleMapsAPIKey != "" {
		resources = notify.NewPlacesClient(cfg.GoogleMapsAPIKey)
	}
	return notify.NewTwilioProvider(logger, notify.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioPhoneNumber,
	}, resources, cfg.ResourceRadiusMiles)
}

// attachRelays subscribes the Redis and MQTT relays that are configured
// and reachable.
func (a *App) attachRelays(ctx context.Context) {
	if a.config.RedisAddr != "" {
		client, err := relay.NewRedisClient(ctx, a.logger, a.config.RedisAddr, a.config.RedisPassword, a.config.RedisDB)
		if err != nil {
			a.logger.Warning("Redis relay disabled", "error", err)
		} else {
			a.sink.Subscribe(relay.NewRedisRelay(a.logger, client, a.config.RedisStream))
		}
	}
	if a.config.MQTTBroker != "" {
		client, err := relay.ConnectMQTT(a.logger, a.config.MQTTBroker, a.config.MQTTClientID)
		if err != nil {
			a.logger.Warning("MQTT relay disabled", "error", err)
		} else {
			a.sink.Subscribe(relay.NewMQTTRelay(a.logger, client, a.config.MQTTTopic))
		}
	}
}

// Run serves the HTTP API and monitors every stored camera until ctx is
// cancelled or the server fails, then stops all cameras.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if err := a.manager.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore cameras: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           routes.SetupRoutes(a.manager, a.sink, a.metrics, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.dispatcher.Run(gctx)
	})
	if a.snapshots != nil {
		g.Go(func() error {
			return a.snapshots.Run(gctx, a.config.SnapshotFlushInterval)
		})
	}
	g.Go(func() error {
		a.logger.Info("Firewatch server started", "addr", server.Addr, "store", a.config.StoreDriver,
			"model", a.config.ModelPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (a *App) close() {
	a.manager.Stop()
	a.sink.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warning("Failed to close resource", "error", err)
		}
	}
	a.logger.Info("Firewatch server stopped")
}
