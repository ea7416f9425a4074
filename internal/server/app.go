// Package server builds the application's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/webshot/internal/api"
	"github.com/JakeFAU/webshot/internal/browser/headless"
	"github.com/JakeFAU/webshot/internal/capture"
	"github.com/JakeFAU/webshot/internal/clock/system"
	"github.com/JakeFAU/webshot/internal/config"
	"github.com/JakeFAU/webshot/internal/id/uuid"
	"github.com/JakeFAU/webshot/internal/logging"
	gcppublisher "github.com/JakeFAU/webshot/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/webshot/internal/storage/gcs"
	localstorage "github.com/JakeFAU/webshot/internal/storage/local"
	"github.com/JakeFAU/webshot/internal/storage/mirror"
	pgstore "github.com/JakeFAU/webshot/internal/storage/postgres"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	storage         *storage.Client
	resultStore     *pgstore.ResultStore
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	checks          []api.ReadinessCheck
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.String("addr", cfg.Addr()),
		zap.String("screenshot_dir", cfg.Screenshot.Dir),
		zap.Int("concurrency", cfg.Screenshot.Concurrency),
		zap.Bool("headless", cfg.Browser.Headless),
	)

	blobStore, err := setupStorage(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	recorder, err := setupDatabase(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	launcher, err := headless.NewLauncher(headless.Config{
		Headless:         cfg.Browser.Headless,
		NoSandbox:        cfg.Browser.NoSandbox,
		IgnoreCertErrors: cfg.Browser.IgnoreCertErrors,
		IsolatePages:     cfg.Browser.IsolatePages,
		UserAgent:        cfg.Browser.UserAgent,
		WindowWidth:      cfg.Browser.WindowWidth,
		WindowHeight:     cfg.Browser.WindowHeight,
		ExecPath:         cfg.Browser.ExecPath,
	}, logger.Named("chrome"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("browser launcher init failed: %w", err)
	}

	idGen := uuid.New()
	pipeline := capture.NewPipeline(
		launcher,
		blobStore,
		recorder,
		publisher,
		system.New(time.Local),
		idGen,
		capture.Config{
			NavigationTimeout: cfg.NavTimeout(),
			Concurrency:       cfg.Screenshot.Concurrency,
			URLPrefix:         cfg.Screenshot.URLPrefix,
			Topic:             cfg.PubSub.TopicName,
			DomainQPS:         cfg.Screenshot.DomainQPS,
		},
		logger.Named("capture"),
	)

	app.apiServer, err = api.NewServer(pipeline, idGen, *cfg, logger.Named("api"), app.checks...)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("api server init failed: %w", err)
	}
	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases downstream clients and flushes the logger.
func (a *App) Close() {
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
		a.pubsubPublisher = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.resultStore != nil {
		a.resultStore.Close()
		a.resultStore = nil
	}
}

// setupStorage always writes to the local screenshot directory and mirrors to GCS when a bucket is set.
func setupStorage(ctx context.Context, app *App) (capture.BlobStore, error) {
	local, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Screenshot.Dir})
	if err != nil {
		return nil, fmt.Errorf("screenshot directory init failed: %w", err)
	}
	app.logger.Info("screenshot directory ready", zap.String("path", local.Dir()))

	if app.cfg.Storage.GCSBucket == "" {
		return local, nil
	}
	app.storage, err = storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client init failed: %w", err)
	}
	bucket, err := gcsstorage.New(app.storage, gcsstorage.Config{
		Bucket: app.cfg.Storage.GCSBucket,
		Prefix: app.cfg.Storage.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("gcs blob store init failed: %w", err)
	}
	app.logger.Info("mirroring screenshots to GCS",
		zap.String("bucket", app.cfg.Storage.GCSBucket),
		zap.String("prefix", app.cfg.Storage.Prefix),
	)
	store, err := mirror.New(local, app.logger.Named("mirror"), bucket)
	if err != nil {
		return nil, fmt.Errorf("mirror store init failed: %w", err)
	}
	return store, nil
}

func setupDatabase(ctx context.Context, app *App) (capture.ResultRecorder, error) {
	if app.cfg.DB.DSN == "" {
		app.logger.Info("no database DSN configured, result ledger disabled")
		return nil, nil
	}
	store, err := pgstore.NewResultStore(ctx, pgstore.ResultStoreConfig{
		DSN:      app.cfg.DB.DSN,
		Table:    app.cfg.DB.Table,
		MaxConns: app.cfg.DB.MaxConns,
		MinConns: app.cfg.DB.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("result store init failed: %w", err)
	}
	app.resultStore = store
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("result store schema failed: %w", err)
	}
	app.checks = append(app.checks, api.ReadinessCheck{Name: "postgres", Check: store.Ping})
	app.logger.Info("result ledger initialized", zap.String("table", app.cfg.DB.Table))
	return store, nil
}

func setupPublisher(ctx context.Context, app *App) (capture.Publisher, error) {
	if app.cfg.PubSub.ProjectID == "" || app.cfg.PubSub.TopicName == "" {
		app.logger.Info("no Pub/Sub topic configured, batch notifications disabled")
		return nil, nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubPublisher = gcppublisher.New(app.pubsubClient.Publisher(app.cfg.PubSub.TopicName))
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.pubsubPublisher, nil
}
